package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Verification statuses of an uploaded document.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusRejected = "rejected"
)

// Document is the metadata of a stored personal document. Optional
// dates are kept exactly as the backend sent them.
type Document struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Category           string   `json:"category"`
	Department         string   `json:"department,omitempty"`
	VerificationStatus string   `json:"verificationStatus,omitempty"`
	UploadDate         string   `json:"uploadDate,omitempty"`
	FileSize           int64    `json:"fileSize"`
	MimeType           string   `json:"mimeType,omitempty"`
	DocumentNumber     string   `json:"documentNumber,omitempty"`
	IssueDate          string   `json:"issueDate,omitempty"`
	ExpiryDate         string   `json:"expiryDate,omitempty"`
	Description        string   `json:"description,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	FileURL            string   `json:"fileUrl,omitempty"`
}

// UnmarshalJSON accepts both "_id" and "id" as the document identifier.
// fileSize may arrive as a number, a float or a numeric string; any other
// value reads as 0.
func (d *Document) UnmarshalJSON(b []byte) error {
	type alias Document
	aux := struct {
		*alias
		MongoID  string          `json:"_id"`
		FileSize json.RawMessage `json:"fileSize"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.MongoID != "" {
		d.ID = aux.MongoID
	}
	d.FileSize = byteCount(aux.FileSize)
	return nil
}

func byteCount(raw json.RawMessage) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) || f <= 0 || f >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}

// Stats are the dashboard counters.
type Stats struct {
	Total    int `json:"total"`
	Shared   int `json:"shared"`
	Recent   int `json:"recent"`
	Expiring int `json:"expiring"`
}
