package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the canonical backend response shape: a success flag, an
// optional human-readable message, and arbitrary payload keys such as
// "familyGroups", "invitations" or "documents".
type Envelope struct {
	Success bool
	Message string
	Fields  map[string]json.RawMessage
}

// UnmarshalJSON decodes any JSON object. "success" follows JavaScript
// truthiness so that 1 or "true" count as success.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.Fields = raw
	e.Success = false
	e.Message = ""

	if v, ok := raw["success"]; ok {
		var flag any
		if err := json.Unmarshal(v, &flag); err != nil {
			return fmt.Errorf("success flag: %w", err)
		}
		e.Success = truthy(flag)
	}
	for _, key := range []string{"message", "error"} {
		if v, ok := raw[key]; ok {
			var msg string
			if json.Unmarshal(v, &msg) == nil && msg != "" {
				e.Message = msg
				break
			}
		}
	}
	return nil
}

// Has reports whether the payload carries a non-null value under key.
func (e *Envelope) Has(key string) bool {
	v, ok := e.Fields[key]
	return ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Decode unmarshals the payload value under key into v. It returns
// false without error when the key is absent or null.
func (e *Envelope) Decode(key string, v any) (bool, error) {
	if e == nil || !e.Has(key) {
		return false, nil
	}
	if err := json.Unmarshal(e.Fields[key], v); err != nil {
		return true, &DecodeError{Key: key, Err: err}
	}
	return true, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "false" && t != "0"
	case nil:
		return false
	default:
		return true
	}
}

// Pagination is the "pagination" payload of list responses.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

// DecodeList decodes the array under key one element at a time. Elements
// that do not decode are passed to skip and left out of the result. A
// value that is not an array at all is a DecodeError.
func DecodeList[T any](e *Envelope, key string, skip func(index int, err error)) ([]T, error) {
	var raws []json.RawMessage
	if ok, err := e.Decode(key, &raws); !ok || err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			if skip != nil {
				skip(i, err)
			}
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
