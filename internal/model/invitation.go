package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Invitation states as seen by the client.
const (
	InvitationPending   = "pending"
	InvitationAccepted  = "accepted"
	InvitationDeclined  = "declined"
	InvitationExpired   = "expired"
	InvitationDismissed = "dismissed"
)

// Invitation is a pending offer to join a family group. Depending on the
// backend version the action token travels as "invitationToken",
// "token" or "_id".
type Invitation struct {
	ID              string       `json:"_id,omitempty"`
	Token           string       `json:"token,omitempty"`
	InvitationToken string       `json:"invitationToken,omitempty"`
	FamilyName      string       `json:"familyName,omitempty"`
	FamilyGroup     *FamilyGroup `json:"familyGroup,omitempty"`
	InvitedBy       Identity     `json:"invitedBy"`
	Email           string       `json:"email,omitempty"`
	Role            string       `json:"role,omitempty"`
	Status          string       `json:"status,omitempty"`
	InvitedAt       time.Time    `json:"invitedAt"`
	ExpiresAt       time.Time    `json:"expiresAt"`
}

// UnmarshalJSON tolerates "createdAt" in place of "invitedAt" and
// "inviterName" in place of "invitedBy". Timestamps that are empty or
// not parseable read as zero.
func (inv *Invitation) UnmarshalJSON(b []byte) error {
	type alias Invitation
	aux := struct {
		*alias
		InvitedAt   json.RawMessage `json:"invitedAt"`
		ExpiresAt   json.RawMessage `json:"expiresAt"`
		CreatedAt   json.RawMessage `json:"createdAt"`
		InviterName string          `json:"inviterName"`
	}{alias: (*alias)(inv)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	inv.InvitedAt = timestamp(aux.InvitedAt)
	if inv.InvitedAt.IsZero() {
		inv.InvitedAt = timestamp(aux.CreatedAt)
	}
	inv.ExpiresAt = timestamp(aux.ExpiresAt)
	if inv.InvitedBy.String() == "" && aux.InviterName != "" {
		inv.InvitedBy = Identity{Name: aux.InviterName}
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func timestamp(raw json.RawMessage) time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return time.Time{}
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ActionToken is the identifier used by accept, decline and dismiss:
// invitationToken, then token, then _id. Empty means the invitation
// cannot be acted on.
func (inv Invitation) ActionToken() string {
	switch {
	case inv.InvitationToken != "":
		return inv.InvitationToken
	case inv.Token != "":
		return inv.Token
	default:
		return inv.ID
	}
}

// GroupName returns the family group's display name.
func (inv Invitation) GroupName() string {
	if inv.FamilyName != "" {
		return inv.FamilyName
	}
	if inv.FamilyGroup != nil {
		return inv.FamilyGroup.Name
	}
	return ""
}

// ExpiringSoon reports whether the invitation is still valid at now but
// expires within window.
func (inv Invitation) ExpiringSoon(now time.Time, window time.Duration) bool {
	if inv.ExpiresAt.IsZero() || !now.Before(inv.ExpiresAt) {
		return false
	}
	return inv.ExpiresAt.Sub(now) <= window
}

// Expired reports whether the expiry timestamp has passed.
func (inv Invitation) Expired(now time.Time) bool {
	return !inv.ExpiresAt.IsZero() && !now.Before(inv.ExpiresAt)
}
