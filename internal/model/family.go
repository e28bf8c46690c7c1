package model

import (
	"encoding/json"
	"strings"
)

// Member roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Member statuses.
const (
	MemberActive  = "active"
	MemberPending = "pending"
)

// User identifies the signed-in account of an identity session.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
}

// Identity is a person reference that the backend sends either as a
// plain string or as an object with name and email.
type Identity struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func (i *Identity) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if strings.Contains(s, "@") {
			*i = Identity{Email: s}
		} else {
			*i = Identity{Name: s}
		}
		return nil
	}
	type alias Identity
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*i = Identity(a)
	return nil
}

// String prefers the display name and falls back to the email.
func (i Identity) String() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Email
}

// Member is one person in a family group.
type Member struct {
	Name     string    `json:"name,omitempty"`
	Email    string    `json:"email,omitempty"`
	User     *Identity `json:"user,omitempty"`
	Role     string    `json:"role"`
	Status   string    `json:"status"`
	JoinedAt string    `json:"joinedAt,omitempty"`
}

// DisplayName returns the best human label available for the member.
func (m Member) DisplayName() string {
	switch {
	case m.Name != "":
		return m.Name
	case m.User != nil && m.User.String() != "":
		return m.User.String()
	default:
		return m.Email
	}
}

// FamilyGroup is a server-side container of members and shared documents.
type FamilyGroup struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Members     []Member `json:"members,omitempty"`
}

// UnmarshalJSON accepts both "_id" and "id" as the group identifier.
func (g *FamilyGroup) UnmarshalJSON(b []byte) error {
	type alias FamilyGroup
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(g)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.MongoID != "" {
		g.ID = aux.MongoID
	}
	return nil
}
