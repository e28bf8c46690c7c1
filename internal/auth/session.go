package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"familyvault/internal/config"
	"familyvault/internal/model"
)

// StaticSession wraps a token handed over by a browser or operator.
type StaticSession struct {
	user  model.User
	token string
}

// NewStaticSession builds a session from a raw id token. The user is
// read from the token's claims when it is a JWT.
func NewStaticSession(token string) *StaticSession {
	u, _ := UserFromIDToken(token)
	return &StaticSession{user: u, token: token}
}

func (s *StaticSession) User() model.User { return s.user }

func (s *StaticSession) IDToken(context.Context) (string, error) {
	return s.token, nil
}

// OAuthSession mints tokens from an OAuth2 token source, refreshing as
// needed. The OpenID "id_token" extra is preferred over the access token.
type OAuthSession struct {
	source oauth2.TokenSource

	mu   sync.Mutex
	user model.User
}

// NewOAuthSession builds a refresh-token backed session from configuration.
func NewOAuthSession(ctx context.Context, cfg config.OAuthConfig) (*OAuthSession, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("oauth: token url, client id and refresh token are required")
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		Scopes:       cfg.Scopes,
	}
	return NewSessionFromSource(oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})), nil
}

// NewSessionFromSource wraps an existing token source.
func NewSessionFromSource(source oauth2.TokenSource) *OAuthSession {
	return &OAuthSession{source: oauth2.ReuseTokenSource(nil, source)}
}

func (s *OAuthSession) User() model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *OAuthSession) IDToken(context.Context) (string, error) {
	tok, err := s.source.Token()
	if err != nil {
		return "", fmt.Errorf("oauth token: %w", err)
	}
	raw := tok.AccessToken
	if id, ok := tok.Extra("id_token").(string); ok && id != "" {
		raw = id
	}
	if u, err := UserFromIDToken(raw); err == nil {
		s.mu.Lock()
		s.user = u
		s.mu.Unlock()
	}
	return raw, nil
}

// UserFromIDToken reads the identity claims of a JWT id token without
// verifying it; verification is the backend's job.
func UserFromIDToken(raw string) (model.User, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return model.User{}, fmt.Errorf("parse id token: %w", err)
	}
	u := model.User{
		ID:          stringClaim(claims, "user_id"),
		Email:       stringClaim(claims, "email"),
		DisplayName: stringClaim(claims, "name"),
	}
	if u.ID == "" {
		u.ID, _ = claims.GetSubject()
	}
	return u, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
