// Package auth produces the bearer token threaded through every backend
// call.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"familyvault/internal/logging"
	"familyvault/internal/model"
	"familyvault/internal/repository"
)

// ErrNotAuthenticated means neither the identity session nor local
// storage could supply a token.
var ErrNotAuthenticated = errors.New("not authenticated")

// Session is an active identity-provider session able to mint id tokens.
type Session interface {
	User() model.User
	IDToken(ctx context.Context) (string, error)
}

// TokenProvider resolves the bearer token: the live session first, then
// the token persisted in local storage.
type TokenProvider struct {
	mu      sync.RWMutex
	session Session
	storage repository.LocalStorage
}

// NewTokenProvider builds a provider. Either argument may be nil.
func NewTokenProvider(session Session, storage repository.LocalStorage) *TokenProvider {
	return &TokenProvider{session: session, storage: storage}
}

// SetSession installs the session after sign-in, or clears it with nil
// on sign-out.
func (p *TokenProvider) SetSession(s Session) {
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
}

// User returns the signed-in user, or nil when there is no session.
func (p *TokenProvider) User() *model.User {
	p.mu.RLock()
	s := p.session
	p.mu.RUnlock()
	if s == nil {
		return nil
	}
	u := s.User()
	return &u
}

// Token returns an opaque bearer token. Tokens are never parsed or
// checked for expiry here; the backend's 401 is the signal that one
// has gone stale.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.RLock()
	s := p.session
	p.mu.RUnlock()

	var sessionErr error
	if s != nil {
		tok, err := s.IDToken(ctx)
		if err == nil && tok != "" {
			return tok, nil
		}
		sessionErr = err
		if err != nil {
			logging.FromContext(ctx).Warn("identity session could not mint token",
				slog.String("error", err.Error()))
		}
	}

	if p.storage != nil {
		tok, ok, err := p.storage.Get(ctx, repository.KeyToken)
		if err != nil {
			return "", fmt.Errorf("read stored token: %w", err)
		}
		if ok && tok != "" {
			return tok, nil
		}
	}

	if sessionErr != nil {
		return "", fmt.Errorf("%w: %v", ErrNotAuthenticated, sessionErr)
	}
	return "", ErrNotAuthenticated
}
