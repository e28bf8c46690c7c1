package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"familyvault/internal/config"
)

// CodeFlow signs one browser in through the provider's authorization-code
// grant. Every exchange yields a session of its own.
type CodeFlow struct {
	config oauth2.Config
}

// NewCodeFlow builds the flow from configuration.
func NewCodeFlow(cfg config.OAuthConfig) (*CodeFlow, error) {
	if !cfg.CodeFlowEnabled() {
		return nil, errors.New("oauth: auth url, token url and client id are required")
	}
	return &CodeFlow{config: oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL},
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
	}}, nil
}

// withRedirect returns a copy of the config using callback unless a
// redirect URL was configured explicitly.
func (f *CodeFlow) withRedirect(callback string) oauth2.Config {
	c := f.config
	if c.RedirectURL == "" {
		c.RedirectURL = callback
	}
	return c
}

// AuthCodeURL is where the browser is sent to authenticate.
func (f *CodeFlow) AuthCodeURL(state, callback string) string {
	c := f.withRedirect(callback)
	return c.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for a session. The session keeps
// refreshing after ctx ends.
func (f *CodeFlow) Exchange(ctx context.Context, code, callback string) (*OAuthSession, error) {
	c := f.withRedirect(callback)
	tok, err := c.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth exchange: %w", err)
	}
	s := &OAuthSession{source: oauth2.ReuseTokenSource(tok, c.TokenSource(context.WithoutCancel(ctx), tok))}
	if _, err := s.IDToken(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
