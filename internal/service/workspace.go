// Package service assembles the per-browser state of the web front-end:
// one Workspace per session holding its page, alerts, identity and the
// three controllers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"familyvault/internal/acceptance"
	"familyvault/internal/api"
	"familyvault/internal/auth"
	"familyvault/internal/clock"
	"familyvault/internal/config"
	"familyvault/internal/documents"
	"familyvault/internal/dom"
	"familyvault/internal/family"
	"familyvault/internal/model"
	"familyvault/internal/notify"
	"familyvault/internal/repository"
)

var ErrTokenRequired = errors.New("token is required")

// Workspace is everything one browser session owns.
type Workspace struct {
	ID         string
	Page       *dom.Page
	Browser    *dom.Browser
	Alerts     *notify.Buffer
	Tokens     *auth.TokenProvider
	Storage    repository.LocalStorage
	Family     *family.Controller
	Documents  *documents.Controller
	Invitation *acceptance.Controller

	mu     sync.Mutex
	loaded map[string]bool
}

// SignIn installs an identity session built from a browser-supplied id
// token and persists the token the way the identity provider would.
func (w *Workspace) SignIn(ctx context.Context, token string) (model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.User{}, ErrTokenRequired
	}
	return w.SignInWith(ctx, auth.NewStaticSession(token))
}

// SignInWith installs s as this browser's identity and persists its
// current token.
func (w *Workspace) SignInWith(ctx context.Context, s auth.Session) (model.User, error) {
	token, err := s.IDToken(ctx)
	if err != nil {
		return model.User{}, err
	}
	if token == "" {
		return model.User{}, ErrTokenRequired
	}
	w.Tokens.SetSession(s)
	if err := w.Storage.Set(ctx, repository.KeyToken, token); err != nil {
		return s.User(), fmt.Errorf("persist token: %w", err)
	}
	return s.User(), nil
}

// SignOut drops the session, the stored token and every cached family
// artifact.
func (w *Workspace) SignOut(ctx context.Context) error {
	w.Tokens.SetSession(nil)
	w.Family.ResetGroup()
	w.Family.ClearFamilyData(ctx)
	w.mu.Lock()
	w.loaded = map[string]bool{}
	w.mu.Unlock()
	return w.Storage.Remove(ctx, repository.KeyToken)
}

// User returns the signed-in user. A token restored from local storage
// counts as signed in even when no live session exists.
func (w *Workspace) User(ctx context.Context) *model.User {
	if u := w.Tokens.User(); u != nil {
		return u
	}
	tok, ok, err := w.Storage.Get(ctx, repository.KeyToken)
	if err != nil || !ok || tok == "" {
		return nil
	}
	u, _ := auth.UserFromIDToken(tok)
	return &u
}

// FirstVisit reports whether section is being shown for the first time
// and marks it as shown.
func (w *Workspace) FirstVisit(section string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loaded[section] {
		return false
	}
	w.loaded[section] = true
	return true
}

// Options configure how workspaces are built.
type Options struct {
	API        config.APIConfig
	UI         config.UIConfig
	Storage    repository.ScopedStorage
	Metrics    *api.Metrics
	Clock      clock.Clock
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// NewWorkspace builds the workspace for session id. It starts signed
// out.
func NewWorkspace(id string, o Options) *Workspace {
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("session", id))

	storage := o.Storage.Scope(id)
	tokens := auth.NewTokenProvider(nil, storage)

	apiOpts := []api.Option{api.WithTimeout(o.API.Timeout()), api.WithMetrics(o.Metrics)}
	if o.HTTPClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(o.HTTPClient))
	}
	client := api.New(o.API.BaseURL, tokens, apiOpts...)

	ws := &Workspace{
		ID:      id,
		Page:    dom.NewPage(),
		Browser: dom.NewBrowser(true),
		Alerts:  notify.NewBuffer(),
		Tokens:  tokens,
		Storage: storage,
		loaded:  map[string]bool{},
	}
	alerts := notify.Multi{ws.Alerts, notify.NewLogger(log)}

	ws.Family = family.NewController(family.Deps{
		API:          client,
		Document:     ws.Page,
		Window:       ws.Browser,
		Alerts:       alerts,
		Storage:      storage,
		Clock:        o.Clock,
		Logger:       log,
		RefetchDelay: o.UI.RefetchDelay(),
	})
	ws.Documents = documents.NewController(documents.Deps{
		API:            client,
		Document:       ws.Page,
		Window:         ws.Browser,
		Alerts:         alerts,
		Clock:          o.Clock,
		Logger:         log,
		PageSize:       o.UI.PageSize,
		SearchDebounce: o.UI.SearchDebounce(),
	})
	ws.Invitation = acceptance.NewController(acceptance.Deps{
		API:            client,
		Document:       ws.Page,
		Window:         ws.Browser,
		Alerts:         alerts,
		Clock:          o.Clock,
		Logger:         log,
		RedirectDelay:  o.UI.RedirectDelay(),
		ExpiringWindow: o.UI.ExpiringSoon(),
		DashboardURL:   o.UI.DashboardURL,
	})
	ws.Documents.LoadCategories()
	return ws
}
