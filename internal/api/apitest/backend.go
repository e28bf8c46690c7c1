// Package apitest provides a scripted fake of the vault backend for
// controller and handler tests.
package apitest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"familyvault/internal/api"
	"familyvault/internal/auth"
)

// Request is one call observed by a Backend.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Auth        string
	ContentType string
	Body        []byte
}

// Backend answers routes keyed by method and path. Unknown routes get
// a 404 envelope.
type Backend struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []Request
}

// NewBackend starts a Backend that is closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	b := &Backend{routes: make(map[string]http.HandlerFunc)}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	b.mu.Lock()
	b.requests = append(b.requests, Request{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.Query(),
		Auth:        r.Header.Get("Authorization"),
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	})
	h, ok := b.routes[r.Method+" "+r.URL.Path]
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, `{"success":false,"message":"Not found"}`)
		return
	}
	h(w, r)
}

// Handle routes method and path to h.
func (b *Backend) Handle(method, path string, h http.HandlerFunc) {
	b.mu.Lock()
	b.routes[method+" "+path] = h
	b.mu.Unlock()
}

// JSON makes method and path answer status with body.
func (b *Backend) JSON(method, path string, status int, body string) {
	b.Handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, status, body)
	})
}

// Requests returns every call observed so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// Calls returns the observed calls as "METHOD /path".
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.requests))
	for i, r := range b.requests {
		out[i] = r.Method + " " + r.Path
	}
	return out
}

// Last returns the most recent call.
func (b *Backend) Last() (Request, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		return Request{}, false
	}
	return b.requests[len(b.requests)-1], true
}

// Forget drops the recorded calls but keeps the routes.
func (b *Backend) Forget() {
	b.mu.Lock()
	b.requests = nil
	b.mu.Unlock()
}

// Client returns an api.Client rooted at the backend that authenticates
// with the token "test-token".
func (b *Backend) Client(opts ...api.Option) *api.Client {
	return api.New(b.URL, Tokens("test-token"), opts...)
}

// Tokens is a fixed token source. The empty value is unauthenticated.
type Tokens string

func (t Tokens) Token(context.Context) (string, error) {
	if t == "" {
		return "", auth.ErrNotAuthenticated
	}
	return string(t), nil
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
