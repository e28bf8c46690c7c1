package memory

import (
	"context"
	"sync"

	"familyvault/internal/repository"
)

// LocalStorage keeps every scope in process memory. Used for local
// development, the terminal client and tests.
type LocalStorage struct {
	mu     sync.RWMutex
	scopes map[string]map[string]string
}

// NewLocalStorage returns an empty in-memory store.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{scopes: make(map[string]map[string]string)}
}

var _ repository.ScopedStorage = (*LocalStorage)(nil)

// Scope returns the view of one user agent's keys.
func (s *LocalStorage) Scope(scope string) repository.LocalStorage {
	return &scoped{parent: s, scope: scope}
}

type scoped struct {
	parent *LocalStorage
	scope  string
}

func (s *scoped) Get(_ context.Context, key string) (string, bool, error) {
	s.parent.mu.RLock()
	defer s.parent.mu.RUnlock()
	v, ok := s.parent.scopes[s.scope][key]
	return v, ok, nil
}

func (s *scoped) Set(_ context.Context, key, value string) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	kv, ok := s.parent.scopes[s.scope]
	if !ok {
		kv = make(map[string]string)
		s.parent.scopes[s.scope] = kv
	}
	kv[key] = value
	return nil
}

func (s *scoped) Remove(_ context.Context, keys ...string) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	kv := s.parent.scopes[s.scope]
	for _, k := range keys {
		delete(kv, k)
	}
	if len(kv) == 0 {
		delete(s.parent.scopes, s.scope)
	}
	return nil
}
