package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sessions hands out workspaces keyed by session id.
type Sessions interface {
	// Open returns the workspace for id, creating it when id is empty
	// or unknown. The second result reports whether it was created.
	Open(id string) (*Workspace, bool)
	Get(id string) (*Workspace, bool)
	Delete(id string)
}

type entry struct {
	ws       *Workspace
	lastSeen time.Time
}

// Manager keeps workspaces in memory and evicts those idle for longer
// than the ttl. Local storage outlives eviction, so a returning browser
// gets its stored token back.
type Manager struct {
	opts Options
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

var _ Sessions = (*Manager)(nil)

func NewManager(opts Options, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		opts:    opts,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

func (m *Manager) Open(id string) (*Workspace, bool) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(now)

	if id != "" {
		if e, ok := m.entries[id]; ok {
			e.lastSeen = now
			return e.ws, false
		}
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	ws := NewWorkspace(id, m.opts)
	m.entries[id] = &entry{ws: ws, lastSeen: now}
	return ws, true
}

func (m *Manager) Get(id string) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = m.now()
	return e.ws, true
}

func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
}

// Len returns the number of live workspaces.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Manager) evictLocked(now time.Time) {
	for id, e := range m.entries {
		if now.Sub(e.lastSeen) > m.ttl {
			delete(m.entries, id)
		}
	}
}
