package repository

import "context"

// Well-known local storage keys.
const (
	// KeyToken holds the identity token persisted by the auth provider.
	// It is read-only to everything else.
	KeyToken = "firebaseToken"
	// KeyInvitations and KeyMembers only hold stale family artifacts;
	// they are removed, never read as a source of truth.
	KeyInvitations = "familyInvitations"
	KeyMembers     = "familyMembers"
)

// LocalStorage is the client's persistent key-value store, the
// equivalent of a browser's localStorage for one user agent.
type LocalStorage interface {
	// Get returns the value under key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the given keys. Missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
}

// ScopedStorage hands out one LocalStorage per user agent, identified
// by an opaque scope such as a browser session id.
type ScopedStorage interface {
	Scope(scope string) LocalStorage
}
