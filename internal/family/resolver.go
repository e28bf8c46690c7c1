package family

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"familyvault/internal/api"
	"familyvault/internal/model"
)

// Defaults used when the user has no group yet.
const (
	DefaultGroupName        = "My Family"
	DefaultGroupDescription = "Family group for document sharing"
)

// ErrGroupUnavailable means no group could be listed or created.
var ErrGroupUnavailable = errors.New("family group unavailable")

// GroupResolver finds the user's family group, creating one on first
// use. The id is memoized for the lifetime of the resolver.
type GroupResolver struct {
	api    api.Caller
	flight singleflight.Group

	mu sync.Mutex
	id string
}

func NewGroupResolver(c api.Caller) *GroupResolver {
	return &GroupResolver{api: c}
}

// Resolve returns the first group listed by the backend, or the id of
// a freshly created default group. Concurrent first calls share one
// round trip.
func (r *GroupResolver) Resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	id := r.id
	r.mu.Unlock()
	if id != "" {
		return id, nil
	}

	v, err, _ := r.flight.Do("group", func() (any, error) {
		id, err := r.resolve(ctx)
		if err != nil {
			return "", err
		}
		r.mu.Lock()
		r.id = id
		r.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Reset forgets the memoized id.
func (r *GroupResolver) Reset() {
	r.mu.Lock()
	r.id = ""
	r.mu.Unlock()
}

func (r *GroupResolver) resolve(ctx context.Context) (string, error) {
	env, listErr := r.api.Call(ctx, api.ListMyGroups, api.Request{})
	if listErr == nil {
		var groups []model.FamilyGroup
		if _, err := env.Decode("familyGroups", &groups); err != nil {
			listErr = err
		} else if len(groups) > 0 && groups[0].ID != "" {
			return groups[0].ID, nil
		}
	}

	env, err := r.api.Call(ctx, api.CreateGroup, api.Request{Body: map[string]string{
		"name":        DefaultGroupName,
		"description": DefaultGroupDescription,
	}})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGroupUnavailable, errors.Join(err, listErr))
	}
	var group model.FamilyGroup
	if ok, err := env.Decode("familyGroup", &group); err != nil || !ok || group.ID == "" {
		return "", fmt.Errorf("%w: create response carried no group id", ErrGroupUnavailable)
	}
	return group.ID, nil
}
