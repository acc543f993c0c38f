// Package registry is the port to the identity system of record. The
// biometric engine never owns user records; it only checks that a user ID
// exists before enrolling and reconciles templates against the registry
// during cleanup.
package registry

import (
	"context"
	"sync"

	"github.com/emirpasic/gods/sets/hashset"
)

// IdentityRegistry answers existence questions about user IDs.
type IdentityRegistry interface {
	Exists(ctx context.Context, userID string) (bool, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// InMemory is a registry adapter backed by a set. Deployments without an
// upstream identity service seed it from configuration; tests mutate it
// directly.
type InMemory struct {
	mu  sync.RWMutex
	ids *hashset.Set
}

func NewInMemory(ids ...string) *InMemory {
	set := hashset.New()
	for _, id := range ids {
		set.Add(id)
	}
	return &InMemory{ids: set}
}

func (r *InMemory) Exists(_ context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ids.Contains(userID), nil
}

func (r *InMemory) ListIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	values := r.ids.Values()
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.(string))
	}
	return out, nil
}

// Add registers a user ID.
func (r *InMemory) Add(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids.Add(userID)
}

// Remove deletes a user ID, simulating deactivation upstream.
func (r *InMemory) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids.Remove(userID)
}
