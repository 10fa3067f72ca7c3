package sessionstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jrsteele09/go-auth-client/internal/browser"
)

// InMemoryRepo is an in-memory implementation of Store
type InMemoryRepo struct {
	mu       sync.RWMutex
	profiles map[string]map[string]string // profileID -> key -> value
}

var _ Store = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory session store
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		profiles: make(map[string]map[string]string),
	}
}

// Get retrieves a session value for the profile in ctx
func (r *InMemoryRepo) Get(ctx context.Context, key string) (string, bool, error) {
	profileID, err := browser.ProfileID(ctx)
	if err != nil {
		return "", false, err
	}
	if key == "" {
		return "", false, fmt.Errorf("key is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.profiles[profileID][key]
	return v, ok, nil
}

// Set creates or updates a session value
func (r *InMemoryRepo) Set(ctx context.Context, key, value string) error {
	profileID, err := browser.ProfileID(ctx)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[profileID]; !ok {
		r.profiles[profileID] = make(map[string]string)
	}
	r.profiles[profileID][key] = value
	return nil
}

// Remove deletes one session value
func (r *InMemoryRepo) Remove(ctx context.Context, key string) error {
	return r.Clear(ctx, []string{key})
}

// Clear deletes the given keys in a single critical section
func (r *InMemoryRepo) Clear(ctx context.Context, keys []string) error {
	profileID, err := browser.ProfileID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	values, ok := r.profiles[profileID]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(values, k)
	}

	// Clean up empty profile map
	if len(values) == 0 {
		delete(r.profiles, profileID)
	}
	return nil
}

// Keys lists the stored keys for the profile in ctx, sorted.
func (r *InMemoryRepo) Keys(ctx context.Context) ([]string, error) {
	profileID, err := browser.ProfileID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.profiles[profileID]))
	for k := range r.profiles[profileID] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
