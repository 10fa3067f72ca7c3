package flowstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/browser"
)

// DefaultTTL bounds how long an abandoned flow lingers.
const DefaultTTL = 15 * time.Minute

type entry struct {
	value     string
	expiresAt time.Time
}

// InMemoryRepo is a thread-safe in-memory implementation of the Store interface
type InMemoryRepo struct {
	mu   sync.RWMutex
	tabs map[string]map[string]entry // tabID -> key -> entry
	ttl  time.Duration
	now  func() time.Time
}

var _ Store = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory flow store. A non-positive ttl uses DefaultTTL.
func NewInMemoryRepo(ttl time.Duration) *InMemoryRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryRepo{
		tabs: make(map[string]map[string]entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// WithClock replaces the time source. Used by tests to expire entries.
func (r *InMemoryRepo) WithClock(now func() time.Time) *InMemoryRepo {
	r.now = now
	return r
}

// Get retrieves a value for the tab in ctx. Expired values read as absent.
func (r *InMemoryRepo) Get(ctx context.Context, key string) (string, bool, error) {
	tabID, err := browser.TabID(ctx)
	if err != nil {
		return "", false, err
	}
	if key == "" {
		return "", false, errors.New("key cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tabs[tabID][key]
	if !ok || !r.now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores a value for the tab in ctx and sweeps expired entries.
func (r *InMemoryRepo) Set(ctx context.Context, key, value string) error {
	tabID, err := browser.TabID(ctx)
	if err != nil {
		return err
	}
	if key == "" {
		return errors.New("key cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweepLocked(now)

	if _, ok := r.tabs[tabID]; !ok {
		r.tabs[tabID] = make(map[string]entry)
	}
	r.tabs[tabID][key] = entry{value: value, expiresAt: now.Add(r.ttl)}
	return nil
}

// Remove deletes a single key for the tab in ctx.
func (r *InMemoryRepo) Remove(ctx context.Context, key string) error {
	return r.Clear(ctx, []string{key})
}

// Clear deletes the given keys for the tab in ctx in one critical section.
func (r *InMemoryRepo) Clear(ctx context.Context, keys []string) error {
	tabID, err := browser.TabID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tab, ok := r.tabs[tabID]
	if !ok {
		return nil // Already doesn't exist, no error
	}
	for _, k := range keys {
		delete(tab, k)
	}
	if len(tab) == 0 {
		delete(r.tabs, tabID)
	}
	return nil
}

// Len reports the number of live keys for the tab in ctx.
func (r *InMemoryRepo) Len(ctx context.Context) int {
	tabID, err := browser.TabID(ctx)
	if err != nil {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	now := r.now()
	for _, e := range r.tabs[tabID] {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

func (r *InMemoryRepo) sweepLocked(now time.Time) {
	for tabID, tab := range r.tabs {
		for k, e := range tab {
			if !now.Before(e.expiresAt) {
				delete(tab, k)
			}
		}
		if len(tab) == 0 {
			delete(r.tabs, tabID)
		}
	}
}
