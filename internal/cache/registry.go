package cache

import (
	"sync"
	"time"
)

// Registry hands out one Store/Loader pair per authenticated user. The
// original client held a single process-wide cache for its single user;
// serving many users from one process means one cache per visibility
// scope, so cached rows can never leak across owners.
type Registry struct {
	now func() time.Time

	mu     sync.Mutex
	stores map[string]*userCache
}

type userCache struct {
	store  *Store
	loader *Loader
}

// NewRegistry creates a Registry using the wall clock.
func NewRegistry() *Registry {
	return NewRegistryWithClock(time.Now)
}

// NewRegistryWithClock creates a Registry with an injectable clock.
func NewRegistryWithClock(now func() time.Time) *Registry {
	return &Registry{
		now:    now,
		stores: make(map[string]*userCache),
	}
}

// ForUser returns the cache for one user, creating it on first use.
func (r *Registry) ForUser(userID string) (*Store, *Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()

	uc, ok := r.stores[userID]
	if !ok {
		store := NewStoreWithClock(r.now)
		uc = &userCache{store: store, loader: NewLoader(store)}
		r.stores[userID] = uc
	}
	return uc.store, uc.loader
}

// Drop discards one user's cache, e.g. on sign-out.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if uc, ok := r.stores[userID]; ok {
		uc.loader.Close()
		delete(r.stores, userID)
	}
}

// Close tears down every user cache.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, uc := range r.stores {
		uc.loader.Close()
		delete(r.stores, id)
	}
}
