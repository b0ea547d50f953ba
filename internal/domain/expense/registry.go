package expense

import (
	"strings"
	"sync"
	"time"
)

type registryEntry struct {
	store    *Store
	lastUsed time.Time
}

// Registry hands out one Store per user, creating it on first request.
// All stores share the collaborators in deps.
//
// With an idle TTL set, a store that has no observers and has not been
// requested for longer than the TTL is dropped during a later request, at
// most once per TTL. The next request for that user builds a fresh store.
type Registry struct {
	deps    Deps
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	stores    map[string]*registryEntry
	lastSweep time.Time
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:   deps,
		now:    time.Now,
		stores: make(map[string]*registryEntry),
	}
}

// WithIdleTTL enables eviction of idle stores. Zero disables it.
func (r *Registry) WithIdleTTL(ttl time.Duration) *Registry {
	r.idleTTL = ttl
	return r
}

// For returns the store for userID. An empty user id yields ErrNotSignedIn.
func (r *Registry) For(userID string) (*Store, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrNotSignedIn
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.idleTTL > 0 && now.Sub(r.lastSweep) >= r.idleTTL {
		r.sweepLocked(now)
	}

	if e, ok := r.stores[userID]; ok {
		e.lastUsed = now
		return e.store, nil
	}
	s, err := NewStore(userID, r.deps)
	if err != nil {
		return nil, err
	}
	r.stores[userID] = &registryEntry{store: s, lastUsed: now}
	return s, nil
}

// Forget drops the store for userID, e.g. on sign-out.
func (r *Registry) Forget(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, strings.TrimSpace(userID))
}

func (r *Registry) sweepLocked(now time.Time) {
	r.lastSweep = now
	for id, e := range r.stores {
		if now.Sub(e.lastUsed) < r.idleTTL || e.store.Observed() {
			continue
		}
		delete(r.stores, id)
	}
}

// Len returns the number of stores currently held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Observed returns the stores that currently have observers.
func (r *Registry) Observed() []*Store {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, e := range r.stores {
		stores = append(stores, e.store)
	}
	r.mu.Unlock()

	out := stores[:0]
	for _, s := range stores {
		if s.Observed() {
			out = append(out, s)
		}
	}
	return out
}
