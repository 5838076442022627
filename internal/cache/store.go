package cache

import (
	"strings"
	"sync"
	"time"
)

// Store is the process-wide client cache: one instance per running
// application, constructed in main and passed to every consumer. It keeps
// fetched values keyed per the scheme in keys.go, tracks when each value
// was stamped, and provides the snapshot/restore and per-key locking
// primitives the optimistic mutation protocol is built on.
//
// The original ran on a single-threaded event loop; here a mutex guards
// the map and per-key locks serialize mutations on the same entity.
type Store struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	version map[string]uint64

	lockMu   sync.Mutex
	keyLocks map[string]*sync.Mutex
	held     map[string]int
}

type entry struct {
	value     interface{}
	stampedAt time.Time
	stale     bool
}

// NewStore creates an empty Store using the wall clock.
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock creates a Store with an injectable clock for tests.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		now:      now,
		entries:  make(map[string]entry),
		version:  make(map[string]uint64),
		keyLocks: make(map[string]*sync.Mutex),
		held:     make(map[string]int),
	}
}

// Get returns the cached value for key and whether one is present,
// regardless of freshness.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Lookup returns the cached value, whether it is present, and whether it
// is still within the given freshness window.
func (s *Store) Lookup(key string, window time.Duration) (interface{}, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, false
	}
	fresh := !e.stale && s.now().Sub(e.stampedAt) < window
	return e.value, true, fresh
}

// Set stores value under key and stamps it fresh as of now.
func (s *Store) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{value: value, stampedAt: s.now()}
	s.version[key]++
}

// Version returns a counter bumped on every write to key. A fetch captures
// it at issue time and commits only if nothing wrote in between, so a
// superseded in-flight response is discarded instead of applied.
func (s *Store) Version(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version[key]
}

// SetIfVersion stores value under key only if the key's version still
// equals version. Returns whether the write happened.
func (s *Store) SetIfVersion(key string, value interface{}, version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version[key] != version {
		return false
	}
	s.entries[key] = entry{value: value, stampedAt: s.now()}
	s.version[key]++
	return true
}

// Invalidate marks the key stale without dropping its value, so a reader
// can still be handed stale-but-present data while a refresh runs.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.stale = true
		s.entries[key] = e
		s.version[key]++
	}
}

// InvalidatePrefix marks every key under the prefix stale.
func (s *Store) InvalidatePrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if strings.HasPrefix(key, prefix) {
			e.stale = true
			s.entries[key] = e
			s.version[key]++
		}
	}
}

// Remove drops the key entirely.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	s.version[key]++
}

// Keys returns every cached key under the prefix.
func (s *Store) Keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Snapshot captures the exact state of every given key, including absence
// and the original stamp, for verbatim restore on rollback.
type Snapshot struct {
	entries map[string]*entry
}

// Snapshot records the current state of keys.
func (s *Store) Snapshot(keys ...string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{entries: make(map[string]*entry, len(keys))}
	for _, key := range keys {
		if e, ok := s.entries[key]; ok {
			copied := e
			snap.entries[key] = &copied
		} else {
			snap.entries[key] = nil
		}
	}
	return snap
}

// Restore puts every snapshotted key back exactly as captured: present
// keys regain their value and stamp, absent keys are removed again.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range snap.entries {
		if e == nil {
			delete(s.entries, key)
		} else {
			s.entries[key] = *e
		}
		s.version[key]++
	}
}

// LockKey acquires the mutation lock for key, blocking while another
// mutation holds it, and returns the release function. Only one in-flight
// mutation may hold the optimistic state for a key; the next one waits so
// it never snapshots an optimistic value as ground truth.
func (s *Store) LockKey(key string) func() {
	s.lockMu.Lock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	s.lockMu.Unlock()

	l.Lock()

	s.lockMu.Lock()
	s.held[key]++
	s.lockMu.Unlock()

	return func() {
		s.lockMu.Lock()
		s.held[key]--
		s.lockMu.Unlock()
		l.Unlock()
	}
}

// MutationInFlight reports whether an optimistic mutation currently holds
// the key. Readers serve the cached value as-is and skip revalidation
// while this is true, so a background refetch can never clobber an
// optimistic value before it commits or rolls back.
func (s *Store) MutationInFlight(key string) bool {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	return s.held[key] > 0
}
