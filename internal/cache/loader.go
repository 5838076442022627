package cache

import (
	"context"
	"sync"
	"time"

	"github.com/lmercadier/taskboard/internal/sched"
)

// defaultRevalidateDelay coalesces duplicate background refreshes for the
// same key while a burst of stale reads comes in.
const defaultRevalidateDelay = 50 * time.Millisecond

// FetchFunc loads the authoritative value for a key from the entity store.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Loader is the read accessor over the Store. A read inside the key's
// freshness window is served from memory without a network call; a stale
// but present value is returned immediately while a background refresh is
// scheduled (stale-while-revalidate); a miss fetches inline with at most
// one retry. Writes never lose to reads: a fetch result is committed only
// if no newer request or mutation touched the key since it was issued.
type Loader struct {
	store           *Store
	revalidateDelay time.Duration

	mu           sync.Mutex
	issued       map[string]uint64
	revalidators map[string]*sched.Debouncer
}

// Result is a read outcome plus its freshness flag. Stale signals the
// caller to show an in-place refresh indicator, not a full loading state.
type Result struct {
	Value interface{}
	Stale bool
}

// NewLoader creates a Loader over store.
func NewLoader(store *Store) *Loader {
	return &Loader{
		store:           store,
		revalidateDelay: defaultRevalidateDelay,
		issued:          make(map[string]uint64),
		revalidators:    make(map[string]*sched.Debouncer),
	}
}

// Get returns the value for key, fetching through fetch when the cache
// cannot serve it fresh.
func (l *Loader) Get(ctx context.Context, key string, window time.Duration, fetch FetchFunc) (Result, error) {
	return l.get(ctx, key, window, l.revalidateDelay, fetch)
}

// GetSettled behaves like Get but revalidates only after the search
// quiescence window, so a burst of keystroke-driven reads of a searched
// list refetches once the input has settled.
func (l *Loader) GetSettled(ctx context.Context, key string, window time.Duration, fetch FetchFunc) (Result, error) {
	return l.get(ctx, key, window, sched.SearchQuiescence, fetch)
}

func (l *Loader) get(ctx context.Context, key string, window, delay time.Duration, fetch FetchFunc) (Result, error) {
	value, present, fresh := l.store.Lookup(key, window)
	if present && fresh {
		return Result{Value: value}, nil
	}

	if present {
		// Stale-while-revalidate, unless an optimistic mutation holds the
		// key; then the optimistic value stands until commit or rollback.
		if !l.store.MutationInFlight(key) {
			l.scheduleRevalidate(key, delay, fetch)
		}
		return Result{Value: value, Stale: true}, nil
	}

	fetched, err := l.fetchAndCommit(ctx, key, fetch)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: fetched}, nil
}

// Refresh forces an inline fetch for key regardless of freshness.
func (l *Loader) Refresh(ctx context.Context, key string, fetch FetchFunc) (interface{}, error) {
	return l.fetchAndCommit(ctx, key, fetch)
}

// fetchAndCommit issues a read with a single retry and commits the result
// only if this is still the most recently issued request for the key and
// nothing wrote to it in the meantime.
func (l *Loader) fetchAndCommit(ctx context.Context, key string, fetch FetchFunc) (interface{}, error) {
	storeVersion := l.store.Version(key)

	l.mu.Lock()
	l.issued[key]++
	generation := l.issued[key]
	l.mu.Unlock()

	value, err := fetch(ctx)
	if err != nil {
		// One retry for reads, to absorb transient errors. Mutations never
		// retry; they fail fast and roll back.
		value, err = fetch(ctx)
		if err != nil {
			return nil, err
		}
	}

	l.mu.Lock()
	superseded := l.issued[key] != generation
	l.mu.Unlock()

	if !superseded {
		l.store.SetIfVersion(key, value, storeVersion)
	}

	// The caller still gets the value it asked for, even when a newer
	// request owns the cache slot.
	return value, nil
}

func (l *Loader) scheduleRevalidate(key string, delay time.Duration, fetch FetchFunc) {
	l.mu.Lock()
	d, ok := l.revalidators[key]
	if !ok {
		d = sched.NewDebouncer(delay)
		l.revalidators[key] = d
	}
	l.mu.Unlock()

	d.Schedule(func() {
		if l.store.MutationInFlight(key) {
			return
		}
		_, _ = l.fetchAndCommit(context.Background(), key, fetch)
	})
}

// Close cancels every pending background revalidation.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, d := range l.revalidators {
		d.Stop()
	}
}
