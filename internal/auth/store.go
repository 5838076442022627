package auth

import (
	"sync"
	"time"
)

// Principal is the acting user's identity as the data layer sees it.
type Principal struct {
	UserID    string
	Email     string
	FullName  string
	CreatedAt time.Time
}

// Event is a sign-in or sign-out delivered asynchronously from the
// authentication boundary.
type Event struct {
	// Principal is nil on sign-out.
	Principal *Principal
}

// Store holds the current principal. It is explicitly constructed with a
// defined lifecycle: created at process start, fed by a single-consumer
// subscription from the authentication boundary, torn down via Close. It
// is never a package-level global; consumers receive it by reference.
type Store struct {
	mu        sync.RWMutex
	principal *Principal

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewStore creates a Store and starts consuming auth events.
func NewStore() *Store {
	s := &Store{
		events: make(chan Event, 8),
		done:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.consume()

	return s
}

func (s *Store) consume() {
	defer s.wg.Done()
	for {
		select {
		case ev := <-s.events:
			s.mu.Lock()
			s.principal = ev.Principal
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

// Publish delivers a sign-in (non-nil principal) or sign-out (nil) event.
// It is the write side handed to the authentication boundary.
func (s *Store) Publish(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Current returns the acting principal, or nil when signed out.
func (s *Store) Current() *Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal
}

// Close tears down the subscription and clears the principal.
func (s *Store) Close() {
	close(s.done)
	s.wg.Wait()

	s.mu.Lock()
	s.principal = nil
	s.mu.Unlock()
}
