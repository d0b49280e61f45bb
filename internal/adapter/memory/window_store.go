// Package memory holds process-local implementations of the panel's
// shared-state ports.
package memory

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type window struct {
	count   int
	resetAt time.Time
}

// WindowStore is an in-process fixed-window request counter keyed by client
// identifier. Safe for concurrent use.
type WindowStore struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	limit   int
	window  time.Duration
	windows map[string]*window
}

func NewWindowStore(clock clockwork.Clock, limit int, windowSize time.Duration) *WindowStore {
	return &WindowStore{
		clock:   clock,
		limit:   limit,
		window:  windowSize,
		windows: make(map[string]*window),
	}
}

// Allow counts one request for identifier and reports whether it fits the
// current window.
func (s *WindowStore) Allow(identifier string) (bool, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[identifier]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(s.window)}
		s.windows[identifier] = w
	}
	w.count++

	return w.count <= s.limit, nil
}

// Evict drops every window that has already ended.
func (s *WindowStore) Evict() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, id)
			removed++
		}
	}
	return removed
}

// StartEviction runs Evict once per window until the returned stop function
// is called.
func (s *WindowStore) StartEviction() func() {
	ticker := s.clock.NewTicker(s.window)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				s.Evict()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}

// Len returns the number of tracked identifiers.
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
