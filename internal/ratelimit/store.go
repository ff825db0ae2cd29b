package ratelimit

import (
	"sync"
	"time"
)

// entry is one key's window. Expired once now is after resetAt.
type entry struct {
	count   int
	resetAt time.Time
	// logged is set once the first denial of this window has been reported,
	// it resets with the window because replaced entries start fresh
	logged bool
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.resetAt)
}

// WindowStore maps client keys to their current window. Safe for concurrent use;
// every read-modify-write happens under one mutex so concurrent requests for the
// same key never lose an increment.
type WindowStore struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewWindowStore() *WindowStore {
	return &WindowStore{entries: make(map[string]*entry)}
}

// hit records one request for key and returns the count inside the current
// window plus whether this is the first denial of the window.
func (s *WindowStore) hit(key string, now time.Time, window time.Duration, max int) (count int, firstDenied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(now) {
		s.entries[key] = &entry{count: 1, resetAt: now.Add(window)}
		return 1, false
	}

	e.count++
	if e.count > max && !e.logged {
		e.logged = true
		return e.count, true
	}
	return e.count, false
}

// resetAt returns when key's window ends, zero time if there is no live entry.
func (s *WindowStore) resetAt(key string, now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.expired(now) {
		return time.Time{}
	}
	return e.resetAt
}

// Sweep removes every entry whose window has elapsed by now and returns how many it removed.
func (s *WindowStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys, expired or not.
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
