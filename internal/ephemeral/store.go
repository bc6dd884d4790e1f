// Package ephemeral provides a small in-memory store for short-lived values
// such as pending confirmations. Entries expire after a TTL and are reaped
// by a periodic sweep.
package ephemeral

import (
	"sync"
	"time"

	"github.com/kohanai/kohana/internal/clock"
)

type entry[T any] struct {
	value   T
	expires time.Time
}

// Store holds values by key until they are taken or expire.
type Store[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	ttl     time.Duration
	clock   clock.Clock
}

// NewStore builds a store with the given entry lifetime.
func NewStore[T any](ttl time.Duration, clk clock.Clock) *Store[T] {
	if clk == nil {
		clk = clock.System()
	}
	return &Store[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
		clock:   clk,
	}
}

// Put stores value under key, replacing any previous entry and restarting
// its lifetime.
func (s *Store[T]) Put(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[T]{value: value, expires: s.clock.Now().Add(s.ttl)}
}

// Take removes and returns the value under key. Expired entries are treated
// as absent.
func (s *Store[T]) Take(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	delete(s.entries, key)
	if s.clock.Now().After(e.expires) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Sweep removes expired entries and returns how many were dropped.
func (s *Store[T]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	dropped := 0
	for key, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, key)
			dropped++
		}
	}
	return dropped
}

// Len reports the number of live and not-yet-swept entries.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
