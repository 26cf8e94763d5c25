// Package counter holds the demo counter state and a small HTTP client for
// the counter API.
package counter

import "sync"

// DefaultStep is the amount added by Increment.
const DefaultStep = 57

// Store is an in-memory signed counter. It lives for the lifetime of the
// process; nothing is persisted. The zero value is not usable, use NewStore.
type Store struct {
	mu    sync.Mutex
	value int
	step  int
}

// NewStore returns a store at zero. A non-positive step falls back to
// DefaultStep.
func NewStore(step int) *Store {
	if step <= 0 {
		step = DefaultStep
	}
	return &Store{step: step}
}

// Value returns the current value.
func (s *Store) Value() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Increment adds the configured step and returns the new value.
func (s *Store) Increment() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value += s.step
	return s.value
}

// Decrement subtracts one and returns the new value.
func (s *Store) Decrement() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value--
	return s.value
}

// Reset sets the value back to zero.
func (s *Store) Reset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = 0
	return s.value
}

// Step returns the increment step.
func (s *Store) Step() int {
	return s.step
}
