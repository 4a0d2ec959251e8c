// Package watch is a tiny listener registry shared by the state holders that
// push changes to the stream endpoint.
package watch

import "sync"

// Set is a concurrency-safe collection of callbacks. The zero value is ready to use.
type Set[T any] struct {
	mu   sync.Mutex
	fns  map[int]func(T)
	next int
}

// Add registers fn and returns a function that removes it.
func (s *Set[T]) Add(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fns == nil {
		s.fns = make(map[int]func(T))
	}
	s.next++
	key := s.next
	s.fns[key] = fn

	return func() {
		s.mu.Lock()
		delete(s.fns, key)
		s.mu.Unlock()
	}
}

// Emit calls every registered callback with v on the caller's goroutine.
func (s *Set[T]) Emit(v T) {
	s.mu.Lock()
	fns := make([]func(T), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of registered callbacks.
func (s *Set[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}
