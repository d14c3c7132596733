// Package reader provides reference runner.Reader implementations. Runner's
// package boundary only defines the Reader interface; a caller is always
// free to write its own instead.
package reader

import (
	"context"
	"sync"
)

// Slice is a runner.Reader over an in-memory slice, handing out items in
// fixed-size chunks until the slice is exhausted. It is the generic,
// channel-free analogue of the teacher's source.Channel: rather than reading
// from a <-chan interface{} until closed, it walks an owned slice under a
// mutex, which makes it safe to share a single Slice across a test table
// without re-wiring a channel producer for every case.
type Slice[T any] struct {
	// Items is copied into the reader's internal cursor on Open, so mutating
	// the original slice afterward has no effect on an in-progress read.
	Items []T

	mu     sync.Mutex
	cursor []T
}

// Open snapshots Items into the read cursor.
func (s *Slice[T]) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = make([]T, len(s.Items))
	copy(s.cursor, s.Items)
	return nil
}

// Pre is a no-op.
func (s *Slice[T]) Pre(context.Context) error { return nil }

// Read returns up to max items from the cursor, advancing it. A short or
// empty result means the cursor is exhausted.
func (s *Slice[T]) Read(_ context.Context, max int) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cursor) == 0 {
		return nil, nil
	}
	if max > len(s.cursor) {
		max = len(s.cursor)
	}
	out := s.cursor[:max]
	s.cursor = s.cursor[max:]
	return out, nil
}

// Post is a no-op.
func (s *Slice[T]) Post(context.Context) error { return nil }

// Close releases the cursor.
func (s *Slice[T]) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = nil
	return nil
}
