package broadcast

import (
	"context"
	"sync"
)

// Subscriber receives broadcast messages of type T.
// Implementations must be safe for concurrent use.
type Subscriber[T any] interface {
	// Receive returns the channel messages are delivered on.
	// The channel is closed when the subscriber or broadcaster closes.
	Receive() <-chan T

	// Close detaches the subscriber. Idempotent.
	Close() error
}

// Broadcaster fans messages out to all current subscribers.
type Broadcaster[T any] interface {
	// Subscribe registers a new subscriber. The subscription is torn down
	// automatically when ctx is cancelled.
	Subscribe(ctx context.Context) Subscriber[T]

	// Broadcast delivers msg to every subscriber that has buffer space.
	// It never blocks; slow subscribers miss messages.
	Broadcast(ctx context.Context, msg T) error

	// Close shuts the broadcaster down and closes all subscribers.
	Close() error
}

type subscriber[T any] struct {
	ch     chan T
	mu     sync.Mutex
	closed bool
}

func newSubscriber[T any](buffer int) *subscriber[T] {
	return &subscriber[T]{ch: make(chan T, buffer)}
}

func (s *subscriber[T]) Receive() <-chan T { return s.ch }

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// send delivers msg without blocking. Returns false when the subscriber is
// closed or its buffer is full.
func (s *subscriber[T]) send(msg T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}
