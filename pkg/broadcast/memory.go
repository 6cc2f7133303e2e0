package broadcast

import (
	"context"
	"sync"
)

// Memory is an in-process Broadcaster backed by per-subscriber channels.
// All methods are safe for concurrent use.
type Memory[T any] struct {
	mu     sync.RWMutex
	subs   map[*subscriber[T]]struct{}
	buffer int
	closed bool
	wg     sync.WaitGroup
}

// NewMemory creates an in-memory broadcaster. Each subscriber gets a channel
// buffered to the given size; a minimum of 1 is enforced so that sends stay
// non-blocking.
func NewMemory[T any](buffer int) *Memory[T] {
	return &Memory[T]{
		subs:   make(map[*subscriber[T]]struct{}),
		buffer: max(buffer, 1),
	}
}

// Subscribe registers a subscriber. Cancelling ctx detaches it.
func (m *Memory[T]) Subscribe(ctx context.Context) Subscriber[T] {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := newSubscriber[T](m.buffer)
	if m.closed {
		_ = sub.Close()
		return sub
	}
	m.subs[sub] = struct{}{}

	if ctx.Done() != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			<-ctx.Done()
			m.detach(sub)
		}()
	}

	return sub
}

// Broadcast delivers msg to every subscriber with buffer space.
func (m *Memory[T]) Broadcast(ctx context.Context, msg T) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil
	}

	for sub := range m.subs {
		sub.send(msg)
	}
	return nil
}

// Close shuts the broadcaster down. Idempotent.
func (m *Memory[T]) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for sub := range m.subs {
		_ = sub.Close()
	}
	clear(m.subs)
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func (m *Memory[T]) detach(sub *subscriber[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.subs, sub)
	_ = sub.Close()
}
