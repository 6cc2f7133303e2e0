package cache

import (
	"sync"
	"time"
)

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e ttlEntry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// TTLStore is a thread-safe map with per-entry time-to-live.
// The zero value is not usable; create instances with NewTTLStore.
type TTLStore[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]ttlEntry[V]
	now     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// TTLOption configures a TTLStore.
type TTLOption[K comparable, V any] func(*TTLStore[K, V]) time.Duration

// WithSweepInterval starts a background goroutine that removes expired
// entries on the given interval. Without it, expired entries linger until
// read or explicitly deleted. Stop must be called to release the goroutine.
func WithSweepInterval[K comparable, V any](interval time.Duration) TTLOption[K, V] {
	return func(s *TTLStore[K, V]) time.Duration {
		return interval
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock[K comparable, V any](now func() time.Time) TTLOption[K, V] {
	return func(s *TTLStore[K, V]) time.Duration {
		if now != nil {
			s.now = now
		}
		return 0
	}
}

// NewTTLStore creates an empty TTL store.
func NewTTLStore[K comparable, V any](opts ...TTLOption[K, V]) *TTLStore[K, V] {
	s := &TTLStore[K, V]{
		entries: make(map[K]ttlEntry[V]),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	var sweepEvery time.Duration
	for _, opt := range opts {
		if d := opt(s); d > 0 {
			sweepEvery = d
		}
	}

	if sweepEvery > 0 {
		go s.sweepLoop(sweepEvery)
	}

	return s
}

// Get returns the value for key if present and not expired.
// An expired entry is removed as a side effect of the read.
func (s *TTLStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}

	if entry.expired(s.now()) {
		s.mu.Lock()
		// Re-check under the write lock; the entry may have been replaced.
		if current, ok := s.entries[key]; ok && current.expired(s.now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return zero, false
	}

	return entry.value, true
}

// Set stores value under key. A non-positive ttl means the entry never expires.
func (s *TTLStore[K, V]) Set(key K, value V, ttl time.Duration) {
	entry := ttlEntry[V]{value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
}

// Delete removes key. Returns true if the key was present.
func (s *TTLStore[K, V]) Delete(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

// DeleteFunc removes every entry whose key matches the predicate.
// Returns the number of removed entries.
func (s *TTLStore[K, V]) DeleteFunc(match func(K) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if match(key) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Clear removes all entries.
func (s *TTLStore[K, V]) Clear() {
	s.mu.Lock()
	s.entries = make(map[K]ttlEntry[V])
	s.mu.Unlock()
}

// Len returns the number of stored entries, including not-yet-swept expired ones.
func (s *TTLStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stop terminates the background sweeper, if any. Safe to call multiple times.
func (s *TTLStore[K, V]) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *TTLStore[K, V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *TTLStore[K, V]) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
		}
	}
}
