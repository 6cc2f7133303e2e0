package cache_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authzkit/authzkit/pkg/cache"
)

func TestTTLStore_SetGet(t *testing.T) {
	t.Parallel()

	store := cache.NewTTLStore[string, int]()
	defer store.Stop()

	store.Set("a", 1, time.Minute)

	v, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestTTLStore_Expiry(t *testing.T) {
	t.Parallel()

	current := time.Now()
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	store := cache.NewTTLStore(cache.WithClock[string, int](now))
	defer store.Stop()

	store.Set("a", 1, time.Minute)
	store.Set("forever", 2, 0)

	mu.Lock()
	current = current.Add(2 * time.Minute)
	mu.Unlock()

	_, ok := store.Get("a")
	assert.False(t, ok, "expired entry must not be returned")

	v, ok := store.Get("forever")
	require.True(t, ok, "zero ttl means no expiry")
	assert.Equal(t, 2, v)

	// Reading the expired key removed it from storage.
	assert.Equal(t, 1, store.Len())
}

func TestTTLStore_DeleteFunc(t *testing.T) {
	t.Parallel()

	store := cache.NewTTLStore[string, int]()
	defer store.Stop()

	store.Set("u1|a", 1, time.Minute)
	store.Set("u1|b", 2, time.Minute)
	store.Set("u2|a", 3, time.Minute)

	removed := store.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, "u1|")
	})
	assert.Equal(t, 2, removed)

	_, ok := store.Get("u1|a")
	assert.False(t, ok)
	_, ok = store.Get("u2|a")
	assert.True(t, ok)
}

func TestTTLStore_Clear(t *testing.T) {
	t.Parallel()

	store := cache.NewTTLStore[string, string]()
	defer store.Stop()

	store.Set("a", "x", time.Minute)
	store.Set("b", "y", time.Minute)
	store.Clear()

	assert.Equal(t, 0, store.Len())
}

func TestTTLStore_Concurrent(t *testing.T) {
	t.Parallel()

	store := cache.NewTTLStore[int, int](cache.WithSweepInterval[int, int](time.Millisecond))
	defer store.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				key := (i*1000 + j) % 64
				store.Set(key, j, time.Millisecond*10)
				store.Get(key)
				if j%100 == 0 {
					store.DeleteFunc(func(k int) bool { return k%7 == 0 })
				}
			}
		}()
	}
	wg.Wait()
}
