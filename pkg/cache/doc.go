// Package cache provides a thread-safe in-memory TTL cache.
//
// Entries expire individually; expiry is checked on every read, so a stale
// entry is never returned even between sweeps. An optional background sweeper
// reclaims memory from expired entries on a fixed interval.
//
// Example:
//
//	store := cache.NewTTLStore[string, int](cache.WithSweepInterval[string, int](time.Minute))
//	defer store.Stop()
//
//	store.Set("answer", 42, 5*time.Minute)
//	v, ok := store.Get("answer")
package cache
