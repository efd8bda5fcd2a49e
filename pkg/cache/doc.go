// Package cache provides a generic, concurrency-safe key-value store.
//
// The container uses it in two places: the shared attribute map of every
// application context, and the resource resolver's location memo.
//
// # Interface
//
// The [Cache] interface is generic over value type V:
//
//   - Get(ctx, key) (V, error): retrieve a value
//   - Set(ctx, key, value, ttl) error: store a value with TTL
//   - Delete(ctx, key) error: remove a key
//   - Has(ctx, key) (bool, error): check existence
//   - Clear(ctx) error: remove all entries
//   - Close() error: release resources
//
// TTL semantics for Set:
//   - Positive duration: item expires after this duration
//   - Zero: use the store's configured default TTL (1 hour by default)
//   - Negative: item never expires
//
// # In-Memory Store
//
// [Memory] keeps entries in a map guarded by a readers-writer lock, so any
// number of readers proceed in parallel while writers serialize per store.
// Each single-key operation is atomic.
//
//	attrs := cache.NewMemory[any](
//	    cache.WithDefaultTTL(-1),      // attributes never expire
//	    cache.WithCleanupInterval(0),  // no janitor needed
//	)
//	defer attrs.Close()
//
//	_ = attrs.Set(ctx, "visits", 1, 0)
//	v, err := attrs.Get(ctx, "visits")
//	names := attrs.Keys()
//
// # Stampede Protection
//
// [GetOrSet] computes a missing value once even when many goroutines miss
// the same key at the same time:
//
//	loc, err := cache.GetOrSet(ctx, memo, path, func(ctx context.Context) (Location, time.Duration, error) {
//	    l, err := lookup(ctx, path)
//	    return l, time.Minute, err
//	})
package cache
