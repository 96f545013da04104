// Package redis is Memobase's coordination layer (§4.8): a per-user
// distributed lock, per-user FIFO flush queues, and a read-through cache
// over committed profile slots, all on top of redis/go-redis/v9.
//
// # Basic usage
//
//	coord := redis.New(redis.Options{Addr: "localhost:6379"})
//	defer coord.Close()
//
//	token, ok, err := coord.Lock(ctx, "lock:proj-1:user-1:chat:flush", 2*time.Minute)
//	if err != nil || !ok {
//		return err
//	}
//	defer coord.Unlock(ctx, "lock:proj-1:user-1:chat:flush", token)
//
// Store satisfies scheduler.Coordinator directly and can be passed straight
// to scheduler.New.
//
// # Profile cache
//
//	cache := coord.Cache(5 * time.Minute)
//	if slots, ok, _ := cache.Get(ctx, projectID, userID); ok {
//		// serve from cache
//	}
//	cache.Set(ctx, projectID, userID, freshSlots)
//	cache.Invalidate(ctx, projectID, userID) // call after CommitDelta
//
// # Testing
//
// NewFromClient wraps a *redis.Client pointed at a miniredis instance,
// avoiding the need for a live Redis server in tests.
package redis
