package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/memobase-dev/memobase-go/errs"
	"github.com/memobase-dev/memobase-go/profile"
)

// Store is the Redis-backed half of Memobase's coordination layer (§4.8):
// a per-key distributed lock, per-key FIFO queues, and (through
// ProfileCache) a read-through cache of a user's profile slots.
type Store struct {
	client *redis.Client
	prefix string
}

// Options configures a new Store.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, default "memobase:"
}

// New opens a client against a live Redis instance.
func New(opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "memobase:"
	}
	return &Store{client: client, prefix: prefix}
}

// NewFromClient wraps an existing client, used in tests against a
// miniredis instance.
func NewFromClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "memobase:"
	}
	return &Store{client: client, prefix: prefix}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) lockKey(key string) string  { return fmt.Sprintf("%slock:%s", s.prefix, key) }
func (s *Store) queueKey(key string) string { return fmt.Sprintf("%squeue:%s", s.prefix, key) }
func (s *Store) cacheKey(projectID, userID string) string {
	return fmt.Sprintf("%sprofile-cache:%s:%s", s.prefix, projectID, userID)
}

// Lock attempts to acquire key for ttl using SET NX, satisfying
// scheduler.Coordinator. token is a random value stored against the key so
// Unlock can tell its own lock apart from one acquired by someone else
// after this one expired.
func (s *Store) Lock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.lockKey(key), token, ttl).Result()
	if err != nil {
		return "", false, errs.Wrap(errs.InternalError, err, "failed to acquire lock %s", key)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Renew extends a held lock's TTL if token still owns it.
func (s *Store) Renew(ctx context.Context, key, token string, ttl time.Duration) error {
	current, err := s.client.Get(ctx, s.lockKey(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return errs.New(errs.Conflict, "lock %s no longer held", key)
		}
		return errs.Wrap(errs.InternalError, err, "failed to read lock %s", key)
	}
	if current != token {
		return errs.New(errs.Conflict, "lock %s held by another holder", key)
	}
	if err := s.client.Expire(ctx, s.lockKey(key), ttl).Err(); err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to renew lock %s", key)
	}
	return nil
}

// unlockScript deletes a key only if its current value still matches the
// caller's token, so a lock that expired and was reacquired by someone else
// is never deleted out from under its new holder (§4.8's compare-and-delete
// requirement).
var unlockScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Unlock releases key, but only if token still owns it; releasing a lock
// that expired and was reacquired by someone else is a no-op, not an
// error, per scheduler.Coordinator's compare-and-delete contract. The
// check-and-delete runs as a single atomic script rather than a GET
// followed by a DEL, closing the race where the lock expires and is
// reacquired between those two round trips.
func (s *Store) Unlock(ctx context.Context, key, token string) error {
	if err := unlockScript.Run(ctx, s.client, []string{s.lockKey(key)}, token).Err(); err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to release lock %s", key)
	}
	return nil
}

// PushQueue appends item to the tail of key's FIFO queue.
func (s *Store) PushQueue(ctx context.Context, key, item string) error {
	if err := s.client.RPush(ctx, s.queueKey(key), item).Err(); err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to push queue %s", key)
	}
	return nil
}

// PopQueue pops the head of key's FIFO queue. ok is false if the queue is
// empty.
func (s *Store) PopQueue(ctx context.Context, key string) (string, bool, error) {
	item, err := s.client.LPop(ctx, s.queueKey(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, errs.Wrap(errs.InternalError, err, "failed to pop queue %s", key)
	}
	return item, true, nil
}

// ProfileCache is a read-through cache over a user's profile slots,
// invalidated on every commit (§4.9).
type ProfileCache struct {
	store *Store
	ttl   time.Duration
}

// Cache returns the profile read-through cache view over this store.
// ttl is how long a cached slot set is served before a miss forces a
// reload; zero means no expiration.
func (s *Store) Cache(ttl time.Duration) *ProfileCache {
	return &ProfileCache{store: s, ttl: ttl}
}

// Get returns the cached slot set for a user, if present and unexpired.
func (c *ProfileCache) Get(ctx context.Context, projectID, userID string) ([]*profile.Slot, bool, error) {
	data, err := c.store.client.Get(ctx, c.store.cacheKey(projectID, userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, errs.Wrap(errs.InternalError, err, "failed to read profile cache")
	}
	var slots []*profile.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, false, errs.Wrap(errs.InternalError, err, "failed to unmarshal cached profile")
	}
	return slots, true, nil
}

// Set stores a user's current slot set.
func (c *ProfileCache) Set(ctx context.Context, projectID, userID string, slots []*profile.Slot) error {
	data, err := json.Marshal(slots)
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to marshal profile for cache")
	}
	if err := c.store.client.Set(ctx, c.store.cacheKey(projectID, userID), data, c.ttl).Err(); err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to write profile cache")
	}
	return nil
}

// Invalidate drops a user's cached slot set; called after every
// profile.Store.CommitDelta so a later read never serves stale content.
func (c *ProfileCache) Invalidate(ctx context.Context, projectID, userID string) error {
	if err := c.store.client.Del(ctx, c.store.cacheKey(projectID, userID)).Err(); err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to invalidate profile cache")
	}
	return nil
}
