package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memobase-dev/memobase-go/profile"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return NewFromClient(client, "test:")
}

func TestStore_LockUnlock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token, ok, err := s.Lock(ctx, "flush:proj-1:user-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = s.Lock(ctx, "flush:proj-1:user-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock should be held by the first holder")

	require.NoError(t, s.Unlock(ctx, "flush:proj-1:user-1", token))

	_, ok, err = s.Lock(ctx, "flush:proj-1:user-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock should be free after unlock")
}

func TestStore_Unlock_WrongTokenIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token, ok, err := s.Lock(ctx, "flush:proj-1:user-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Unlock(ctx, "flush:proj-1:user-1", "not-the-real-token"))

	_, ok, err = s.Lock(ctx, "flush:proj-1:user-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock should still be held: unlock with the wrong token must not release it")
	_ = token
}

func TestStore_Renew(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	token, ok, err := s.Lock(ctx, "flush:proj-1:user-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Renew(ctx, "flush:proj-1:user-1", token, time.Minute))

	err = s.Renew(ctx, "flush:proj-1:user-1", "bogus-token", time.Minute)
	assert.Error(t, err)
}

func TestStore_Queue_FIFO(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.PopQueue(ctx, "q:proj-1:user-1")
	require.NoError(t, err)
	assert.False(t, ok, "empty queue should report ok=false")

	require.NoError(t, s.PushQueue(ctx, "q:proj-1:user-1", "batch-1"))
	require.NoError(t, s.PushQueue(ctx, "q:proj-1:user-1", "batch-2"))

	item, ok, err := s.PopQueue(ctx, "q:proj-1:user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "batch-1", item)

	item, ok, err = s.PopQueue(ctx, "q:proj-1:user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "batch-2", item)

	_, ok, err = s.PopQueue(ctx, "q:proj-1:user-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProfileCache_GetSetInvalidate(t *testing.T) {
	s := newTestStore(t)
	cache := s.Cache(time.Minute)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "proj-1", "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	slots := []*profile.Slot{
		{ID: "slot-1", Attrs: profile.Attrs{Topic: "preference", SubTopic: "drink"}, Content: "likes coffee"},
	}
	require.NoError(t, cache.Set(ctx, "proj-1", "user-1", slots))

	got, ok, err := cache.Get(ctx, "proj-1", "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "likes coffee", got[0].Content)

	require.NoError(t, cache.Invalidate(ctx, "proj-1", "user-1"))

	_, ok, err = cache.Get(ctx, "proj-1", "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
