package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisStore(client)
}

func TestRedisStore_CreateGetExpire(t *testing.T) {
	ctx := context.Background()
	mr, store := setupRedis(t)

	job := &Job{ID: "abc", Kind: KindGroupSync, Status: StatusRunning, Total: 3, Params: map[string]any{"poll_id": "p1"}}
	require.NoError(t, store.Create(ctx, job, time.Hour))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, KindGroupSync, got.Kind)
	assert.Equal(t, "p1", got.Params["poll_id"])
	assert.Equal(t, time.Hour, mr.TTL("job:abc"))

	mr.FastForward(time.Hour + time.Second)
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRedisStore_Swap(t *testing.T) {
	ctx := context.Background()
	mr, store := setupRedis(t)

	job := &Job{ID: "abc", Status: StatusRunning, Total: 10}
	require.NoError(t, store.Create(ctx, job, time.Hour))
	mr.FastForward(10 * time.Minute)

	job.Offset = 5
	ok, err := store.Swap(ctx, job, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 50*time.Minute, mr.TTL("job:abc"), "TTL kept across updates")

	ok, err = store.Swap(ctx, &Job{ID: "abc", Offset: 9}, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Offset)

	_, err = store.Swap(ctx, &Job{ID: "gone"}, 0)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRedisStore_Lock(t *testing.T) {
	ctx := context.Background()
	mr, store := setupRedis(t)

	ok, err := store.Lock(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Lock(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Minute)
	ok, err = store.Lock(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lease expired")

	require.NoError(t, store.Unlock(ctx, "abc"))
	assert.False(t, mr.Exists("job:abc:lock"))
}

func TestRedisStore_Processor(t *testing.T) {
	ctx := context.Background()
	_, store := setupRedis(t)
	p := newTestProcessor(store, &countingTask{batch: 100, total: 250})

	job, err := p.Start(ctx, "count", nil)
	require.NoError(t, err)

	calls := 0
	for !job.Done() {
		job, err = p.Advance(ctx, job.ID)
		require.NoError(t, err)
		calls++
		require.LessOrEqual(t, calls, 3)
	}
	assert.Equal(t, 3, calls)
	assert.Equal(t, 250, job.Processed)

	require.NoError(t, p.Cancel(ctx, job.ID))
	_, err = p.Progress(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	client.Close()

	_, err = NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}
