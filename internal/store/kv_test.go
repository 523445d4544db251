package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestKV(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisKV(client)
}

func TestRedisKV_GetSetDelete(t *testing.T) {
	mr, kv := setupTestKV(t)
	ctx := context.Background()
	key := SummaryKey("ev-1", "org-1")

	_, err := kv.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, key, `{"teams":[]}`, time.Minute))
	got, err := kv.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"teams":[]}`, got)
	assert.Equal(t, time.Minute, mr.TTL(key))

	require.NoError(t, kv.Delete(ctx, key, OccupancyKey("ev-1")))
	_, err = kv.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)

	assert.NoError(t, kv.Delete(ctx))
}

func TestRedisKV_Expiry(t *testing.T) {
	mr, kv := setupTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}
