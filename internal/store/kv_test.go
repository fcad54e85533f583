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

func setupKV(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisKV(client)
}

func TestRedisKV_SetGet(t *testing.T) {
	_, kv := setupKV(t)
	ctx := context.Background()

	key := LatestReadingKey(7)
	require.NoError(t, kv.Set(ctx, key, `{"id":41}`, time.Hour))

	val, err := kv.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":41}`, val)
}

func TestRedisKV_Miss(t *testing.T) {
	_, kv := setupKV(t)

	_, err := kv.Get(context.Background(), LatestReadingKey(99))
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_TTLExpiry(t *testing.T) {
	mr, kv := setupKV(t)
	ctx := context.Background()

	key := LatestReadingKey(7)
	require.NoError(t, kv.Set(ctx, key, "v", time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := kv.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestLatestReadingKey(t *testing.T) {
	assert.Equal(t, "reading:latest:7", LatestReadingKey(7))
}
