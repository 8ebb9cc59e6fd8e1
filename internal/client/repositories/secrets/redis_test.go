package secrets

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "bk:test:", nil)
	ctx := context.Background()

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, s.Set(ctx, "k", []byte("value")))
	assert.True(t, mr.Exists("bk:test:k"), "keys are namespaced by prefix")

	v, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), v)

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))
	assert.False(t, mr.Exists("bk:test:k"))
}

func TestRedisStore_Sealed(t *testing.T) {
	mr, client := newTestRedis(t)
	key := make([]byte, 32)
	s := NewRedisStore(client, "", key)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("secret")))

	raw, err := mr.Get("k")
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret")

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), v)
}

func TestRedisStore_ServerDown(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "", nil)
	mr.Close()

	_, err := s.Get(context.Background(), "k")
	assert.ErrorContains(t, err, "failed to get secret[k]")
}

func TestConnectRedis(t *testing.T) {
	mr, _ := newTestRedis(t)

	c, err := ConnectRedis(context.Background(), mr.Addr(), 0, time.Second)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = ConnectRedis(context.Background(), "127.0.0.1:1", 0, 200*time.Millisecond)
	assert.ErrorIs(t, err, ErrRedisUnavailable)
}
