package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTimeout = 5 * time.Second

// ErrRedisUnavailable is returned by ConnectRedis when the server does not answer a ping.
var ErrRedisUnavailable = errors.New("redis unavailable")

type RedisStore struct {
	client *redis.Client
	prefix string
	sealer
}

// NewRedisStore keeps every key under prefix (e.g. "bizkeeper:<device>:").
func NewRedisStore(client *redis.Client, prefix string, key []byte) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, sealer: sealer{key: key}}
}

// ConnectRedis opens a client and validates it with a ping bounded by timeout.
func ConnectRedis(ctx context.Context, addr string, db int, timeout time.Duration) (*redis.Client, error) {
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return client, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret[%s]: %w", key, err)
	}
	return r.open(key, v)
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := r.seal(key, value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+key, sealed, 0).Err(); err != nil {
		return fmt.Errorf("failed to set secret[%s]: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete secret[%s]: %w", key, err)
	}
	return nil
}
