package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix  = "idempotency:"
	idempotencyPending    = "pending"
	defaultIdempotencyTTL = 24 * time.Hour
)

// releasePendingScript deletes a key only while it still marks an
// in-flight checkout, so a completed key can never be dropped.
var releasePendingScript = redis.NewScript(`
local key = KEYS[1]
local current = redis.call('GET', key)
if current == ARGV[1] then
	return redis.call('DEL', key)
end
return 0
`)

type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &RedisAdapter{client: client, ttl: ttl}
}

func (r *RedisAdapter) Reserve(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, idempotencyKeyPrefix+key, idempotencyPending, r.ttl).Result()
}

func (r *RedisAdapter) Complete(ctx context.Context, key string, invoiceID int64) error {
	return r.client.Set(ctx, idempotencyKeyPrefix+key, invoiceID, r.ttl).Err()
}

func (r *RedisAdapter) Lookup(ctx context.Context, key string) (int64, bool, error) {
	val, err := r.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) || val == idempotencyPending {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *RedisAdapter) Release(ctx context.Context, key string) error {
	return releasePendingScript.Run(ctx, r.client, []string{idempotencyKeyPrefix + key}, idempotencyPending).Err()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
