package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// releaseScript deletes every key still held by the token in ARGV[1].
var releaseScript = redis.NewScript(`
local released = 0
for _, key in ipairs(KEYS) do
	if redis.call("GET", key) == ARGV[1] then
		redis.call("DEL", key)
		released = released + 1
	end
end
return released
`)

var _ Cache = (*Redis)(nil)

type Redis struct {
	lggr        logger.Logger
	client      redis.UniversalClient
	acquireWait time.Duration
}

func NewRedis(lggr logger.Logger, client redis.UniversalClient, acquireWait time.Duration) *Redis {
	return &Redis{
		lggr:        logger.Named(lggr, "RedisCache"),
		client:      client,
		acquireWait: acquireWait,
	}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *Redis) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Increment(ctx context.Context, key string, by int64) (int64, error) {
	return r.client.IncrBy(ctx, key, by).Result()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) Acquire(ctx context.Context, resources []string, ttl time.Duration) (*Lock, error) {
	if len(resources) == 0 {
		return nil, errors.New("no resources to lock")
	}
	token := uuid.NewString()
	keys := make([]string, len(resources))
	for i, res := range resources {
		keys[i] = lockKey(res)
	}

	err := acquireWithin(ctx, r.acquireWait, func() (bool, error) {
		var held []string
		for _, key := range keys {
			ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
			if err != nil {
				r.release(ctx, held, token)
				return false, fmt.Errorf("failed to set lock %s: %w", key, err)
			}
			if !ok {
				r.release(ctx, held, token)
				return false, nil
			}
			held = append(held, key)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &Lock{Resources: resources, Token: token, Expiry: time.Now().Add(ttl)}, nil
}

func (r *Redis) Unlock(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	keys := make([]string, len(lock.Resources))
	for i, res := range lock.Resources {
		keys[i] = lockKey(res)
	}
	released, err := releaseScript.Run(ctx, r.client, keys, lock.Token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if released != len(keys) {
		r.lggr.Warnw("Lock expired before release", "resources", lock.Resources, "released", released)
	}
	return nil
}

func (r *Redis) release(ctx context.Context, keys []string, token string) {
	if len(keys) == 0 {
		return
	}
	if err := releaseScript.Run(ctx, r.client, keys, token).Err(); err != nil {
		r.lggr.Warnw("Failed to release partially acquired lock", "keys", keys, "err", err)
	}
}

// Counter reads an integer key, treating a missing key as zero.
func Counter(ctx context.Context, c Cache, key string) (int64, error) {
	v, err := c.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}
