package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisOpTimeout = 500 * time.Millisecond

// Redis is a Store backed by a shared redis instance. Errors are logged and
// treated as misses; the engine must keep running when redis is down.
type Redis struct {
	client *redis.Client
}

// NewRedis connects a Store to the redis instance at addr.
func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Get returns the cached value if redis has it.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("redis get failed")
		}
		return nil, false
	}
	return val, true
}

// Set stores val under key with the given TTL.
func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := r.client.Set(ctx, key, val, ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("redis set failed")
	}
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("redis delete failed")
	}
}

// Close releases the client connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
