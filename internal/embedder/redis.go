package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// RedisCache implements [CacheStore] on Redis through rueidis.
type RedisCache struct {
	// client is the rueidis connection pool.
	client rueidis.Client
	// ttl expires entries; zero keeps them forever.
	ttl time.Duration
}

// RedisConfig holds connection parameters for a RedisCache.
type RedisConfig struct {
	// Addrs are the Redis endpoints (host:port).
	Addrs []string
	// Username is the optional ACL user.
	Username string
	// Password is the optional password.
	Password string
	// DB selects the logical database.
	DB int
	// TTL expires cached vectors. Zero disables expiry.
	TTL time.Duration
}

// NewRedisCache connects to Redis.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("embedding cache: at least one redis address is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding cache: failed to create redis client: %w", err)
	}

	return &RedisCache{client: client, ttl: cfg.TTL}, nil
}

// Get returns the value stored at key, or [ErrCacheMiss].
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Do(ctx, r.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("embedding cache: get: %w", err)
	}
	return data, nil
}

// Set stores value at key, applying the configured TTL.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	var cmd rueidis.Completed
	if r.ttl > 0 {
		cmd = r.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(r.ttl).Build()
	} else {
		cmd = r.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Build()
	}
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("embedding cache: set: %w", err)
	}
	return nil
}

// Ping checks connectivity. It satisfies the server's readiness probe.
func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Name labels the cache in readiness responses.
func (r *RedisCache) Name() string { return "redis" }

// Close shuts down the client.
func (r *RedisCache) Close() {
	r.client.Close()
}
