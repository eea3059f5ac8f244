package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
)

// staleRetentionFactor controls how long entries outlive their logical TTL in
// Redis. Entries must survive past TTL so the stale-serve fallback has
// something to read during an upstream outage; Redis expiry only bounds how
// long a dead key can linger.
const staleRetentionFactor = 20

// RedisConfig configures the Redis-backed cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis is a Cache backed by a shared Redis instance, for deployments with
// more than one engine replica. Freshness is judged from the stored
// FetchedAtMs, never from Redis key expiry.
type Redis struct {
	client *goredis.Client
}

// NewRedis creates a Redis cache and pings the server.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[cache-redis] connected to %s", cfg.Addr)
	return &Redis{client: client}, nil
}

// Get returns the stored entry regardless of freshness.
func (r *Redis) Get(ctx context.Context, key Key) (*Entry, bool, error) {
	raw, err := r.client.Get(ctx, key.String()).Result()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, false, fmt.Errorf("redis decode %s: %w", key, err)
	}
	return &e, true, nil
}

// Put stores the payload, retaining the key well past its logical TTL.
func (r *Redis) Put(ctx context.Context, key Key, payload model.CandleSeries, ttl time.Duration) error {
	e := Entry{
		Payload:     payload,
		FetchedAtMs: time.Now().UnixMilli(),
		TTLMs:       ttl.Milliseconds(),
	}
	raw, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key.String(), raw, ttl*staleRetentionFactor).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client.
func (r *Redis) Close() error { return r.client.Close() }
