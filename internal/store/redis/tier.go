package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkmetrics/internal/cache"
)

// Tier is the Redis-backed ephemeral cache tier.
type Tier struct {
	client *redis.Client
}

// NewTier creates a cache tier on top of an established client.
func NewTier(client *redis.Client) *Tier {
	return &Tier{client: client}
}

// Get distinguishes a miss (redis.Nil) from the stored negative marker.
func (t *Tier) Get(ctx context.Context, key string) ([]byte, cache.State, error) {
	data, err := t.client.Get(ctx, Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.Miss, nil
		}
		return nil, cache.Miss, fmt.Errorf("failed to get cache entry: %w", err)
	}
	if string(data) == NegativeMarker {
		return nil, cache.Negative, nil
	}
	return data, cache.Hit, nil
}

func (t *Tier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.client.Set(ctx, Key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

func (t *Tier) SetNegative(ctx context.Context, key string, ttl time.Duration) error {
	if err := t.client.Set(ctx, Key(key), NegativeMarker, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set negative marker: %w", err)
	}
	return nil
}

func (t *Tier) Delete(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, Key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Flush removes every entry whose cache key starts with prefix.
func (t *Tier) Flush(ctx context.Context, prefix string) (int, error) {
	iter := t.client.Scan(ctx, 0, Key(prefix)+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if _, ok := CacheKeyOf(iter.Val()); !ok {
			continue
		}
		if err := t.client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("failed to delete cache key: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to flush cache: %w", err)
	}
	return deleted, nil
}

// Ping reports whether Redis answers.
func (t *Tier) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}
