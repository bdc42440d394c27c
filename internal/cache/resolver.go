package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
)

const (
	// DefaultTTL is the lifetime of a cached value.
	DefaultTTL = 6 * time.Hour
	// DefaultNegativeTTL is the lifetime of a cached "confirmed absent" marker.
	DefaultNegativeTTL = 10 * time.Minute
)

// Options configures a Resolver.
type Options struct {
	TTL         time.Duration
	NegativeTTL time.Duration
	Logger      logger.Logger
}

// Stats is a snapshot of resolver counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Negatives int64 `json:"negatives"`
	Misses    int64 `json:"misses"`
	Shared    int64 `json:"shared"`
	Loads     int64 `json:"loads"`
}

// Resolver coalesces concurrent misses on the same key into one loader call and
// populates its Tier with the result.
type Resolver struct {
	tier        Tier
	sf          singleflight.Group
	ttl         time.Duration
	negativeTTL time.Duration
	log         logger.Logger

	hits      atomic.Int64
	negatives atomic.Int64
	misses    atomic.Int64
	shared    atomic.Int64
	loads     atomic.Int64
}

// NewResolver builds a Resolver reading through tier.
func NewResolver(tier Tier, opts Options) *Resolver {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.NegativeTTL <= 0 {
		opts.NegativeTTL = DefaultNegativeTTL
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Resolver{
		tier:        tier,
		ttl:         opts.TTL,
		negativeTTL: opts.NegativeTTL,
		log:         opts.Logger,
	}
}

// LoadFunc loads the raw value of a key from the next tier.
// Returning domain.ErrNotFound marks the key as confirmed absent.
type LoadFunc func(ctx context.Context) ([]byte, error)

type flightResult struct {
	data   []byte
	absent bool
	loaded bool
}

// Origin tells whether a resolved value was read from the tier or produced by a loader.
type Origin int

const (
	// OriginCache is a value read from the tier.
	OriginCache Origin = iota
	// OriginLoaded is a value produced by a loader, either this caller's or a shared flight's.
	OriginLoaded
)

// ResolveBytes returns the cached bytes for key, or runs load once for all concurrent callers.
// An absent key yields domain.ErrNotFound. Loader failures are returned and never cached.
func (r *Resolver) ResolveBytes(ctx context.Context, key string, load LoadFunc) ([]byte, error) {
	data, _, err := r.ResolveBytesOrigin(ctx, key, load)
	return data, err
}

// ResolveBytesOrigin is ResolveBytes that also reports where the bytes came from.
func (r *Resolver) ResolveBytesOrigin(ctx context.Context, key string, load LoadFunc) ([]byte, Origin, error) {
	if data, state := r.lookup(ctx, key); state != Miss {
		data, err := r.fromState(data, state)
		return data, OriginCache, err
	}
	r.misses.Add(1)

	ch := r.sf.DoChan(key, func() (interface{}, error) {
		// The flight outlives any single caller so waiting callers are still served.
		flightCtx := context.WithoutCancel(ctx)

		// A flight that just finished may already have populated the tier.
		if data, state := r.lookup(flightCtx, key); state != Miss {
			return flightResult{data: data, absent: state == Negative}, nil
		}

		r.loads.Add(1)
		data, err := load(flightCtx)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			r.storeNegative(flightCtx, key)
			return flightResult{absent: true, loaded: true}, nil
		case err != nil:
			return nil, err
		}
		r.store(flightCtx, key, data)
		return flightResult{data: data, loaded: true}, nil
	})

	select {
	case <-ctx.Done():
		return nil, OriginCache, ctx.Err()
	case res := <-ch:
		if res.Shared {
			r.shared.Add(1)
		}
		if res.Err != nil {
			return nil, OriginLoaded, res.Err
		}
		fr := res.Val.(flightResult)
		origin := OriginCache
		if fr.loaded {
			origin = OriginLoaded
		}
		if fr.absent {
			return nil, origin, fmt.Errorf("%s: %w", key, domain.ErrNotFound)
		}
		return fr.data, origin, nil
	}
}

// Invalidate drops the cached entry of key. The next resolve reloads it.
func (r *Resolver) Invalidate(ctx context.Context, key string) error {
	if err := r.tier.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", key, err)
	}
	return nil
}

// Stats returns the current counters.
func (r *Resolver) Stats() Stats {
	return Stats{
		Hits:      r.hits.Load(),
		Negatives: r.negatives.Load(),
		Misses:    r.misses.Load(),
		Shared:    r.shared.Load(),
		Loads:     r.loads.Load(),
	}
}

// lookup reads the tier. Read errors degrade to a miss.
func (r *Resolver) lookup(ctx context.Context, key string) ([]byte, State) {
	data, state, err := r.tier.Get(ctx, key)
	if err != nil {
		r.log.Warn("cache read failed, treating as miss",
			logger.String("key", key),
			logger.Error(err))
		return nil, Miss
	}
	return data, state
}

func (r *Resolver) fromState(data []byte, state State) ([]byte, error) {
	if state == Negative {
		r.negatives.Add(1)
		return nil, domain.ErrNotFound
	}
	r.hits.Add(1)
	return data, nil
}

func (r *Resolver) store(ctx context.Context, key string, data []byte) {
	if err := r.tier.Set(ctx, key, data, r.ttl); err != nil {
		r.log.Warn("cache write failed",
			logger.String("key", key),
			logger.Error(err))
	}
}

func (r *Resolver) storeNegative(ctx context.Context, key string) {
	if err := r.tier.SetNegative(ctx, key, r.negativeTTL); err != nil {
		r.log.Warn("cache negative write failed",
			logger.String("key", key),
			logger.Error(err))
	}
}

// Resolve is the typed form of ResolveBytes. Values are cached as JSON.
func Resolve[T any](ctx context.Context, r *Resolver, key string, load func(ctx context.Context) (T, error)) (T, error) {
	v, _, err := ResolveOrigin(ctx, r, key, load)
	return v, err
}

// ResolveOrigin is the typed form of ResolveBytesOrigin.
func ResolveOrigin[T any](ctx context.Context, r *Resolver, key string, load func(ctx context.Context) (T, error)) (T, Origin, error) {
	var zero T
	data, origin, err := r.ResolveBytesOrigin(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", key, err)
		}
		return encoded, nil
	})
	if err != nil {
		return zero, origin, err
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, origin, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return v, origin, nil
}
