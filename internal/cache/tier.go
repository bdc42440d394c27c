package cache

import (
	"context"
	"time"
)

// State describes what a Tier holds for a key.
type State int

const (
	// Miss means the key was never resolved or its entry expired.
	Miss State = iota
	// Hit means a value is present.
	Hit
	// Negative means the key was resolved and confirmed absent.
	Negative
)

func (s State) String() string {
	switch s {
	case Hit:
		return "hit"
	case Negative:
		return "negative"
	default:
		return "miss"
	}
}

// Tier is the ephemeral cache backend a Resolver reads through.
type Tier interface {
	Get(ctx context.Context, key string) ([]byte, State, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNegative(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
