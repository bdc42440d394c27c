package provider

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds simultaneous outbound calls per provider family.
type Limiter struct {
	mu     sync.Mutex
	limits map[string]int64
	def    int64
	sems   map[string]*semaphore.Weighted
}

// NewLimiter creates a limiter. Families without an explicit limit use def.
func NewLimiter(limits map[string]int, def int) *Limiter {
	if def <= 0 {
		def = 1
	}
	l := &Limiter{
		limits: make(map[string]int64, len(limits)),
		def:    int64(def),
		sems:   make(map[string]*semaphore.Weighted),
	}
	for family, n := range limits {
		if n > 0 {
			l.limits[family] = int64(n)
		}
	}
	return l
}

// LimiterFromConfig creates a limiter with the concurrency of every configured family.
func LimiterFromConfig(cfg Config) *Limiter {
	limits := make(map[string]int)
	for name := range DefaultConfig().Families {
		limits[name] = cfg.Family(name).Concurrency
	}
	return NewLimiter(limits, 1)
}

// Do runs fn once a slot of the family is available or ctx is done.
func (l *Limiter) Do(ctx context.Context, family string, fn func(ctx context.Context) error) error {
	sem := l.semaphore(family)
	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer sem.Release(1)
	return fn(ctx)
}

func (l *Limiter) semaphore(family string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	if sem, ok := l.sems[family]; ok {
		return sem
	}
	n, ok := l.limits[family]
	if !ok {
		n = l.def
	}
	sem := semaphore.NewWeighted(n)
	l.sems[family] = sem
	return sem
}
