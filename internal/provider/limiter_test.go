package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterBoundsConcurrencyPerFamily(t *testing.T) {
	l := NewLimiter(map[string]int{"google": 2}, 1)

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), "google", func(context.Context) error {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

func TestLimiterHonorsContext(t *testing.T) {
	l := NewLimiter(nil, 1)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = l.Do(context.Background(), "twitter", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, "twitter", func(context.Context) error { return nil })
	close(release)

	if err == nil {
		t.Fatal("Do() on a saturated family returned nil, want context error")
	}
}

func TestLimiterFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Families["google"] = FamilyConfig{Concurrency: 3}

	l := LimiterFromConfig(cfg)
	if got := l.limits["google"]; got != 3 {
		t.Errorf("google limit = %d, want 3", got)
	}
	if got := l.limits["twitter"]; got != 4 {
		t.Errorf("twitter limit = %d, want 4", got)
	}
}
