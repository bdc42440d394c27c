package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
	"github.com/MrSnakeDoc/linkmetrics/internal/index"
	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
	"github.com/MrSnakeDoc/linkmetrics/internal/provider"
	sqlstore "github.com/MrSnakeDoc/linkmetrics/internal/store/sqlite"
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.Open("file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// fakeRefresher returns canned outcomes per service name.
type fakeRefresher struct {
	mu       sync.Mutex
	outcomes map[string]provider.Outcome
	failures map[string]error
	calls    []string
}

func (f *fakeRefresher) Family(service string) (string, error) {
	switch service {
	case "twitter":
		return domain.ProviderTwitter, nil
	case "youtube":
		return domain.ProviderGoogle, nil
	case "facebook":
		return domain.ProviderFacebook, nil
	}
	return "", domain.ErrUnrecognizedService
}

func (f *fakeRefresher) Refresh(_ context.Context, service string, _ domain.Credential, ownerID string) (provider.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ownerID+":"+service)
	if err := f.failures[service]; err != nil {
		return provider.Result{Service: service}, err
	}
	return provider.Result{Service: service, Outcome: f.outcomes[service]}, nil
}

func seed(t *testing.T, s *sqlstore.Store, owner, service, family string, status domain.Status) {
	t.Helper()
	ctx := context.Background()
	if err := s.LinkService(ctx, &domain.Service{OwnerID: owner, Name: service, Provider: family, Status: status}); err != nil {
		t.Fatalf("LinkService() error = %v", err)
	}
	if err := s.PutCredential(ctx, &domain.Credential{OwnerID: owner, Provider: family, AccessToken: "tok"}); err != nil {
		t.Fatalf("PutCredential() error = %v", err)
	}
}

func TestRefreshAllCollectsFailures(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "u1", "twitter", domain.ProviderTwitter, domain.StatusActive)
	seed(t, store, "u1", "facebook", domain.ProviderFacebook, domain.StatusActive)
	seed(t, store, "u2", "youtube", domain.ProviderGoogle, domain.StatusActive)
	seed(t, store, "u2", "twitter", domain.ProviderTwitter, domain.StatusUnlinked)

	refresher := &fakeRefresher{
		outcomes: map[string]provider.Outcome{
			"twitter": provider.OutcomeRefreshed,
			"youtube": provider.OutcomeAbsent,
		},
		failures: map[string]error{
			"facebook": domain.ErrProviderUnavailable,
		},
	}
	idx := index.NewMemoryIndex()
	rs := NewRefreshScheduler(store, refresher, idx, logger.Nop(), time.Hour, make(chan struct{}, 1))

	err := rs.RefreshAll(context.Background())
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("RefreshAll() error = %v, want ErrProviderUnavailable", err)
	}

	if len(refresher.calls) != 3 {
		t.Errorf("refresh calls = %v, want 3 (unlinked skipped)", refresher.calls)
	}
	if n := idx.Count(); n != 3 {
		t.Errorf("index entries = %d, want 3", n)
	}
	if n := idx.FailedCount(); n != 1 {
		t.Errorf("failed entries = %d, want 1", n)
	}
	if e, ok := idx.Get(domain.ServiceKey{OwnerID: "u2", Name: "youtube"}); !ok || e.Outcome != string(provider.OutcomeAbsent) {
		t.Errorf("youtube entry = %+v, %v", e, ok)
	}
	if idx.GetLastReload().IsZero() {
		t.Error("GetLastReload() not set after run")
	}
}

func TestRefreshAllMissingCredential(t *testing.T) {
	store := newTestStore(t)
	if err := store.LinkService(context.Background(), &domain.Service{OwnerID: "u1", Name: "twitter", Provider: domain.ProviderTwitter}); err != nil {
		t.Fatalf("LinkService() error = %v", err)
	}
	refresher := &fakeRefresher{}
	rs := NewRefreshScheduler(store, refresher, nil, logger.Nop(), time.Hour, nil)

	if err := rs.RefreshAll(context.Background()); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("RefreshAll() error = %v, want ErrProviderUnavailable", err)
	}
	if len(refresher.calls) != 0 {
		t.Errorf("refresh calls = %v, want none", refresher.calls)
	}
}

func TestRefreshSchedulerManualTrigger(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "u1", "twitter", domain.ProviderTwitter, domain.StatusActive)
	refresher := &fakeRefresher{outcomes: map[string]provider.Outcome{"twitter": provider.OutcomeUnchanged}}
	trigger := make(chan struct{}, 1)
	rs := NewRefreshScheduler(store, refresher, index.NewMemoryIndex(), logger.Nop(), time.Hour, trigger)

	if err := rs.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer rs.Stop()

	trigger <- struct{}{}

	deadline := time.Now().Add(5 * time.Second)
	for {
		refresher.mu.Lock()
		n := len(refresher.calls)
		refresher.mu.Unlock()
		if n >= 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("refresh calls = %d, want initial + manual run", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRefreshSchedulerRejectsZeroInterval(t *testing.T) {
	rs := NewRefreshScheduler(nil, nil, nil, logger.Nop(), 0, nil)
	if err := rs.Start(context.Background()); err == nil {
		t.Error("Start() with zero interval should return error")
	}
}

func TestMetricPrunerCollect(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	metrics := []domain.Metric{
		{OwnerID: "u1", Service: "twitter", Name: "followers", Value: 1, FetchedAt: now.Add(-24 * time.Hour)},
		{OwnerID: "u1", Service: "youtube", Name: "followers", Value: 2, FetchedAt: now.Add(-10 * 24 * time.Hour)},
		{OwnerID: "u2", Service: "twitter", Name: "followers", Value: 3, FetchedAt: now.Add(-35 * 24 * time.Hour)},
	}
	for i := range metrics {
		if err := store.PutMetric(ctx, &metrics[i]); err != nil {
			t.Fatalf("PutMetric() error = %v", err)
		}
	}

	// Create pruner with 30 day threshold
	gc := NewMetricPruner(store, logger.Nop(), 24*time.Hour, 30*24*time.Hour)
	gc.now = func() time.Time { return now }

	if err := gc.Collect(ctx); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if _, err := store.GetMetric(ctx, domain.ServiceKey{OwnerID: "u1", Name: "youtube"}, "followers"); err != nil {
		t.Errorf("recent metric was incorrectly removed: %v", err)
	}
	if _, err := store.GetMetric(ctx, domain.ServiceKey{OwnerID: "u2", Name: "twitter"}, "followers"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("old metric was not removed: %v", err)
	}
}

type countingResolver struct {
	mu   sync.Mutex
	keys []domain.ServiceKey
}

func (c *countingResolver) Service(_ context.Context, key domain.ServiceKey) (*domain.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	if key.Name == "facebook" {
		return nil, domain.ErrStoreUnavailable
	}
	return &domain.Service{OwnerID: key.OwnerID, Name: key.Name}, nil
}

func TestCacheWarmerWarm(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "u1", "twitter", domain.ProviderTwitter, domain.StatusActive)
	seed(t, store, "u1", "facebook", domain.ProviderFacebook, domain.StatusActive)
	seed(t, store, "u2", "youtube", domain.ProviderGoogle, domain.StatusActive)

	resolver := &countingResolver{}
	if err := NewCacheWarmer(store, resolver, logger.Nop()).Warm(context.Background()); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if len(resolver.keys) != 3 {
		t.Errorf("warmed %d services, want 3", len(resolver.keys))
	}
}
