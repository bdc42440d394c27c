// Package aggregate fans a metric lookup out over every service linked to an owner.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/linkmetrics/internal/cache"
	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
	"github.com/MrSnakeDoc/linkmetrics/internal/provider"
)

// Where a metric value came from.
const (
	SourceCache    = "cache"
	SourceStore    = "store"
	SourceProvider = "provider"
	SourceAbsent   = "absent"
)

// DefaultMaxConcurrency bounds the branches running at once for one owner.
const DefaultMaxConcurrency = 8

// MetricResult is the outcome of one branch. A failed branch carries Error and no Source.
type MetricResult struct {
	Value  int64  `json:"value"`
	Source string `json:"source,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Failed reports whether the branch ended in an error.
func (m MetricResult) Failed() bool { return m.Error != "" }

// Store is the durable store used by the aggregator.
type Store interface {
	QueryServicesByOwner(ctx context.Context, ownerID string) ([]domain.Service, error)
	GetMetric(ctx context.Context, key domain.ServiceKey, name string) (*domain.Metric, error)
	PutMetric(ctx context.Context, metric *domain.Metric) error
	GetCredential(ctx context.Context, ownerID, provider string) (*domain.Credential, error)
}

// Dispatcher refreshes a service from its provider and extracts metrics.
type Dispatcher interface {
	Family(service string) (string, error)
	Refresh(ctx context.Context, service string, cred domain.Credential, ownerID string) (provider.Result, error)
	Metric(ctx context.Context, service string, cred domain.Credential, identifier, metric string) (int64, error)
}

// Options configures an Aggregator.
type Options struct {
	MaxConcurrency int
	Clock          func() time.Time
	Logger         logger.Logger
}

// Aggregator resolves one metric for every service of an owner through
// cache, then store, then provider.
type Aggregator struct {
	cache      *cache.Resolver
	store      Store
	dispatcher Dispatcher
	limit      int
	clock      func() time.Time
	log        logger.Logger
}

// New creates an aggregator.
func New(c *cache.Resolver, store Store, dispatcher Dispatcher, opts Options) *Aggregator {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Aggregator{
		cache:      c,
		store:      store,
		dispatcher: dispatcher,
		limit:      opts.MaxConcurrency,
		clock:      opts.Clock,
		log:        opts.Logger,
	}
}

// FetchUserMetrics returns one result per linked service of ownerID, keyed by service name.
//
// Only a failure to list the services fails the call. Branches run on a context
// detached from ctx: when ctx is cancelled the call returns immediately while
// the branches finish populating the cache and store.
func (a *Aggregator) FetchUserMetrics(ctx context.Context, ownerID, metric string) (map[string]MetricResult, error) {
	if ownerID == "" {
		return nil, domain.ErrMissingOwner
	}
	if metric == "" {
		metric = domain.MetricFollowers
	}

	services, err := a.store.QueryServicesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list services of %s: %w", ownerID, err)
	}

	var mu sync.Mutex
	results := make(map[string]MetricResult, len(services))
	branchCtx := context.WithoutCancel(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		g := new(errgroup.Group)
		g.SetLimit(a.limit)
		for _, svc := range services {
			g.Go(func() error {
				res := a.resolve(branchCtx, svc, metric)
				mu.Lock()
				results[svc.Name] = res
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}
	return results, nil
}

// metricEntry is the cached payload of a metric: its value and the tier it was loaded from.
type metricEntry struct {
	Value  int64  `json:"value"`
	Source string `json:"source"`
}

// resolve runs one branch: cache, then store, then provider, strictly in that order.
func (a *Aggregator) resolve(ctx context.Context, svc domain.Service, metric string) MetricResult {
	log := a.log.With(
		logger.String("owner_id", svc.OwnerID),
		logger.String("service", svc.Name),
		logger.String("metric", metric))

	if svc.Status == domain.StatusUnlinked {
		return MetricResult{Source: SourceAbsent}
	}

	key := cache.MetricKey(svc.OwnerID, svc.Name, metric)
	entry, origin, err := cache.ResolveOrigin(ctx, a.cache, key, func(ctx context.Context) (metricEntry, error) {
		v, src, err := a.load(ctx, svc, metric)
		return metricEntry{Value: v, Source: src}, err
	})

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return MetricResult{Source: SourceAbsent}
	case err != nil:
		log.Warn("metric branch failed", logger.Error(err))
		return MetricResult{Error: err.Error()}
	}
	source := SourceCache
	if origin == cache.OriginLoaded {
		source = entry.Source
	}
	return MetricResult{Value: entry.Value, Source: source}
}

// load is the cache loader: a metric fetched today in the store, else the provider.
func (a *Aggregator) load(ctx context.Context, svc domain.Service, metric string) (int64, string, error) {
	now := a.clock()
	today := domain.StartOfDay(now)

	stored, err := a.store.GetMetric(ctx, svc.Key(), metric)
	switch {
	case err == nil && !stored.FetchedAt.Before(today):
		return stored.Value, SourceStore, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return 0, "", err
	}

	value, err := a.fetch(ctx, svc, metric)
	if err != nil {
		return 0, "", err
	}

	if err := a.store.PutMetric(ctx, &domain.Metric{
		OwnerID:   svc.OwnerID,
		Service:   svc.Name,
		Name:      metric,
		Value:     value,
		FetchedAt: today,
	}); err != nil {
		a.log.Warn("failed to persist metric",
			logger.String("service", svc.Key().String()),
			logger.Error(err))
	}
	return value, SourceProvider, nil
}

// fetch refreshes the service from its provider, then extracts the metric.
func (a *Aggregator) fetch(ctx context.Context, svc domain.Service, metric string) (int64, error) {
	family, err := a.dispatcher.Family(svc.Name)
	if err != nil {
		return 0, err
	}

	cred, err := a.store.GetCredential(ctx, svc.OwnerID, family)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return 0, fmt.Errorf("no %s credential for %s: %w", family, svc.OwnerID, domain.ErrProviderUnavailable)
	case err != nil:
		return 0, err
	}

	res, err := a.dispatcher.Refresh(ctx, svc.Name, *cred, svc.OwnerID)
	if err != nil {
		return 0, err
	}
	if res.Outcome == provider.OutcomeAbsent || res.Fragment == nil {
		return 0, fmt.Errorf("%s: %w", svc.Key(), domain.ErrNotFound)
	}

	return a.dispatcher.Metric(ctx, svc.Name, *cred, res.Fragment.Identifier, metric)
}
