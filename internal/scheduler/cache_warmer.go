package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
)

// ServiceResolver reads a service through the cache.
type ServiceResolver interface {
	Service(ctx context.Context, key domain.ServiceKey) (*domain.Service, error)
}

// CacheWarmer loads every linked service into the cache tier on startup
type CacheWarmer struct {
	store    ServiceLister
	resolver ServiceResolver
	logger   logger.Logger
}

// NewCacheWarmer creates a new cache warmer
func NewCacheWarmer(
	store ServiceLister,
	resolver ServiceResolver,
	log logger.Logger,
) *CacheWarmer {
	return &CacheWarmer{
		store:    store,
		resolver: resolver,
		logger:   log,
	}
}

// Warm resolves every service once so the first requests hit the cache.
// Single failures are logged and skipped.
func (cw *CacheWarmer) Warm(ctx context.Context) error {
	cw.logger.Info("warming service cache from store")

	owners, err := cw.store.ListOwners(ctx)
	if err != nil {
		return err
	}

	if len(owners) == 0 {
		cw.logger.Info("no linked services found in store")
		return nil
	}

	warmed := 0
	for _, owner := range owners {
		services, err := cw.store.QueryServicesByOwner(ctx, owner)
		if err != nil {
			cw.logger.Warn("failed to list services",
				logger.String("owner_id", owner),
				logger.Error(err))
			continue
		}
		for _, svc := range services {
			if _, err := cw.resolver.Service(ctx, svc.Key()); err != nil {
				cw.logger.Warn("failed to warm service",
					logger.String("service", svc.Key().String()),
					logger.Error(err))
				continue
			}
			warmed++
		}
	}

	cw.logger.Info("warmed service cache",
		logger.Int("owners", len(owners)),
		logger.Int("count", warmed))

	return nil
}
