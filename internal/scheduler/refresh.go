package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
	"github.com/MrSnakeDoc/linkmetrics/internal/index"
	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
	"github.com/MrSnakeDoc/linkmetrics/internal/provider"
)

// ServiceLister walks the linked services of every owner.
type ServiceLister interface {
	ListOwners(ctx context.Context) ([]string, error)
	QueryServicesByOwner(ctx context.Context, ownerID string) ([]domain.Service, error)
}

// RefreshStore is the store surface used by the refresh scheduler.
type RefreshStore interface {
	ServiceLister
	GetCredential(ctx context.Context, ownerID, provider string) (*domain.Credential, error)
}

// Refresher refreshes one service from its provider.
type Refresher interface {
	Family(service string) (string, error)
	Refresh(ctx context.Context, service string, cred domain.Credential, ownerID string) (provider.Result, error)
}

// RefreshScheduler handles the daily refresh of every linked service
type RefreshScheduler struct {
	store         RefreshStore
	refresher     Refresher
	index         *index.MemoryIndex
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewRefreshScheduler creates a new refresh scheduler
func NewRefreshScheduler(
	store RefreshStore,
	refresher Refresher,
	idx *index.MemoryIndex,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *RefreshScheduler {
	return &RefreshScheduler{
		store:         store,
		refresher:     refresher,
		index:         idx,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic refresh process. The first run starts immediately.
func (rs *RefreshScheduler) Start(ctx context.Context) error {
	if rs.interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", rs.interval)
	}

	ticker := time.NewTicker(rs.interval)
	go func() {
		defer ticker.Stop()
		rs.run(ctx)
		for {
			select {
			case <-ticker.C:
				rs.run(ctx)
			case <-rs.manualTrigger:
				rs.logger.Info("manual refresh triggered")
				rs.run(ctx)
			case <-rs.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the scheduler
func (rs *RefreshScheduler) Stop() {
	close(rs.stopCh)
}

func (rs *RefreshScheduler) run(ctx context.Context) {
	if err := rs.RefreshAll(ctx); err != nil {
		rs.logger.Error("failed to refresh services",
			logger.Error(err))
	}
}

// RefreshAll refreshes every non-unlinked service of every owner. Failures of single
// services are collected and returned together; they never stop the run.
func (rs *RefreshScheduler) RefreshAll(ctx context.Context) error {
	rs.logger.Info("refreshing linked services")
	start := time.Now()

	owners, err := rs.store.ListOwners(ctx)
	if err != nil {
		return fmt.Errorf("failed to list owners: %w", err)
	}

	var errs *multierror.Error
	refreshed, unchanged, absent := 0, 0, 0

	for _, owner := range owners {
		if ctx.Err() != nil {
			errs = multierror.Append(errs, ctx.Err())
			break
		}

		services, err := rs.store.QueryServicesByOwner(ctx, owner)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to list services of %s: %w", owner, err))
			continue
		}

		for _, svc := range services {
			if svc.Status == domain.StatusUnlinked {
				continue
			}

			res, err := rs.refreshOne(ctx, svc)
			if rs.index != nil {
				rs.index.Record(svc.Key(), string(res.Outcome), err, time.Now())
			}
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}

			switch res.Outcome {
			case provider.OutcomeRefreshed:
				refreshed++
			case provider.OutcomeUnchanged:
				unchanged++
			case provider.OutcomeAbsent:
				absent++
			}
		}
	}

	if rs.index != nil {
		rs.index.MarkReload(time.Now())
	}

	rs.logger.Info("refresh run completed",
		logger.Int("owners", len(owners)),
		logger.Int("refreshed", refreshed),
		logger.Int("unchanged", unchanged),
		logger.Int("absent", absent),
		logger.Int("failed", errsLen(errs)),
		logger.Duration("took", time.Since(start)))

	return errs.ErrorOrNil()
}

func (rs *RefreshScheduler) refreshOne(ctx context.Context, svc domain.Service) (provider.Result, error) {
	family, err := rs.refresher.Family(svc.Name)
	if err != nil {
		return provider.Result{}, err
	}

	cred, err := rs.store.GetCredential(ctx, svc.OwnerID, family)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return provider.Result{}, fmt.Errorf("no %s credential for %s: %w", family, svc.Key(), domain.ErrProviderUnavailable)
	case err != nil:
		return provider.Result{}, err
	}

	return rs.refresher.Refresh(ctx, svc.Name, *cred, svc.OwnerID)
}

func errsLen(errs *multierror.Error) int {
	if errs == nil {
		return 0
	}
	return len(errs.Errors)
}
