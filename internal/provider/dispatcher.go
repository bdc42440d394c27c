package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
)

// RefreshStore persists a refreshed fragment at most once per day.
type RefreshStore interface {
	ConditionalRefresh(ctx context.Context, key domain.ServiceKey, fragment domain.Fragment, day time.Time) (*domain.Service, error)
}

// Invalidator drops the cached copy of a service after a durable write.
type Invalidator interface {
	InvalidateService(ctx context.Context, key domain.ServiceKey) error
}

// Outcome describes what a refresh did.
type Outcome string

const (
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeAbsent    Outcome = "absent"
)

// Result is the outcome of one refresh. Fragment is nil when the provider reported
// the account as absent.
type Result struct {
	Service  string           `json:"service"`
	Outcome  Outcome          `json:"outcome"`
	Fragment *domain.Fragment `json:"fragment,omitempty"`
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Limiter     *Limiter
	Invalidator Invalidator
	Clock       func() time.Time
	Logger      logger.Logger
}

// Dispatcher routes a service name to its adapter and writes the normalized result.
type Dispatcher struct {
	registry *Registry
	store    RefreshStore
	limiter  *Limiter
	inval    Invalidator
	clock    func() time.Time
	log      logger.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(registry *Registry, store RefreshStore, opts DispatcherOptions) *Dispatcher {
	if opts.Limiter == nil {
		opts.Limiter = NewLimiter(nil, 4)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Dispatcher{
		registry: registry,
		store:    store,
		limiter:  opts.Limiter,
		inval:    opts.Invalidator,
		clock:    opts.Clock,
		log:      opts.Logger,
	}
}

// Family returns the provider family of a service, used to pick its credential.
func (d *Dispatcher) Family(service string) (string, error) {
	a, err := d.registry.Lookup(service)
	if err != nil {
		return "", err
	}
	return a.Family(), nil
}

// Refresh calls the adapter of service once and conditionally writes the fragment under
// (ownerID, service) with refreshed_at set to the start of the current UTC day.
// A second refresh on the same day leaves the record untouched and reports OutcomeUnchanged.
func (d *Dispatcher) Refresh(ctx context.Context, service string, cred domain.Credential, ownerID string) (Result, error) {
	adapter, err := d.registry.Lookup(service)
	if err != nil {
		return Result{}, err
	}
	if ownerID == "" {
		return Result{}, domain.ErrMissingOwner
	}
	name := adapter.Service()
	res := Result{Service: name}

	var fragment *domain.Fragment
	err = d.limiter.Do(ctx, adapter.Family(), func(ctx context.Context) error {
		var err error
		fragment, err = adapter.Profile(ctx, cred)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("failed to refresh %s: %w", name, err)
	}

	if fragment == nil {
		d.log.Debug("service absent for this provider",
			logger.String("owner_id", ownerID),
			logger.String("service", name))
		res.Outcome = OutcomeAbsent
		return res, nil
	}
	res.Fragment = fragment

	key := domain.ServiceKey{OwnerID: ownerID, Name: name}
	day := domain.StartOfDay(d.clock())

	_, err = d.store.ConditionalRefresh(ctx, key, *fragment, day)
	switch {
	case errors.Is(err, domain.ErrConditionFailed):
		res.Outcome = OutcomeUnchanged
		return res, nil
	case err != nil:
		return res, fmt.Errorf("failed to persist %s: %w", key, err)
	}

	res.Outcome = OutcomeRefreshed
	if d.inval != nil {
		if err := d.inval.InvalidateService(ctx, key); err != nil {
			d.log.Warn("failed to invalidate refreshed service",
				logger.String("service", key.String()),
				logger.Error(err))
		}
	}

	d.log.Info("service refreshed",
		logger.String("owner_id", ownerID),
		logger.String("service", name),
		logger.Time("day", day))
	return res, nil
}

// Metric extracts one metric of a service from its provider.
func (d *Dispatcher) Metric(ctx context.Context, service string, cred domain.Credential, identifier, metric string) (int64, error) {
	adapter, err := d.registry.Lookup(service)
	if err != nil {
		return 0, err
	}

	var value int64
	err = d.limiter.Do(ctx, adapter.Family(), func(ctx context.Context) error {
		var err error
		value, err = adapter.Metric(ctx, cred, identifier, metric)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s of %s: %w", metric, adapter.Service(), err)
	}
	return value, nil
}
