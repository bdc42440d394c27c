package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
)

const (
	// DefaultPruneThreshold is the age after which persisted metric values are deleted
	DefaultPruneThreshold = 30 * 24 * time.Hour // 30 days
)

// MetricStore deletes persisted metric values older than a cutoff.
type MetricStore interface {
	PruneMetrics(ctx context.Context, before time.Time) (int64, error)
}

// MetricPruner handles cleanup of old persisted metric values.
// Canonical service records are never touched.
type MetricPruner struct {
	store     MetricStore
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

// NewMetricPruner creates a new metric pruner
func NewMetricPruner(
	store MetricStore,
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *MetricPruner {
	if threshold == 0 {
		threshold = DefaultPruneThreshold
	}

	return &MetricPruner{
		store:     store,
		logger:    log,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic garbage collection process
func (gc *MetricPruner) Start(ctx context.Context) error {
	if gc.interval <= 0 {
		return fmt.Errorf("gc interval must be positive, got %s", gc.interval)
	}

	// Run immediately on start
	if err := gc.Collect(ctx); err != nil {
		gc.logger.Warn("initial garbage collection failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(gc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := gc.Collect(ctx); err != nil {
					gc.logger.Error("garbage collection failed",
						logger.Error(err))
				}
			case <-gc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the garbage collector
func (gc *MetricPruner) Stop() {
	close(gc.stopCh)
}

// Collect removes metric values fetched before now minus the threshold
func (gc *MetricPruner) Collect(ctx context.Context) error {
	cutoff := gc.now().Add(-gc.threshold)

	deleted, err := gc.store.PruneMetrics(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune metrics: %w", err)
	}

	if deleted > 0 {
		gc.logger.Info("garbage collection completed",
			logger.Int64("metrics_deleted", deleted),
			logger.Time("cutoff", cutoff))
	} else {
		gc.logger.Debug("no metrics to garbage collect")
	}

	return nil
}
