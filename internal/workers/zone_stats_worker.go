package workers

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// ZoneStatsRefresher recomputes the cached per-zone statistics
type ZoneStatsRefresher interface {
	RefreshZoneStats(ctx context.Context) (int, error)
}

// ZoneStatsWorker periodically refreshes zone delivery statistics
type ZoneStatsWorker struct {
	refresher ZoneStatsRefresher
	schedule  string
	logger    logger.Logger
	running   atomic.Bool
}

// NewZoneStatsWorker creates a new ZoneStatsWorker
func NewZoneStatsWorker(refresher ZoneStatsRefresher, schedule string, logger logger.Logger) *ZoneStatsWorker {
	return &ZoneStatsWorker{
		refresher: refresher,
		schedule:  schedule,
		logger:    logger,
	}
}

func (w *ZoneStatsWorker) Name() string { return "zone-stats" }

func (w *ZoneStatsWorker) Schedule() string { return w.schedule }

// Ready reports false while a previous refresh is still running
func (w *ZoneStatsWorker) Ready(time.Time) bool {
	return !w.running.Load()
}

// Execute refreshes every active zone
func (w *ZoneStatsWorker) Execute(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return nil
	}
	defer w.running.Store(false)

	n, err := w.refresher.RefreshZoneStats(ctx)
	if err != nil {
		return err
	}

	w.logger.Info("Zone statistics refreshed", "zones", n)
	return nil
}
