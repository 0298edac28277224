package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// Orchestrator runs workers on their cron schedules
type Orchestrator struct {
	workers []Worker
	logger  logger.Logger
	cron    *cron.Cron
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(workers []Worker, logger logger.Logger) *Orchestrator {
	return &Orchestrator{
		workers: workers,
		logger:  logger,
		now:     time.Now,
	}
}

// Start schedules every worker. A tick is skipped while the worker reports
// it is not ready.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c := cron.New()

	for _, worker := range o.workers {
		worker := worker

		if _, err := c.AddFunc(worker.Schedule(), func() { o.run(ctx, worker) }); err != nil {
			cancel()
			o.logger.Error("Error adding cron job", "worker", worker.Name(), "error", err)
			return fmt.Errorf("schedule worker %s: %w", worker.Name(), err)
		}
	}

	o.cron = c
	o.cancel = cancel
	c.Start()

	o.logger.Info("Worker orchestrator started", "workers", len(o.workers))
	return nil
}

// Stop halts scheduling, cancels running jobs and waits for them to return
func (o *Orchestrator) Stop() {
	if o.cron == nil {
		return
	}

	<-o.cron.Stop().Done()
	o.cancel()
	o.wg.Wait()

	o.logger.Info("Worker orchestrator stopped")
}

func (o *Orchestrator) run(ctx context.Context, worker Worker) {
	if !worker.Ready(o.now()) {
		o.logger.Debug("Worker not ready, skipping run", "worker", worker.Name())
		return
	}

	o.wg.Add(1)
	defer o.wg.Done()

	start := time.Now()
	if err := worker.Execute(ctx); err != nil {
		o.logger.Error("Worker run failed", "worker", worker.Name(), "error", err, "duration", time.Since(start))
		return
	}
	o.logger.Info("Worker run completed", "worker", worker.Name(), "duration", time.Since(start))
}
