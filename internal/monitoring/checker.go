package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-enrich/internal/config"
	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/notify"
	"github.com/sells-group/leadgen-enrich/internal/store"
)

// JobLister lists jobs by status.
type JobLister interface {
	ListJobs(ctx context.Context, filter store.JobFilter) ([]model.Job, error)
}

// Checker runs periodic progress checks in the background and dispatches
// the resulting events.
type Checker struct {
	monitor    *Monitor
	jobs       JobLister
	dispatcher *notify.Dispatcher
	cfg        config.MonitoringConfig
}

// NewChecker creates a background progress checker.
func NewChecker(monitor *Monitor, jobs JobLister, dispatcher *notify.Dispatcher, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		monitor:    monitor,
		jobs:       jobs,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
// With no jobIDs every running job is checked on each tick.
func (c *Checker) Run(ctx context.Context, jobIDs ...string) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting progress checker",
		zap.Duration("interval", interval),
		zap.Strings("jobs", jobIDs),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("progress checker stopped")
			return
		case <-ticker.C:
			c.CheckOnce(ctx, log, jobIDs...)
		}
	}
}

// CheckOnce checks the given jobs, or every running job, and returns the
// number of events delivered.
func (c *Checker) CheckOnce(ctx context.Context, log *zap.Logger, jobIDs ...string) int {
	ids := jobIDs
	if len(ids) == 0 {
		jobs, err := c.jobs.ListJobs(ctx, store.JobFilter{Statuses: []model.JobStatus{model.JobRunning}})
		if err != nil {
			log.Error("monitoring: failed to list running jobs", zap.Error(err))
			return 0
		}
		for _, j := range jobs {
			ids = append(ids, j.ID)
		}
	}

	sent := 0
	for _, id := range ids {
		events, err := c.monitor.Check(ctx, id)
		if err != nil {
			log.Error("monitoring: check failed", zap.String("job_id", id), zap.Error(err))
		}
		sent += c.dispatcher.Dispatch(ctx, events...)
	}
	if sent > 0 {
		log.Info("monitoring: progress check complete", zap.Int("jobs", len(ids)), zap.Int("events_sent", sent))
	}
	return sent
}
