// Package batch runs enrichment jobs: it splits a job's work list into
// batches, runs the pipeline over each batch with bounded concurrency and
// checkpoints every finished client on the job row.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-enrich/internal/config"
	"github.com/sells-group/leadgen-enrich/internal/generate"
	"github.com/sells-group/leadgen-enrich/internal/metrics"
	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/notify"
	"github.com/sells-group/leadgen-enrich/internal/pipeline"
	"github.com/sells-group/leadgen-enrich/internal/resilience"
)

// Runner enriches one client.
type Runner interface {
	Run(ctx context.Context, clientID string) (*pipeline.Result, error)
}

// Monitor is consulted after every batch.
type Monitor interface {
	Check(ctx context.Context, jobID string) ([]notify.Event, error)
}

// Store is the job persistence the orchestrator needs.
type Store interface {
	GetJob(ctx context.Context, id string) (*model.Job, error)
	CreateJob(ctx context.Context, job *model.Job, clientIDs []string) error
	SetJobStatus(ctx context.Context, id string, to model.JobStatus, message string, from ...model.JobStatus) (bool, error)
	SetBatchProgress(ctx context.Context, id string, current, total int) error
	ListItems(ctx context.Context, jobID string, state model.ItemState) ([]model.JobItem, error)
	RecordItem(ctx context.Context, jobID, clientID string, state model.ItemState) (bool, error)
	RecordFailure(ctx context.Context, f *model.ItemFailure) error
}

// Config holds the defaults applied when a job does not set its own sizing.
type Config struct {
	BatchSize   int
	Concurrency int
	// ItemDelay is the minimum spacing between item starts.
	ItemDelay  time.Duration
	BatchDelay time.Duration
	// MaxConsecutiveStoreFailures escalates the job to error status.
	MaxConsecutiveStoreFailures int
}

// ConfigFrom maps the application batch settings.
func ConfigFrom(c config.BatchConfig) Config {
	return Config{
		BatchSize:                   c.BatchSize,
		Concurrency:                 c.Concurrency,
		ItemDelay:                   time.Duration(c.ItemDelayMs) * time.Millisecond,
		BatchDelay:                  time.Duration(c.BatchDelayMs) * time.Millisecond,
		MaxConsecutiveStoreFailures: c.MaxConsecutiveStoreFailures,
	}
}

// JobResult summarizes one Run call. Counters cover only the items this
// call processed; the job row holds the cumulative totals.
type JobResult struct {
	JobID     string          `json:"job_id"`
	Status    model.JobStatus `json:"status"`
	Batches   int             `json:"batches"`
	Processed int             `json:"processed"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Usage     generate.Usage  `json:"usage"`
	CostUSD   float64         `json:"cost_usd"`
}

// Orchestrator drives the pipeline over the pending items of a job.
type Orchestrator struct {
	cfg        Config
	store      Store
	runner     Runner
	dispatcher *notify.Dispatcher
	monitor    Monitor
}

// New creates an Orchestrator. dispatcher may be nil.
func New(cfg Config, st Store, runner Runner, dispatcher *notify.Dispatcher) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.MaxConsecutiveStoreFailures <= 0 {
		cfg.MaxConsecutiveStoreFailures = 5
	}
	return &Orchestrator{cfg: cfg, store: st, runner: runner, dispatcher: dispatcher}
}

// WithMonitor sets the monitor checked after each batch.
func (o *Orchestrator) WithMonitor(m Monitor) *Orchestrator {
	o.monitor = m
	return o
}

// Run processes the job's pending items, batch by batch. A pending job is
// moved to running first. Run stops before the next batch when the job is
// no longer running; in-flight items always finish. An unknown or inactive
// job is rejected with ErrConfigurationMissing before any work starts.
func (o *Orchestrator) Run(ctx context.Context, jobID string) (*JobResult, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, eris.Wrapf(model.ErrConfigurationMissing, "batch: job %s: %v", jobID, err)
		}
		return nil, err
	}
	won, err := o.store.SetJobStatus(ctx, jobID, model.JobRunning, "", model.JobPending, model.JobRunning)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, eris.Wrapf(model.ErrConfigurationMissing, "batch: job %s is %s, not runnable", jobID, job.Status)
	}

	items, err := o.store.ListItems(ctx, jobID, model.ItemPending)
	if err != nil {
		return nil, err
	}

	size, width := o.sizing(job)
	batches := chunk(items, size)
	total := job.TotalBatches
	if total < len(batches) {
		total = len(batches)
	}
	// Items left over from an interrupted batch are regrouped, so the
	// remaining batches are numbered back from the job's total.
	done := total - len(batches)

	log := zap.L().With(zap.String("job_id", jobID))
	log.Info("batch: starting job",
		zap.Int("pending", len(items)),
		zap.Int("batch_size", size),
		zap.Int("concurrency", width),
		zap.Int("total_batches", total),
	)

	res := &JobResult{JobID: jobID, Status: model.JobRunning}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: o.cfg.MaxConsecutiveStoreFailures,
		ShouldTrip:       func(err error) bool { return errors.Is(err, model.ErrStoreUnavailable) },
	})

	for i, b := range batches {
		current := done + i + 1
		if i > 0 {
			if err := sleep(ctx, o.cfg.BatchDelay); err != nil {
				return res, eris.Wrap(err, "batch: interrupted")
			}
		}

		status, err := o.status(ctx, jobID)
		if err != nil {
			return res, err
		}
		if status != model.JobRunning {
			res.Status = status
			log.Info("batch: job no longer running, stopping before next batch",
				zap.String("status", string(status)),
				zap.Int("next_batch", current),
			)
			return res, nil
		}

		if err := o.store.SetBatchProgress(ctx, jobID, current, total); err != nil {
			return res, err
		}
		metrics.BatchStarted()
		res.Batches++
		log.Info("batch: starting batch", zap.Int("batch", current), zap.Int("items", len(b)))

		if err := o.runBatch(ctx, jobID, b, width, breaker, res); err != nil {
			return res, err
		}
		o.check(ctx, jobID)

		if breaker.Tripped() {
			return res, o.escalate(ctx, jobID, breaker.Failures(), res)
		}
	}

	if _, err := o.store.SetJobStatus(ctx, jobID, model.JobCompleted, "", model.JobRunning); err != nil {
		return res, err
	}
	res.Status = model.JobCompleted
	o.check(ctx, jobID)
	o.dispatcher.Dispatch(ctx, notify.New(notify.KindJobCompleted,
		"Enrichment job completed",
		fmt.Sprintf("job %s finished: %d succeeded, %d failed in this run", jobID, res.Succeeded, res.Failed),
		map[string]any{"job_id": jobID, "processed": res.Processed, "cost_usd": res.CostUSD},
	))
	log.Info("batch: job completed",
		zap.Int("processed", res.Processed),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Float64("cost_usd", res.CostUSD),
	)
	return res, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, jobID string, items []model.JobItem, width int, breaker *resilience.CircuitBreaker, res *JobResult) error {
	limit := rate.Inf
	if o.cfg.ItemDelay > 0 {
		limit = rate.Every(o.cfg.ItemDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(width)

	for _, it := range items {
		if breaker.Tripped() || ctx.Err() != nil {
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		clientID := it.ClientID
		g.Go(func() error {
			if breaker.Tripped() {
				return nil
			}
			out := o.process(ctx, jobID, clientID)
			breaker.Record(out.storeErr)

			mu.Lock()
			defer mu.Unlock()
			if out.recorded {
				res.Processed++
				if out.state == model.ItemSucceeded {
					res.Succeeded++
				} else {
					res.Failed++
				}
			}
			if out.result != nil {
				res.Usage.Add(out.result.Usage)
				res.CostUSD += out.result.CostUSD
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "batch: interrupted")
	}
	return nil
}

type itemOutcome struct {
	state    model.ItemState
	result   *pipeline.Result
	recorded bool
	storeErr error
}

// process runs one client and checkpoints it. Item failures never
// propagate; only store unavailability is reported back for escalation.
func (o *Orchestrator) process(ctx context.Context, jobID, clientID string) itemOutcome {
	log := zap.L().With(zap.String("job_id", jobID), zap.String("client_id", clientID))

	out := itemOutcome{state: model.ItemSucceeded}
	result, err := o.runner.Run(ctx, clientID)
	out.result = result
	if result != nil {
		o.dispatcher.Dispatch(ctx, result.Events...)
	}

	if err != nil {
		out.state = model.ItemFailed
		if errors.Is(err, model.ErrStoreUnavailable) {
			out.storeErr = err
		}
		log.Warn("batch: item failed", zap.Error(err))
		if ferr := o.store.RecordFailure(ctx, failureOf(jobID, clientID, result, err)); ferr != nil {
			log.Error("batch: failed to record item failure", zap.Error(ferr))
		}
	}

	if _, err := o.store.RecordItem(ctx, jobID, clientID, out.state); err != nil {
		log.Error("batch: checkpoint failed, item stays pending", zap.Error(err))
		out.storeErr = err
		return out
	}
	out.recorded = true
	metrics.ItemDone(string(out.state))
	return out
}

func failureOf(jobID, clientID string, result *pipeline.Result, err error) *model.ItemFailure {
	f := &model.ItemFailure{
		JobID:    jobID,
		ClientID: clientID,
		Kind:     model.KindOf(err),
		Message:  err.Error(),
	}
	if result != nil {
		if sr := result.FailedStage(); sr != nil {
			f.Stage, f.StageName = sr.Stage, sr.Name
		}
	}
	return f
}

func (o *Orchestrator) escalate(ctx context.Context, jobID string, failures int, res *JobResult) error {
	msg := fmt.Sprintf("store unavailable for %d consecutive items", failures)
	if _, err := o.store.SetJobStatus(ctx, jobID, model.JobError, msg, model.JobRunning); err != nil {
		zap.L().Error("batch: failed to mark job error", zap.String("job_id", jobID), zap.Error(err))
	}
	res.Status = model.JobError
	o.dispatcher.Dispatch(ctx, notify.New(notify.KindJobError, "Enrichment job stopped", msg,
		map[string]any{"job_id": jobID}))
	return eris.Wrapf(model.ErrStoreUnavailable, "batch: job %s: %s", jobID, msg)
}

// check runs the monitor, logging rather than failing the job on error.
func (o *Orchestrator) check(ctx context.Context, jobID string) {
	if o.monitor == nil {
		return
	}
	events, err := o.monitor.Check(ctx, jobID)
	if err != nil {
		zap.L().Warn("batch: progress check failed", zap.String("job_id", jobID), zap.Error(err))
	}
	o.dispatcher.Dispatch(ctx, events...)
}

func (o *Orchestrator) status(ctx context.Context, jobID string) (model.JobStatus, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

func (o *Orchestrator) sizing(job *model.Job) (size, width int) {
	size, width = job.BatchSize, job.Concurrency
	if size <= 0 {
		size = o.cfg.BatchSize
	}
	if width <= 0 {
		width = o.cfg.Concurrency
	}
	return size, min(width, size)
}

func chunk(items []model.JobItem, size int) [][]model.JobItem {
	var out [][]model.JobItem
	for start := 0; start < len(items); start += size {
		out = append(out, items[start:min(start+size, len(items))])
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
