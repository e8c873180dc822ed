package batch

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-enrich/internal/model"
)

// Start requests that a pending job be picked up by a worker.
func (o *Orchestrator) Start(ctx context.Context, jobID string) error {
	return o.transition(ctx, jobID, model.JobRunning, model.JobPending)
}

// Pause asks the worker to stop before its next batch. In-flight items
// finish and are checkpointed.
func (o *Orchestrator) Pause(ctx context.Context, jobID string) error {
	return o.transition(ctx, jobID, model.JobPaused, model.JobRunning, model.JobPending)
}

// Resume makes a paused or errored job runnable again. The next Run starts
// at the first pending item.
func (o *Orchestrator) Resume(ctx context.Context, jobID string) error {
	return o.transition(ctx, jobID, model.JobRunning, model.JobPaused, model.JobError)
}

func (o *Orchestrator) transition(ctx context.Context, jobID string, to model.JobStatus, from ...model.JobStatus) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	won, err := o.store.SetJobStatus(ctx, jobID, to, "", from...)
	if err != nil {
		return err
	}
	if !won {
		return eris.Wrapf(model.ErrConstraintViolation, "batch: job %s cannot move from %s to %s", jobID, job.Status, to)
	}
	return nil
}

// RetryFailed creates a new pending job over the failed clients of jobID,
// in their original order. Each client re-runs from the first stage.
func (o *Orchestrator) RetryFailed(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	failed, err := o.store.ListItems(ctx, jobID, model.ItemFailed)
	if err != nil {
		return nil, err
	}
	if len(failed) == 0 {
		return nil, eris.Wrapf(model.ErrConstraintViolation, "batch: job %s has no failed items", jobID)
	}

	ids := make([]string, len(failed))
	for i, it := range failed {
		ids[i] = it.ClientID
	}
	retry := &model.Job{
		ProjectID:   job.ProjectID,
		BatchSize:   job.BatchSize,
		Concurrency: job.Concurrency,
		Message:     "retry of " + jobID,
	}
	if err := o.NewJob(ctx, retry, ids); err != nil {
		return nil, err
	}
	return retry, nil
}

// NewJob creates a pending job over clientIDs with this orchestrator's
// default sizing unless the job sets its own.
func (o *Orchestrator) NewJob(ctx context.Context, job *model.Job, clientIDs []string) error {
	if len(clientIDs) == 0 {
		return eris.Wrap(model.ErrConfigurationMissing, "batch: no clients to enrich")
	}
	if job.BatchSize <= 0 {
		job.BatchSize = o.cfg.BatchSize
	}
	if job.Concurrency <= 0 {
		job.Concurrency = o.cfg.Concurrency
	}
	job.TotalBatches = (len(clientIDs) + job.BatchSize - 1) / job.BatchSize
	return o.store.CreateJob(ctx, job, clientIDs)
}
