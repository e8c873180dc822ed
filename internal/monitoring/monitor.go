// Package monitoring observes job progress. It fires one-time milestone
// notifications and evaluates user-defined alert rules, returning the
// resulting events for the caller to dispatch.
package monitoring

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-enrich/internal/metrics"
	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/notify"
)

// Store is the persistence the monitor reads and writes.
type Store interface {
	StatsSource
	MarkMilestone(ctx context.Context, jobID string, milestone int) (bool, error)
	ListAlertConfigs(ctx context.Context, projectID string) ([]model.AlertConfig, error)
	TouchAlert(ctx context.Context, alertID string, at time.Time) error
	RecordAlertEvent(ctx context.Context, ev *model.AlertEvent) error
}

// Monitor checks one job at a time. Concurrent checks of the same job are
// safe: milestone flags are claimed with a conditional update.
type Monitor struct {
	store     Store
	collector *Collector
	alerter   *Alerter
}

// NewMonitor creates a Monitor.
func NewMonitor(st Store) *Monitor {
	return &Monitor{store: st, collector: NewCollector(st), alerter: NewAlerter()}
}

// Check fires milestones the job has crossed and the alert rules whose
// conditions hold. It returns the events to deliver.
func (m *Monitor) Check(ctx context.Context, jobID string) ([]notify.Event, error) {
	snap, err := m.collector.Collect(ctx, jobID)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("job_id", jobID))

	events, err := m.milestones(ctx, snap)
	if err != nil {
		return events, err
	}

	rules, err := m.store.ListAlertConfigs(ctx, snap.Job.ProjectID)
	if err != nil {
		return events, err
	}
	for _, f := range m.alerter.Evaluate(rules, snap) {
		ev := f.Event
		if err := m.store.RecordAlertEvent(ctx, &ev); err != nil {
			log.Error("monitoring: failed to record alert event", zap.String("alert_id", f.Rule.ID), zap.Error(err))
			continue
		}
		if err := m.store.TouchAlert(ctx, f.Rule.ID, ev.CreatedAt); err != nil {
			log.Warn("monitoring: failed to touch alert", zap.String("alert_id", f.Rule.ID), zap.Error(err))
		}
		metrics.AlertFired(string(f.Rule.Type))
		events = append(events, notify.New(notify.KindAlert, f.Rule.Name, ev.Message, map[string]any{
			"job_id":   jobID,
			"alert_id": f.Rule.ID,
			"type":     string(f.Rule.Type),
			"details":  ev.Details,
		}))
	}

	log.Debug("monitoring: check complete",
		zap.Float64("percent", snap.Percent),
		zap.Int("events", len(events)),
	)
	return events, nil
}

// milestones claims each crossed milestone flag. Only the check that wins
// the flag emits the event.
func (m *Monitor) milestones(ctx context.Context, snap *Snapshot) ([]notify.Event, error) {
	var events []notify.Event
	job := snap.Job
	for _, ms := range model.Milestones {
		if job.Notified(ms) || snap.Percent < float64(ms) {
			continue
		}
		won, err := m.store.MarkMilestone(ctx, job.ID, ms)
		if err != nil {
			return events, err
		}
		if !won {
			continue
		}
		metrics.MilestoneFired(strconv.Itoa(ms))
		events = append(events, notify.New(notify.KindMilestone,
			fmt.Sprintf("Job %d%% complete", ms),
			fmt.Sprintf("%d of %d clients processed (%d succeeded, %d failed)",
				job.Processed, job.TotalClients, job.Succeeded, job.Failed),
			map[string]any{"job_id": job.ID, "milestone": ms, "percent": snap.Percent},
		))
	}
	return events, nil
}
