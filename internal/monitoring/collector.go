package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/store"
)

// Snapshot holds the live statistics of one job that rules are evaluated
// against.
type Snapshot struct {
	Job       model.Job           `json:"job"`
	Percent   float64             `json:"percent"`
	ErrorRate float64             `json:"error_rate"`
	LastLead  *model.Party        `json:"last_lead,omitempty"`
	Markets   []store.MarketCount `json:"markets,omitempty"`

	CollectedAt time.Time `json:"collected_at"`
}

// StatsSource is the read side of the store the collector needs.
type StatsSource interface {
	GetJob(ctx context.Context, id string) (*model.Job, error)
	LastLead(ctx context.Context, projectID string, since time.Time) (*model.Party, error)
	LeadCountsByMarket(ctx context.Context, projectID string) ([]store.MarketCount, error)
}

// Collector gathers job statistics from the store.
type Collector struct {
	store StatsSource
	now   func() time.Time
}

// NewCollector creates a new statistics collector.
func NewCollector(st StatsSource) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect reads a snapshot of the job. The last lead is taken from leads
// written since the job started.
func (c *Collector) Collect(ctx context.Context, jobID string) (*Snapshot, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		Job:         *job,
		Percent:     job.Percent(),
		ErrorRate:   job.ErrorRate(),
		CollectedAt: c.now().UTC(),
	}

	since := job.CreatedAt
	if job.StartedAt != nil {
		since = *job.StartedAt
	}
	snap.LastLead, err = c.store.LastLead(ctx, job.ProjectID, since)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: last lead")
	}

	snap.Markets, err = c.store.LeadCountsByMarket(ctx, job.ProjectID)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: lead counts")
	}
	return snap, nil
}
