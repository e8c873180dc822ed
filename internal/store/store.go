// Package store persists entities, jobs and alerts on Postgres or SQLite.
// Both backends share one SQL core; they differ only in dialect and schema.
package store

import (
	"context"
	"time"

	"github.com/sells-group/leadgen-enrich/internal/dedup"
	"github.com/sells-group/leadgen-enrich/internal/model"
)

// ClientFilter specifies criteria for listing clients.
type ClientFilter struct {
	ProjectID string `json:"project_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// PartyFilter specifies criteria for listing competitors or leads.
type PartyFilter struct {
	ProjectID string                 `json:"project_id,omitempty"`
	MarketID  string                 `json:"market_id,omitempty"`
	Tier      string                 `json:"tier,omitempty"`
	Status    model.ValidationStatus `json:"status,omitempty"`
	State     string                 `json:"state,omitempty"`
	Name      string                 `json:"name,omitempty"`
	MinScore  int                    `json:"min_score,omitempty"`
	Limit     int                    `json:"limit,omitempty"`
	Offset    int                    `json:"offset,omitempty"`
}

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	ProjectID string            `json:"project_id,omitempty"`
	Statuses  []model.JobStatus `json:"statuses,omitempty"`
	Limit     int               `json:"limit,omitempty"`
}

// MarketCount is the number of leads discovered in one market.
type MarketCount struct {
	MarketID string `json:"market_id"`
	Name     string `json:"name"`
	Leads    int    `json:"leads"`
}

// Store defines the persistence interface for the enrichment pipeline.
type Store interface {
	// Entities
	Upsert(ctx context.Context, req dedup.Request) (*dedup.Result, error)
	GetClient(ctx context.Context, id string) (*model.Client, error)
	ListClients(ctx context.Context, filter ClientFilter) ([]model.Client, error)
	GetMarket(ctx context.Context, id string) (*model.Market, error)
	AssociateMarket(ctx context.Context, cm model.ClientMarket) error
	ClientMarkets(ctx context.Context, clientID string) ([]model.Market, error)
	PartyNames(ctx context.Context, entity model.EntityType, marketID string) ([]string, error)
	ListParties(ctx context.Context, entity model.EntityType, filter PartyFilter) ([]model.Party, error)
	ListHistory(ctx context.Context, entity model.EntityType, id string) ([]model.HistoryEntry, error)

	// Jobs
	CreateJob(ctx context.Context, job *model.Job, clientIDs []string) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	SetJobStatus(ctx context.Context, id string, to model.JobStatus, message string, from ...model.JobStatus) (bool, error)
	SetBatchProgress(ctx context.Context, id string, current, total int) error
	ListItems(ctx context.Context, jobID string, state model.ItemState) ([]model.JobItem, error)
	RecordItem(ctx context.Context, jobID, clientID string, state model.ItemState) (bool, error)
	RecordFailure(ctx context.Context, f *model.ItemFailure) error
	ListFailures(ctx context.Context, jobID string) ([]model.ItemFailure, error)
	MarkMilestone(ctx context.Context, jobID string, milestone int) (bool, error)

	// Alerts
	SaveAlertConfig(ctx context.Context, cfg *model.AlertConfig) error
	ListAlertConfigs(ctx context.Context, projectID string) ([]model.AlertConfig, error)
	TouchAlert(ctx context.Context, alertID string, at time.Time) error
	RecordAlertEvent(ctx context.Context, ev *model.AlertEvent) error
	ListAlertEvents(ctx context.Context, jobID string) ([]model.AlertEvent, error)

	// Statistics
	LastLead(ctx context.Context, projectID string, since time.Time) (*model.Party, error)
	LeadCountsByMarket(ctx context.Context, projectID string) ([]MarketCount, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
