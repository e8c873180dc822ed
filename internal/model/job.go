package model

import "time"

// JobStatus is the lifecycle state of an enrichment job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobPaused    JobStatus = "paused"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
)

// Milestones are the progress percentages that notify once per job.
var Milestones = []int{50, 75, 100}

// Job is one batch enrichment run over an ordered list of clients.
type Job struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id"`
	Status       JobStatus  `json:"status"`
	Message      string     `json:"message,omitempty"`
	TotalClients int        `json:"total_clients"`
	Processed    int        `json:"processed_clients"`
	Succeeded    int        `json:"succeeded_clients"`
	Failed       int        `json:"failed_clients"`
	BatchSize    int        `json:"batch_size"`
	Concurrency  int        `json:"concurrency"`
	TotalBatches int        `json:"total_batches"`
	CurrentBatch int        `json:"current_batch"`
	LastClientID string     `json:"last_client_id,omitempty"`
	Notified50   bool       `json:"notified_50"`
	Notified75   bool       `json:"notified_75"`
	Notified100  bool       `json:"notified_100"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Percent returns processed/total as a percentage in [0, 100].
func (j Job) Percent() float64 {
	if j.TotalClients <= 0 {
		return 0
	}
	return float64(j.Processed) / float64(j.TotalClients) * 100
}

// Notified reports whether the given milestone flag is set.
func (j Job) Notified(milestone int) bool {
	switch milestone {
	case 50:
		return j.Notified50
	case 75:
		return j.Notified75
	case 100:
		return j.Notified100
	}
	return false
}

// ErrorRate returns failed/processed, or zero before any item completes.
func (j Job) ErrorRate() float64 {
	if j.Processed == 0 {
		return 0
	}
	return float64(j.Failed) / float64(j.Processed)
}

// Terminal reports whether no further processing will happen without an
// explicit resume.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobError
}

// ItemState is the checkpoint state of one client within a job.
type ItemState string

const (
	ItemPending   ItemState = "pending"
	ItemSucceeded ItemState = "succeeded"
	ItemFailed    ItemState = "failed"
)

// JobItem is one client's slot in a job's ordered work list.
type JobItem struct {
	JobID    string    `json:"job_id"`
	ClientID string    `json:"client_id"`
	Position int       `json:"position"`
	State    ItemState `json:"state"`
}

// ItemFailure records why a client failed so it can be retried.
type ItemFailure struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	ClientID  string    `json:"client_id"`
	Stage     int       `json:"stage"`
	StageName string    `json:"stage_name"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
