package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-enrich/internal/db"
	"github.com/sells-group/leadgen-enrich/internal/model"
)

const jobColumns = `id, project_id, status, message, total_clients, processed, succeeded, failed,
	batch_size, concurrency, total_batches, current_batch, last_client_id,
	notified_50, notified_75, notified_100, created_at, updated_at, started_at, completed_at`

// itemChunk bounds the rows per multi-row insert of job items.
const itemChunk = 500

var milestoneColumns = map[int]string{
	50:  "notified_50",
	75:  "notified_75",
	100: "notified_100",
}

// CreateJob persists a job and its ordered work list in one transaction.
// TotalClients is taken from clientIDs.
func (s *sqlStore) CreateJob(ctx context.Context, job *model.Job, clientIDs []string) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = model.JobPending
	}
	now := s.now()
	job.CreatedAt, job.UpdatedAt = now, now
	job.TotalClients = len(clientIDs)

	return s.conn.InTx(ctx, func(tx db.Conn) error {
		_, err := tx.Exec(ctx, s.q(`INSERT INTO jobs (id, project_id, status, message, total_clients,
			batch_size, concurrency, total_batches, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`),
			job.ID, job.ProjectID, string(job.Status), job.Message, job.TotalClients,
			job.BatchSize, job.Concurrency, job.TotalBatches, now, now,
		)
		if err != nil {
			return db.Classify(err, "store: insert job")
		}

		cols := []string{"job_id", "client_id", "position", "state"}
		for start := 0; start < len(clientIDs); start += itemChunk {
			end := min(start+itemChunk, len(clientIDs))
			q, err := db.InsertRowsSQL(s.d, "job_items", cols, end-start)
			if err != nil {
				return err
			}
			args := make([]any, 0, (end-start)*len(cols))
			for i := start; i < end; i++ {
				args = append(args, job.ID, clientIDs[i], i, string(model.ItemPending))
			}
			if _, err := tx.Exec(ctx, q, args...); err != nil {
				return db.Classify(err, "store: insert job items")
			}
		}
		return nil
	})
}

func scanJob(row db.Row) (*model.Job, error) {
	var j model.Job
	var status string
	var message, lastClient *string
	err := row.Scan(&j.ID, &j.ProjectID, &status, &message, &j.TotalClients, &j.Processed, &j.Succeeded, &j.Failed,
		&j.BatchSize, &j.Concurrency, &j.TotalBatches, &j.CurrentBatch, &lastClient,
		&j.Notified50, &j.Notified75, &j.Notified100, &j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	j.Message, j.LastClientID = deref(message), deref(lastClient)
	return &j, nil
}

func (s *sqlStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	j, err := scanJob(s.conn.QueryRow(ctx, s.q(`SELECT `+jobColumns+` FROM jobs WHERE id = $1`), id))
	if err != nil {
		return nil, notFound(err, "job", id)
	}
	return j, nil
}

func (s *sqlStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	q := db.NewQuery(s.d, `SELECT `+jobColumns+` FROM jobs`, "project_id", "status", "created_at")
	if filter.ProjectID != "" {
		q.Eq("project_id", filter.ProjectID)
	}
	if len(filter.Statuses) > 0 {
		vals := make([]any, len(filter.Statuses))
		for i, st := range filter.Statuses {
			vals[i] = string(st)
		}
		q.In("status", vals...)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	sql, args, err := q.OrderBy("created_at", false).Page(limit, 0).Build()
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, db.Classify(err, "store: list jobs")
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan job")
		}
		out = append(out, *j)
	}
	return out, db.Classify(rows.Err(), "store: list jobs")
}

// SetJobStatus moves a job to status to. When from is non-empty the update
// only applies while the current status is one of from, which makes it a
// single-row compare-and-set. It reports whether the row changed.
func (s *sqlStore) SetJobStatus(ctx context.Context, id string, to model.JobStatus, message string, from ...model.JobStatus) (bool, error) {
	now := s.now()
	var started, completed any
	if to == model.JobRunning {
		started = now
	}
	if to == model.JobCompleted {
		completed = now
	}

	query := `UPDATE jobs SET status = $1, message = $2, updated_at = $3,
		started_at = COALESCE(started_at, $4), completed_at = COALESCE($5, completed_at)
		WHERE id = $6`
	args := []any{string(to), message, now, started, completed, id}
	if len(from) > 0 {
		query += ` AND status IN (`
		for i, st := range from {
			if i > 0 {
				query += `, `
			}
			args = append(args, string(st))
			query += s.d.P(len(args))
		}
		query += `)`
	}

	n, err := s.conn.Exec(ctx, s.q(query), args...)
	if err != nil {
		return false, db.Classify(err, "store: set job status")
	}
	return n > 0, nil
}

// SetBatchProgress records the batch about to run and the planned batch count.
func (s *sqlStore) SetBatchProgress(ctx context.Context, id string, current, total int) error {
	_, err := s.conn.Exec(ctx, s.q(`UPDATE jobs SET current_batch = $1, total_batches = $2, updated_at = $3 WHERE id = $4`),
		current, total, s.now(), id)
	return db.Classify(err, "store: set batch progress")
}

// ListItems returns the job items in state, in work-list order.
func (s *sqlStore) ListItems(ctx context.Context, jobID string, state model.ItemState) ([]model.JobItem, error) {
	rows, err := s.conn.Query(ctx, s.q(`SELECT job_id, client_id, position, state FROM job_items
		WHERE job_id = $1 AND state = $2 ORDER BY position`), jobID, string(state))
	if err != nil {
		return nil, db.Classify(err, "store: list items")
	}
	defer rows.Close()

	var out []model.JobItem
	for rows.Next() {
		var it model.JobItem
		var st string
		if err := rows.Scan(&it.JobID, &it.ClientID, &it.Position, &st); err != nil {
			return nil, eris.Wrap(err, "store: scan item")
		}
		it.State = model.ItemState(st)
		out = append(out, it)
	}
	return out, db.Classify(rows.Err(), "store: list items")
}

// RecordItem checkpoints one finished client. The item leaves pending and
// the job counters advance by atomic increments in the same transaction;
// an item that already left pending is ignored, so counters never move
// twice for one client.
func (s *sqlStore) RecordItem(ctx context.Context, jobID, clientID string, state model.ItemState) (bool, error) {
	if state != model.ItemSucceeded && state != model.ItemFailed {
		return false, eris.Wrapf(model.ErrConstraintViolation, "store: invalid item state %q", state)
	}
	succeeded, failed := 0, 0
	if state == model.ItemSucceeded {
		succeeded = 1
	} else {
		failed = 1
	}

	var recorded bool
	err := s.conn.InTx(ctx, func(tx db.Conn) error {
		n, err := tx.Exec(ctx, s.q(`UPDATE job_items SET state = $1
			WHERE job_id = $2 AND client_id = $3 AND state = 'pending'`),
			string(state), jobID, clientID)
		if err != nil {
			return db.Classify(err, "store: checkpoint item")
		}
		if n == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, s.q(`UPDATE jobs SET processed = processed + 1,
			succeeded = succeeded + $1, failed = failed + $2,
			last_client_id = $3, updated_at = $4 WHERE id = $5`),
			succeeded, failed, clientID, s.now(), jobID)
		if err != nil {
			return db.Classify(err, "store: advance job counters")
		}
		recorded = true
		return nil
	})
	return recorded, err
}

func (s *sqlStore) RecordFailure(ctx context.Context, f *model.ItemFailure) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = s.now()
	_, err := s.conn.Exec(ctx, s.q(`INSERT INTO item_failures (id, job_id, client_id, stage, stage_name, kind, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`),
		f.ID, f.JobID, f.ClientID, f.Stage, f.StageName, string(f.Kind), f.Message, f.CreatedAt)
	return db.Classify(err, "store: record failure")
}

func (s *sqlStore) ListFailures(ctx context.Context, jobID string) ([]model.ItemFailure, error) {
	rows, err := s.conn.Query(ctx, s.q(`SELECT id, job_id, client_id, stage, stage_name, kind, message, created_at
		FROM item_failures WHERE job_id = $1 ORDER BY created_at`), jobID)
	if err != nil {
		return nil, db.Classify(err, "store: list failures")
	}
	defer rows.Close()

	var out []model.ItemFailure
	for rows.Next() {
		var f model.ItemFailure
		var kind string
		if err := rows.Scan(&f.ID, &f.JobID, &f.ClientID, &f.Stage, &f.StageName, &kind, &f.Message, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan failure")
		}
		f.Kind = model.ErrorKind(kind)
		out = append(out, f)
	}
	return out, db.Classify(rows.Err(), "store: list failures")
}

// MarkMilestone sets a milestone flag if it is still clear. Only the caller
// that flips the flag gets true, so concurrent checks fire at most once.
func (s *sqlStore) MarkMilestone(ctx context.Context, jobID string, milestone int) (bool, error) {
	col, ok := milestoneColumns[milestone]
	if !ok {
		return false, eris.Wrapf(model.ErrConstraintViolation, "store: unknown milestone %d", milestone)
	}
	n, err := s.conn.Exec(ctx, s.q(`UPDATE jobs SET `+col+` = TRUE, updated_at = $1
		WHERE id = $2 AND `+col+` = FALSE`), s.now(), jobID)
	if err != nil {
		return false, db.Classify(err, "store: mark milestone")
	}
	return n == 1, nil
}
