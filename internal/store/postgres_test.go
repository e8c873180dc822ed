package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-enrich/internal/model"
)

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := newPostgresFromPool(mock, nil)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func TestPostgresStore_GetJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, project_id, status, .* FROM jobs WHERE id = \$1`).
		WithArgs("nonexistent-job").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetJob(context.Background(), "nonexistent-job")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordItem(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE job_items SET state = \$1\s+WHERE job_id = \$2 AND client_id = \$3 AND state = 'pending'`).
		WithArgs("succeeded", "job-1", "client-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE jobs SET processed = processed \+ 1,\s+succeeded = succeeded \+ \$1, failed = failed \+ \$2`).
		WithArgs(1, 0, "client-1", fixedNow, "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	ok, err := s.RecordItem(context.Background(), "job-1", "client-1", model.ItemSucceeded)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordItem_AlreadyRecorded(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE job_items SET state`).
		WithArgs("failed", "job-1", "client-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectCommit()

	ok, err := s.RecordItem(context.Background(), "job-1", "client-1", model.ItemFailed)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkMilestone(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE jobs SET notified_75 = TRUE, updated_at = \$1\s+WHERE id = \$2 AND notified_75 = FALSE`).
		WithArgs(fixedNow, "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE jobs SET notified_75 = TRUE`).
		WithArgs(fixedNow, "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	won, err := s.MarkMilestone(context.Background(), "job-1", 75)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = s.MarkMilestone(context.Background(), "job-1", 75)
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetJobStatus_CompareAndSet(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE jobs SET status = \$1, .* WHERE id = \$6 AND status IN \(\$7, \$8\)`).
		WithArgs("running", "", fixedNow, fixedNow, nil, "job-1", "pending", "paused").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := s.SetJobStatus(context.Background(), "job-1", model.JobRunning, "", model.JobPending, model.JobPaused)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListParties_Parameterized(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM \(SELECT p\.\*, m\.project_id FROM "leads" p JOIN markets m ON m\.id = p\.market_id\) parties WHERE "project_id" = \$1 AND "quality_score" >= \$2 ORDER BY "quality_score" DESC LIMIT \$3`).
		WithArgs("p1", 60, 100).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "market_id", "name", "website", "tax_id", "city", "state", "size", "description",
			"quality_score", "quality_tier", "validation_status", "created_at", "updated_at",
		}).AddRow("l1", "m1", "Acme", nil, nil, nil, nil, nil, nil, 70, strPtr("medium"), strPtr("pending"), fixedNow, fixedNow))

	leads, err := s.ListParties(context.Background(), model.EntityLead, PartyFilter{ProjectID: "p1", MinScore: 60})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Acme", leads[0].Name)
	assert.Equal(t, model.TierMedium, leads[0].QualityTier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(pgxmock.AnyArg(), "p1", "pending", "", 3, 5, 2, 1, fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO "job_items" \("job_id", "client_id", "position", "state"\) VALUES \(\$1, \$2, \$3, \$4\), \(\$5`).
		WithArgs(
			pgxmock.AnyArg(), "a", 0, "pending",
			pgxmock.AnyArg(), "b", 1, "pending",
			pgxmock.AnyArg(), "c", 2, "pending",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 3))
	mock.ExpectCommit()

	job := &model.Job{ProjectID: "p1", BatchSize: 5, Concurrency: 2, TotalBatches: 1}
	require.NoError(t, s.CreateJob(context.Background(), job, []string{"a", "b", "c"}))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, 3, job.TotalClients)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS clients`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
