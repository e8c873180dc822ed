package history

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-enrich/internal/db"
	"github.com/sells-group/leadgen-enrich/internal/model"
)

func newMockRecorder(t *testing.T) (*Recorder, pgxmock.PgxPoolIface, db.TxConn) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	r := NewRecorder(db.Postgres)
	r.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	return r, mock, db.NewPgxConn(mock)
}

func TestRecorder_Created(t *testing.T) {
	r, mock, conn := newMockRecorder(t)

	mock.ExpectExec(`INSERT INTO "entity_history"`).
		WithArgs(pgxmock.AnyArg(), "market", "m1", "*", (*string)(nil), pgxmock.AnyArg(), "created", "pipeline", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := r.Created(context.Background(), conn, model.EntityMarket, "m1", model.Record{"name": "Embalagens"}, "pipeline")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_Updated(t *testing.T) {
	r, mock, conn := newMockRecorder(t)

	mock.ExpectExec(`INSERT INTO "entity_history" .* VALUES \(\$1.*\), \(\$10.*\)`).
		WithArgs(
			pgxmock.AnyArg(), "market", "m1", "market_size", pgxmock.AnyArg(), pgxmock.AnyArg(), "updated", "pipeline", pgxmock.AnyArg(),
			pgxmock.AnyArg(), "market", "m1", "segment", pgxmock.AnyArg(), pgxmock.AnyArg(), "updated", "pipeline", pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	changes := []model.Change{
		{Field: "market_size", OldValue: ptr("a"), NewValue: ptr("b")},
		{Field: "segment", NewValue: ptr("B2B")},
	}
	err := r.Updated(context.Background(), conn, model.EntityMarket, "m1", changes, "pipeline")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_UpdatedNoChanges(t *testing.T) {
	r, mock, conn := newMockRecorder(t)

	err := r.Updated(context.Background(), conn, model.EntityMarket, "m1", nil, "pipeline")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_List(t *testing.T) {
	r, mock, conn := newMockRecorder(t)
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM entity_history WHERE entity_type = \$1 AND entity_id = \$2`).
		WithArgs("market", "m1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "entity_type", "entity_id", "field", "old_value", "new_value", "kind", "actor", "created_at"}).
			AddRow("h1", "market", "m1", "*", nil, ptr(`{"name":"Embalagens"}`), "created", "pipeline", ts).
			AddRow("h2", "market", "m1", "market_size", ptr("a"), ptr("b"), "updated", "pipeline", ts))

	entries, err := r.List(context.Background(), conn, model.EntityMarket, "m1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ChangeCreated, entries[0].Kind)
	assert.Nil(t, entries[0].OldValue)
	assert.Equal(t, "market_size", entries[1].Field)
	assert.Equal(t, "b", *entries[1].NewValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}
