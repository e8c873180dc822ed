package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadgen-enrich/internal/model"
)

type fakeSQLiteErr struct{ code int }

func (e *fakeSQLiteErr) Error() string { return "sqlite error" }
func (e *fakeSQLiteErr) Code() int     { return e.code }

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(pgx.ErrNoRows))
	assert.True(t, IsNoRows(sql.ErrNoRows))
	assert.False(t, IsNoRows(errors.New("boom")))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"pg unique", &pgconn.PgError{Code: "23505"}, model.ErrConstraintViolation},
		{"pg connection", &pgconn.PgError{Code: "08006"}, model.ErrStoreUnavailable},
		{"pg shutdown", &pgconn.PgError{Code: "57P01"}, model.ErrStoreUnavailable},
		{"sqlite unique", &fakeSQLiteErr{code: 2067}, model.ErrConstraintViolation},
		{"sqlite busy", &fakeSQLiteErr{code: 5}, model.ErrStoreUnavailable},
		{"bad conn", driver.ErrBadConn, model.ErrStoreUnavailable},
		{"conn done", sql.ErrConnDone, model.ErrStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, "op")
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	assert.NoError(t, Classify(nil, "op"))

	err := Classify(context.DeadlineExceeded, "op")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, model.ErrStoreUnavailable)

	err = Classify(errors.New("syntax error"), "op")
	assert.NotErrorIs(t, err, model.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, model.ErrConstraintViolation)
	assert.Contains(t, err.Error(), "syntax error")
}
