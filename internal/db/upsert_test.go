package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertIgnoreSQL(t *testing.T) {
	q, err := InsertIgnoreSQL(Postgres, InsertConfig{
		Table:        "markets",
		Columns:      []string{"fingerprint", "name"},
		ConflictKeys: []string{"fingerprint"},
		Returning:    "id",
	})
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "markets" ("fingerprint", "name") VALUES ($1, $2) ON CONFLICT ("fingerprint") DO NOTHING RETURNING "id"`,
		q)
}

func TestInsertIgnoreSQL_SQLite(t *testing.T) {
	q, err := InsertIgnoreSQL(SQLite, InsertConfig{
		Table:        "markets",
		Columns:      []string{"fingerprint", "name"},
		ConflictKeys: []string{"fingerprint"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "markets" ("fingerprint", "name") VALUES (?1, ?2) ON CONFLICT ("fingerprint") DO NOTHING`,
		q)
}

func TestInsertIgnoreSQL_NoColumns(t *testing.T) {
	_, err := InsertIgnoreSQL(Postgres, InsertConfig{
		Table:        "markets",
		ConflictKeys: []string{"id"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestInsertIgnoreSQL_NoConflictKeys(t *testing.T) {
	_, err := InsertIgnoreSQL(Postgres, InsertConfig{
		Table:   "markets",
		Columns: []string{"id", "name"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestUpdateSQL(t *testing.T) {
	q, err := UpdateSQL(Postgres, "clients", []string{"website", "city"}, "id")
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "clients" SET "website" = $1, "city" = $2 WHERE "id" = $3`, q)

	_, err = UpdateSQL(Postgres, "clients", nil, "id")
	assert.Error(t, err)
}

func TestSelectSQL(t *testing.T) {
	cols := []string{"id", "name"}
	assert.Equal(t,
		`SELECT "id", "name" FROM "leads" WHERE "fingerprint" = $1 FOR UPDATE`,
		SelectSQL(Postgres, "leads", cols, "fingerprint", true))
	assert.Equal(t,
		`SELECT "id", "name" FROM "leads" WHERE "fingerprint" = ?1`,
		SelectSQL(SQLite, "leads", cols, "fingerprint", true))
	assert.Equal(t,
		`SELECT "id", "name" FROM "leads" WHERE "fingerprint" = $1`,
		SelectSQL(Postgres, "leads", cols, "fingerprint", false))
}

func TestInsertRowsSQL(t *testing.T) {
	q, err := InsertRowsSQL(SQLite, "job_items", []string{"job_id", "client_id"}, 2)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "job_items" ("job_id", "client_id") VALUES (?1, ?2), (?3, ?4)`, q)

	_, err = InsertRowsSQL(SQLite, "job_items", []string{"job_id"}, 0)
	assert.Error(t, err)
}

func TestIdent(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.clients", `"public"."clients"`},
		{`bad"name`, `"bad""name"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Ident(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"id", "name", "value"})
	assert.Equal(t, `"id", "name", "value"`, result)
}

func TestRebind(t *testing.T) {
	q := "UPDATE jobs SET processed = processed + 1 WHERE id = $1 AND status = $12"
	assert.Equal(t, q, Postgres.Rebind(q))
	assert.Equal(t, "UPDATE jobs SET processed = processed + 1 WHERE id = ?1 AND status = ?12", SQLite.Rebind(q))
	assert.Equal(t, "SELECT '$' || name FROM t", SQLite.Rebind("SELECT '$' || name FROM t"))
}
