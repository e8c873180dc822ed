package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_Build(t *testing.T) {
	q := NewQuery(Postgres, "SELECT id, name FROM leads", "market_id", "quality_score", "name", "created_at").
		Eq("market_id", int64(7)).
		Gte("quality_score", 60).
		Contains("name", "Acme").
		OrderBy("created_at", true).
		Page(10, 20)

	sql, args, err := q.Build()
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT id, name FROM leads WHERE "market_id" = $1 AND "quality_score" >= $2 AND LOWER("name") LIKE $3 ESCAPE '\' ORDER BY "created_at" DESC LIMIT $4 OFFSET $5`,
		sql)
	assert.Equal(t, []any{int64(7), 60, "%acme%", 10, 20}, args)
}

func TestQuery_ContainsEscapesWildcards(t *testing.T) {
	sql, args, err := NewQuery(SQLite, "SELECT id FROM leads", "name").Contains("name", `50%_OFF\`).Build()
	require.NoError(t, err)
	assert.Equal(t, `SELECT id FROM leads WHERE LOWER("name") LIKE ?1 ESCAPE '\'`, sql)
	assert.Equal(t, []any{`%50\%\_off\\%`}, args)
}

func TestQuery_NoFilters(t *testing.T) {
	sql, args, err := NewQuery(SQLite, "SELECT id FROM clients", "name").Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM clients", sql)
	assert.Empty(t, args)
}

func TestQuery_RejectsUnknownColumn(t *testing.T) {
	_, _, err := NewQuery(Postgres, "SELECT id FROM leads", "name").
		Eq("name; DROP TABLE leads", "x").
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not filterable")
}

func TestQuery_InjectionStaysBound(t *testing.T) {
	evil := "x' OR '1'='1"
	sql, args, err := NewQuery(SQLite, "SELECT id FROM leads", "name").Eq("name", evil).Build()
	require.NoError(t, err)
	assert.NotContains(t, sql, evil)
	assert.Equal(t, []any{evil}, args)
	assert.Equal(t, `SELECT id FROM leads WHERE "name" = ?1`, sql)
}

func TestQuery_In(t *testing.T) {
	sql, args, err := NewQuery(Postgres, "SELECT id FROM jobs", "status").
		In("status", "running", "paused").Build()
	require.NoError(t, err)
	assert.Equal(t, `SELECT id FROM jobs WHERE "status" IN ($1, $2)`, sql)
	assert.Len(t, args, 2)

	sql, _, err = NewQuery(Postgres, "SELECT id FROM jobs", "status").In("status").Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM jobs WHERE 1 = 0", sql)
}
