package db

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// InsertConfig defines a single-row insert keyed on a unique column set.
type InsertConfig struct {
	Table        string   // target table (e.g., "markets")
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	Returning    string   // column returned when the row is inserted; empty for none
}

// InsertIgnoreSQL builds INSERT ... ON CONFLICT (keys) DO NOTHING. With a
// Returning column the statement yields a row only when it inserted, which
// lets one round trip both claim a unique key and report whether it won.
func InsertIgnoreSQL(d Dialect, cfg InsertConfig) (string, error) {
	if len(cfg.Columns) == 0 {
		return "", eris.New("db: insert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return "", eris.New("db: insert: no conflict keys specified")
	}

	ph := make([]string, len(cfg.Columns))
	for i := range cfg.Columns {
		ph[i] = d.P(i + 1)
	}

	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		Ident(cfg.Table),
		quoteAndJoin(cfg.Columns),
		strings.Join(ph, ", "),
		quoteAndJoin(cfg.ConflictKeys),
	)
	if cfg.Returning != "" {
		q += " RETURNING " + Ident(cfg.Returning)
	}
	return q, nil
}

// UpdateSQL builds UPDATE table SET c1 = $1, ... WHERE key = $n. The key
// value is bound last.
func UpdateSQL(d Dialect, table string, cols []string, key string) (string, error) {
	if len(cols) == 0 {
		return "", eris.New("db: update: no columns specified")
	}
	set := make([]string, len(cols))
	for i, c := range cols {
		set[i] = fmt.Sprintf("%s = %s", Ident(c), d.P(i+1))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		Ident(table), strings.Join(set, ", "), Ident(key), d.P(len(cols)+1),
	), nil
}

// SelectSQL builds SELECT cols FROM table WHERE key = $1 with the dialect's
// row lock when lock is set.
func SelectSQL(d Dialect, table string, cols []string, key string, lock bool) string {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		quoteAndJoin(cols), Ident(table), Ident(key), d.P(1))
	if lock {
		q += d.ForUpdate
	}
	return q
}

// InsertRowsSQL builds a multi-row INSERT for rows rows of len(cols) values.
func InsertRowsSQL(d Dialect, table string, cols []string, rows int) (string, error) {
	if len(cols) == 0 {
		return "", eris.New("db: insert rows: no columns specified")
	}
	if rows <= 0 {
		return "", eris.New("db: insert rows: no rows")
	}
	groups := make([]string, rows)
	n := 1
	for r := 0; r < rows; r++ {
		ph := make([]string, len(cols))
		for c := range cols {
			ph[c] = d.P(n)
			n++
		}
		groups[r] = "(" + strings.Join(ph, ", ") + ")"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		Ident(table), quoteAndJoin(cols), strings.Join(groups, ", "),
	), nil
}
