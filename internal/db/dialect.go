package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Dialect captures the SQL differences between the supported backends.
type Dialect struct {
	Name string
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
	// ForUpdate is appended to row-locking selects; empty when the backend
	// serializes writers itself.
	ForUpdate string
}

var (
	// Postgres binds $1..$n and locks rows with FOR UPDATE.
	Postgres = Dialect{
		Name:        "postgres",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		ForUpdate:   " FOR UPDATE",
	}
	// SQLite binds ?1..?n; its single writer makes row locks unnecessary.
	SQLite = Dialect{
		Name:        "sqlite",
		placeholder: func(n int) string { return fmt.Sprintf("?%d", n) },
	}
)

// P renders the n-th bind parameter.
func (d Dialect) P(n int) string {
	return d.placeholder(n)
}

// Rebind rewrites a query written with $n placeholders for this dialect.
// Queries are authored once in Postgres form and rebound for SQLite.
func (d Dialect) Rebind(query string) string {
	if d.Name == Postgres.Name {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			j := i + 1
			for j < len(query) && query[j] >= '0' && query[j] <= '9' {
				j++
			}
			n, _ := strconv.Atoi(query[i+1 : j])
			b.WriteString(d.P(n))
			i = j - 1
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Ident quotes a possibly schema-qualified identifier.
func Ident(name string) string {
	parts := strings.SplitN(name, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{name}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = Ident(c)
	}
	return strings.Join(quoted, ", ")
}
