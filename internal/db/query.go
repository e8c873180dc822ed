package db

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Query assembles a parameterized SELECT. Every column it touches must
// be registered up front; values are always bound, never interpolated.
type Query struct {
	d       Dialect
	base    string
	allowed map[string]bool
	conds   []string
	args    []any
	order   string
	limit   int
	offset  int
	err     error
}

// NewQuery starts a query from base (a SELECT ... FROM ... clause without
// WHERE) restricted to the given filterable columns.
func NewQuery(d Dialect, base string, columns ...string) *Query {
	allowed := make(map[string]bool, len(columns))
	for _, c := range columns {
		allowed[c] = true
	}
	return &Query{d: d, base: base, allowed: allowed}
}

func (q *Query) column(col string) (string, bool) {
	if q.err != nil {
		return "", false
	}
	if !q.allowed[col] {
		q.err = eris.Errorf("db: query: column %q is not filterable", col)
		return "", false
	}
	return Ident(col), true
}

func (q *Query) bind(v any) string {
	q.args = append(q.args, v)
	return q.d.P(len(q.args))
}

func (q *Query) cmp(col, op string, v any) *Query {
	if c, ok := q.column(col); ok {
		q.conds = append(q.conds, fmt.Sprintf("%s %s %s", c, op, q.bind(v)))
	}
	return q
}

// Eq adds col = v.
func (q *Query) Eq(col string, v any) *Query { return q.cmp(col, "=", v) }

// Gte adds col >= v.
func (q *Query) Gte(col string, v any) *Query { return q.cmp(col, ">=", v) }

// Lte adds col <= v.
func (q *Query) Lte(col string, v any) *Query { return q.cmp(col, "<=", v) }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Contains adds a case-insensitive substring match on col. LIKE
// wildcards in substr match literally.
func (q *Query) Contains(col, substr string) *Query {
	if c, ok := q.column(col); ok {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(substr)) + "%"
		q.conds = append(q.conds, fmt.Sprintf(`LOWER(%s) LIKE %s ESCAPE '\'`, c, q.bind(pattern)))
	}
	return q
}

// In adds col IN (...). An empty set matches nothing.
func (q *Query) In(col string, vals ...any) *Query {
	c, ok := q.column(col)
	if !ok {
		return q
	}
	if len(vals) == 0 {
		q.conds = append(q.conds, "1 = 0")
		return q
	}
	ph := make([]string, len(vals))
	for i, v := range vals {
		ph[i] = q.bind(v)
	}
	q.conds = append(q.conds, fmt.Sprintf("%s IN (%s)", c, strings.Join(ph, ", ")))
	return q
}

// OrderBy sets the sort column.
func (q *Query) OrderBy(col string, desc bool) *Query {
	if c, ok := q.column(col); ok {
		q.order = c
		if desc {
			q.order += " DESC"
		}
	}
	return q
}

// Page sets LIMIT and OFFSET. Zero limit means unbounded.
func (q *Query) Page(limit, offset int) *Query {
	q.limit, q.offset = limit, offset
	return q
}

// Build returns the final SQL and its arguments.
func (q *Query) Build() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	var b strings.Builder
	b.WriteString(q.base)
	if len(q.conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.conds, " AND "))
	}
	if q.order != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.order)
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %s", q.bind(q.limit))
		if q.offset > 0 {
			fmt.Fprintf(&b, " OFFSET %s", q.bind(q.offset))
		}
	}
	return b.String(), q.args, nil
}
