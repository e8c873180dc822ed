// Package history detects field-level changes between record versions and
// persists them as an append-only audit log.
package history

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sells-group/leadgen-enrich/internal/model"
)

// Stringify renders a stored or candidate value in the uniform string form
// kept in history rows. Nil maps to nil.
func Stringify(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case *string:
		if t == nil {
			return nil
		}
		s = *t
	case string:
		s = t
	case []byte:
		s = string(t)
	case int:
		s = strconv.Itoa(t)
	case int32:
		s = strconv.FormatInt(int64(t), 10)
	case int64:
		s = strconv.FormatInt(t, 10)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	case time.Time:
		s = t.UTC().Format(time.RFC3339Nano)
	default:
		s = fmt.Sprint(t)
	}
	return &s
}

// Diff compares the tracked fields of old and cand. A field absent from
// cand is left untouched and never reported; nil on both sides is no
// change. Values are compared by their string form.
func Diff(old, cand model.Record, fields []string) []model.Change {
	var changes []model.Change
	for _, f := range fields {
		nv, ok := cand[f]
		if !ok {
			continue
		}
		os, ns := Stringify(old[f]), Stringify(nv)
		if equal(os, ns) {
			continue
		}
		changes = append(changes, model.Change{Field: f, OldValue: os, NewValue: ns})
	}
	return changes
}

func equal(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
