package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-enrich/internal/db"
	"github.com/sells-group/leadgen-enrich/internal/model"
)

const table = "entity_history"

var columns = []string{
	"id", "entity_type", "entity_id", "field", "old_value", "new_value", "kind", "actor", "created_at",
}

// Recorder appends history entries through the caller's connection, which
// is normally the transaction that performed the owning write.
type Recorder struct {
	d   db.Dialect
	now func() time.Time
}

// NewRecorder creates a Recorder for the given dialect.
func NewRecorder(d db.Dialect) *Recorder {
	return &Recorder{d: d, now: func() time.Time { return time.Now().UTC() }}
}

// Created writes the single entry for a newly inserted record; its new
// value is the JSON of the initial field set.
func (r *Recorder) Created(ctx context.Context, conn db.Conn, entity model.EntityType, id string, fields model.Record, actor string) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrap(err, "history: marshal initial fields")
	}
	v := string(raw)
	return r.write(ctx, conn, entity, id, model.ChangeCreated, []model.Change{{Field: model.CreatedField, NewValue: &v}}, actor)
}

// Updated writes one entry per changed field. No changes writes nothing.
func (r *Recorder) Updated(ctx context.Context, conn db.Conn, entity model.EntityType, id string, changes []model.Change, actor string) error {
	return r.write(ctx, conn, entity, id, model.ChangeUpdated, changes, actor)
}

func (r *Recorder) write(ctx context.Context, conn db.Conn, entity model.EntityType, id string, kind model.ChangeKind, changes []model.Change, actor string) error {
	if len(changes) == 0 {
		return nil
	}
	q, err := db.InsertRowsSQL(r.d, table, columns, len(changes))
	if err != nil {
		return err
	}
	now := r.now()
	args := make([]any, 0, len(changes)*len(columns))
	for _, c := range changes {
		args = append(args,
			uuid.NewString(), string(entity), id, c.Field, c.OldValue, c.NewValue, string(kind), actor, now,
		)
	}
	if _, err := conn.Exec(ctx, q, args...); err != nil {
		return db.Classify(err, "history: insert entries")
	}
	return nil
}

// List returns the entries of one entity, oldest first.
func (r *Recorder) List(ctx context.Context, conn db.Conn, entity model.EntityType, id string) ([]model.HistoryEntry, error) {
	q := r.d.Rebind(`SELECT id, entity_type, entity_id, field, old_value, new_value, kind, actor, created_at
		FROM entity_history WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, field`)
	rows, err := conn.Query(ctx, q, string(entity), id)
	if err != nil {
		return nil, db.Classify(err, "history: list entries")
	}
	defer rows.Close()

	var out []model.HistoryEntry
	for rows.Next() {
		var (
			e          model.HistoryEntry
			entityType string
			kind       string
		)
		if err := rows.Scan(&e.ID, &entityType, &e.EntityID, &e.Field, &e.OldValue, &e.NewValue, &kind, &e.Actor, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "history: scan entry")
		}
		e.EntityType = model.EntityType(entityType)
		e.Kind = model.ChangeKind(kind)
		out = append(out, e)
	}
	return out, db.Classify(rows.Err(), "history: iterate entries")
}
