package dedup

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-enrich/internal/db"
	"github.com/sells-group/leadgen-enrich/internal/history"
	"github.com/sells-group/leadgen-enrich/internal/model"
)

// DeriveFunc recomputes derived columns (quality score and tier) from the
// merged record. It runs on both the create and the update path.
type DeriveFunc func(merged model.Record) model.Record

// Request is one create-or-update of an entity.
type Request struct {
	Entity model.EntityType
	// Scope is the parent id the identity is scoped by (project, client or market).
	Scope  string
	Fields model.Record
	Actor  string
	Derive DeriveFunc
}

// Result reports the outcome of an upsert.
type Result struct {
	ID          string
	Fingerprint string
	Created     bool
	Changes     []model.Change
}

// Store performs fingerprint-keyed upserts with history in one transaction.
type Store struct {
	conn    db.TxConn
	d       db.Dialect
	history *history.Recorder
	now     func() time.Time
}

// NewStore creates a Store over conn.
func NewStore(conn db.TxConn, d db.Dialect) *Store {
	return &Store{
		conn:    conn,
		d:       d,
		history: history.NewRecorder(d),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upsert inserts the record if its fingerprint is new, otherwise writes
// only the fields that differ from the stored row. The unique fingerprint
// constraint arbitrates concurrent inserts of the same identity.
func (s *Store) Upsert(ctx context.Context, req Request) (*Result, error) {
	def, ok := model.DefFor(req.Entity)
	if !ok {
		return nil, eris.Wrapf(model.ErrConstraintViolation, "dedup: unknown entity type %q", req.Entity)
	}
	if err := validate(def, req); err != nil {
		return nil, err
	}

	fp := Fingerprint(def.Type, req.Scope, def.KeyColumns, req.Fields)
	res := &Result{Fingerprint: fp}

	err := s.conn.InTx(ctx, func(tx db.Conn) error {
		id, created, err := s.insert(ctx, tx, def, req, fp)
		if err != nil {
			return err
		}
		if created {
			res.ID, res.Created = id, true
			return nil
		}
		res.ID, res.Changes, err = s.update(ctx, tx, def, req, fp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func validate(def model.EntityDef, req Request) error {
	if Normalize(req.Scope) == "" {
		return eris.Wrapf(model.ErrConstraintViolation, "dedup: %s: empty %s", def.Type, def.ScopeColumn)
	}
	for _, k := range def.RequiredKeys {
		v := history.Stringify(req.Fields[k])
		if v == nil || Normalize(*v) == "" {
			return eris.Wrapf(model.ErrConstraintViolation, "dedup: %s: empty natural key %s", def.Type, k)
		}
	}
	for col := range req.Fields {
		if !def.Tracks(col) {
			return eris.Wrapf(model.ErrConstraintViolation, "dedup: %s: unknown field %s", def.Type, col)
		}
	}
	return nil
}

// insert claims the fingerprint. It reports created=false with the
// existing row's id when the fingerprint is already taken.
func (s *Store) insert(ctx context.Context, tx db.Conn, def model.EntityDef, req Request, fp string) (string, bool, error) {
	fields := req.Fields.Clone()
	if req.Derive != nil {
		for k, v := range req.Derive(fields.Clone()) {
			fields[k] = v
		}
	}

	now := s.now()
	id := uuid.NewString()
	cols := []string{"id", "fingerprint", def.ScopeColumn, "created_at", "updated_at"}
	args := []any{id, fp, req.Scope, now, now}
	for _, f := range sortedKeys(fields) {
		cols = append(cols, f)
		args = append(args, fields[f])
	}

	q, err := db.InsertIgnoreSQL(s.d, db.InsertConfig{
		Table:        def.Table,
		Columns:      cols,
		ConflictKeys: []string{"fingerprint"},
		Returning:    "id",
	})
	if err != nil {
		return "", false, err
	}

	var got string
	if err := tx.QueryRow(ctx, q, args...).Scan(&got); err != nil {
		if db.IsNoRows(err) {
			return "", false, nil
		}
		return "", false, db.Classify(err, "dedup: insert "+string(def.Type))
	}
	if err := s.history.Created(ctx, tx, def.Type, got, fields, req.Actor); err != nil {
		return "", false, err
	}
	return got, true, nil
}

// update loads the row holding fp, diffs it against the candidate and
// writes only the changed columns. It returns the stored row's id even
// when nothing changed.
func (s *Store) update(ctx context.Context, tx db.Conn, def model.EntityDef, req Request, fp string) (string, []model.Change, error) {
	cols := append([]string{"id"}, def.Fields...)
	vals := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	q := db.SelectSQL(s.d, def.Table, cols, "fingerprint", true)
	if err := tx.QueryRow(ctx, q, fp).Scan(dest...); err != nil {
		return "", nil, db.Classify(err, "dedup: load "+string(def.Type))
	}

	id := *history.Stringify(vals[0])
	stored := make(model.Record, len(def.Fields))
	for i, f := range def.Fields {
		stored[f] = vals[i+1]
	}

	cand := req.Fields.Clone()
	// Key columns keep their stored spelling; a variant that normalizes to
	// the same identity is not a change.
	for _, k := range def.KeyColumns {
		sv, cv := history.Stringify(stored[k]), history.Stringify(cand[k])
		if sv != nil && cv != nil && Normalize(*sv) == Normalize(*cv) {
			delete(cand, k)
		}
	}
	if req.Derive != nil {
		merged := stored.Clone()
		for k, v := range cand {
			merged[k] = v
		}
		for k, v := range req.Derive(merged) {
			cand[k] = v
		}
	}

	changes := history.Diff(stored, cand, def.Fields)
	if len(changes) == 0 {
		return id, nil, nil
	}

	set := make([]string, 0, len(changes)+1)
	args := make([]any, 0, len(changes)+2)
	for _, c := range changes {
		set = append(set, c.Field)
		args = append(args, cand[c.Field])
	}
	set = append(set, "updated_at")
	args = append(args, s.now(), id)

	uq, err := db.UpdateSQL(s.d, def.Table, set, "id")
	if err != nil {
		return "", nil, err
	}
	if _, err := tx.Exec(ctx, uq, args...); err != nil {
		return "", nil, db.Classify(err, "dedup: update "+string(def.Type))
	}
	if err := s.history.Updated(ctx, tx, def.Type, id, changes, req.Actor); err != nil {
		return "", nil, err
	}
	return id, changes, nil
}

func sortedKeys(r model.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
