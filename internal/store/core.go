package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-enrich/internal/db"
	"github.com/sells-group/leadgen-enrich/internal/dedup"
	"github.com/sells-group/leadgen-enrich/internal/history"
	"github.com/sells-group/leadgen-enrich/internal/model"
)

// sqlStore is the backend-independent implementation of Store. Queries are
// written with $n placeholders and rebound for the active dialect.
type sqlStore struct {
	conn      db.TxConn
	d         db.Dialect
	dedup     *dedup.Store
	history   *history.Recorder
	migration string
	now       func() time.Time
}

func newSQLStore(conn db.TxConn, d db.Dialect, migration string) *sqlStore {
	return &sqlStore{
		conn:      conn,
		d:         d,
		dedup:     dedup.NewStore(conn, d),
		history:   history.NewRecorder(d),
		migration: migration,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *sqlStore) q(query string) string {
	return s.d.Rebind(query)
}

func (s *sqlStore) Ping(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, "SELECT 1")
	return db.Classify(err, "store: ping")
}

func (s *sqlStore) Migrate(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, s.migration)
	return db.Classify(err, "store: migrate")
}

// notFound converts a no-rows error into model.ErrNotFound.
func notFound(err error, what, id string) error {
	if db.IsNoRows(err) {
		return eris.Wrapf(model.ErrNotFound, "store: %s %s", what, id)
	}
	return db.Classify(err, "store: get "+what)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
