package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-enrich/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	*sqlStore
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, db.Classify(err, "postgres: ping")
	}
	return newPostgresFromPool(pool, pool.Close), nil
}

func newPostgresFromPool(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{
		sqlStore: newSQLStore(db.NewPgxConn(pool), db.Postgres, postgresMigration),
		pool:     pool,
		closeFn:  closeFn,
	}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS clients (
	id                TEXT PRIMARY KEY,
	fingerprint       TEXT NOT NULL UNIQUE,
	project_id        TEXT NOT NULL,
	name              TEXT NOT NULL,
	tax_id            TEXT,
	website           TEXT,
	legal_name        TEXT,
	sector            TEXT,
	size              TEXT,
	employees         TEXT,
	city              TEXT,
	state             TEXT,
	description       TEXT,
	principal_product TEXT,
	quality_score     INTEGER NOT NULL DEFAULT 0,
	quality_tier      TEXT NOT NULL DEFAULT 'low',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_clients_project ON clients(project_id);

CREATE TABLE IF NOT EXISTS markets (
	id           TEXT PRIMARY KEY,
	fingerprint  TEXT NOT NULL UNIQUE,
	project_id   TEXT NOT NULL,
	name         TEXT NOT NULL,
	category     TEXT,
	segment      TEXT,
	description  TEXT,
	market_size  TEXT,
	growth_trend TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_markets_project ON markets(project_id);

CREATE TABLE IF NOT EXISTS client_markets (
	client_id  TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	market_id  TEXT NOT NULL REFERENCES markets(id) ON DELETE CASCADE,
	is_primary BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (client_id, market_id)
);

CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL UNIQUE,
	client_id   TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	market_id   TEXT NOT NULL REFERENCES markets(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	category    TEXT,
	description TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS competitors (
	id                TEXT PRIMARY KEY,
	fingerprint       TEXT NOT NULL UNIQUE,
	market_id         TEXT NOT NULL REFERENCES markets(id) ON DELETE CASCADE,
	name              TEXT NOT NULL,
	website           TEXT,
	tax_id            TEXT,
	city              TEXT,
	state             TEXT,
	size              TEXT,
	description       TEXT,
	quality_score     INTEGER NOT NULL DEFAULT 0,
	quality_tier      TEXT NOT NULL DEFAULT 'low',
	validation_status TEXT NOT NULL DEFAULT 'pending',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_competitors_market ON competitors(market_id);

CREATE TABLE IF NOT EXISTS leads (
	id                TEXT PRIMARY KEY,
	fingerprint       TEXT NOT NULL UNIQUE,
	market_id         TEXT NOT NULL REFERENCES markets(id) ON DELETE CASCADE,
	name              TEXT NOT NULL,
	website           TEXT,
	tax_id            TEXT,
	city              TEXT,
	state             TEXT,
	size              TEXT,
	description       TEXT,
	quality_score     INTEGER NOT NULL DEFAULT 0,
	quality_tier      TEXT NOT NULL DEFAULT 'low',
	validation_status TEXT NOT NULL DEFAULT 'pending',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_market ON leads(market_id);
CREATE INDEX IF NOT EXISTS idx_leads_created ON leads(created_at DESC);

CREATE TABLE IF NOT EXISTS entity_history (
	id          TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	field       TEXT NOT NULL,
	old_value   TEXT,
	new_value   TEXT,
	kind        TEXT NOT NULL,
	actor       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_history_entity ON entity_history(entity_type, entity_id, created_at);

CREATE TABLE IF NOT EXISTS jobs (
	id             TEXT PRIMARY KEY,
	project_id     TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	message        TEXT,
	total_clients  INTEGER NOT NULL DEFAULT 0,
	processed      INTEGER NOT NULL DEFAULT 0,
	succeeded      INTEGER NOT NULL DEFAULT 0,
	failed         INTEGER NOT NULL DEFAULT 0,
	batch_size     INTEGER NOT NULL DEFAULT 50,
	concurrency    INTEGER NOT NULL DEFAULT 5,
	total_batches  INTEGER NOT NULL DEFAULT 0,
	current_batch  INTEGER NOT NULL DEFAULT 0,
	last_client_id TEXT,
	notified_50    BOOLEAN NOT NULL DEFAULT FALSE,
	notified_75    BOOLEAN NOT NULL DEFAULT FALSE,
	notified_100   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at     TIMESTAMPTZ,
	completed_at   TIMESTAMPTZ,
	CHECK (processed <= total_clients),
	CHECK (succeeded + failed <= processed)
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);

CREATE TABLE IF NOT EXISTS job_items (
	job_id    TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	client_id TEXT NOT NULL,
	position  INTEGER NOT NULL,
	state     TEXT NOT NULL DEFAULT 'pending',
	PRIMARY KEY (job_id, client_id)
);

CREATE INDEX IF NOT EXISTS idx_job_items_pending ON job_items(job_id, state, position);

CREATE TABLE IF NOT EXISTS item_failures (
	id         TEXT PRIMARY KEY,
	job_id     TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	client_id  TEXT NOT NULL,
	stage      INTEGER NOT NULL,
	stage_name TEXT NOT NULL,
	kind       TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_item_failures_job ON item_failures(job_id);

CREATE TABLE IF NOT EXISTS alert_configs (
	id                TEXT PRIMARY KEY,
	project_id        TEXT NOT NULL,
	name              TEXT NOT NULL,
	type              TEXT NOT NULL,
	threshold         DOUBLE PRECISION NOT NULL,
	min_processed     INTEGER NOT NULL DEFAULT 0,
	enabled           BOOLEAN NOT NULL DEFAULT TRUE,
	last_triggered_at TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS alert_events (
	id         TEXT PRIMARY KEY,
	alert_id   TEXT NOT NULL REFERENCES alert_configs(id) ON DELETE CASCADE,
	job_id     TEXT,
	type       TEXT NOT NULL,
	message    TEXT NOT NULL,
	details    JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_alert_events_job ON alert_events(job_id);
`
