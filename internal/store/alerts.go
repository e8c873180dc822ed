package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-enrich/internal/db"
	"github.com/sells-group/leadgen-enrich/internal/model"
)

// SaveAlertConfig inserts a rule or replaces the rule with the same id.
// The last-triggered timestamp is owned by TouchAlert and never reset here.
func (s *sqlStore) SaveAlertConfig(ctx context.Context, cfg *model.AlertConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	_, err := s.conn.Exec(ctx, s.q(`INSERT INTO alert_configs
		(id, project_id, name, type, threshold, min_processed, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			project_id = excluded.project_id, name = excluded.name, type = excluded.type,
			threshold = excluded.threshold, min_processed = excluded.min_processed,
			enabled = excluded.enabled`),
		cfg.ID, cfg.ProjectID, cfg.Name, string(cfg.Type), cfg.Condition.Threshold,
		cfg.Condition.MinProcessed, cfg.Enabled, s.now(),
	)
	return db.Classify(err, "store: save alert config")
}

// ListAlertConfigs returns the enabled rules of a project.
func (s *sqlStore) ListAlertConfigs(ctx context.Context, projectID string) ([]model.AlertConfig, error) {
	rows, err := s.conn.Query(ctx, s.q(`SELECT id, project_id, name, type, threshold, min_processed, enabled, last_triggered_at
		FROM alert_configs WHERE project_id = $1 AND enabled = TRUE ORDER BY name`), projectID)
	if err != nil {
		return nil, db.Classify(err, "store: list alert configs")
	}
	defer rows.Close()

	var out []model.AlertConfig
	for rows.Next() {
		var c model.AlertConfig
		var typ string
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &typ, &c.Condition.Threshold,
			&c.Condition.MinProcessed, &c.Enabled, &c.LastTriggeredAt); err != nil {
			return nil, eris.Wrap(err, "store: scan alert config")
		}
		c.Type = model.AlertType(typ)
		out = append(out, c)
	}
	return out, db.Classify(rows.Err(), "store: list alert configs")
}

func (s *sqlStore) TouchAlert(ctx context.Context, alertID string, at time.Time) error {
	_, err := s.conn.Exec(ctx, s.q(`UPDATE alert_configs SET last_triggered_at = $1 WHERE id = $2`), at, alertID)
	return db.Classify(err, "store: touch alert")
}

func (s *sqlStore) RecordAlertEvent(ctx context.Context, ev *model.AlertEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	details, err := json.Marshal(ev.Details)
	if err != nil {
		return eris.Wrap(err, "store: marshal alert details")
	}
	_, err = s.conn.Exec(ctx, s.q(`INSERT INTO alert_events (id, alert_id, job_id, type, message, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`),
		ev.ID, ev.AlertID, orNil(ev.JobID), string(ev.Type), ev.Message, string(details), ev.CreatedAt)
	return db.Classify(err, "store: record alert event")
}

func (s *sqlStore) ListAlertEvents(ctx context.Context, jobID string) ([]model.AlertEvent, error) {
	rows, err := s.conn.Query(ctx, s.q(`SELECT id, alert_id, job_id, type, message, details, created_at
		FROM alert_events WHERE job_id = $1 ORDER BY created_at`), jobID)
	if err != nil {
		return nil, db.Classify(err, "store: list alert events")
	}
	defer rows.Close()

	var out []model.AlertEvent
	for rows.Next() {
		var ev model.AlertEvent
		var typ string
		var job *string
		var details string
		if err := rows.Scan(&ev.ID, &ev.AlertID, &job, &typ, &ev.Message, &details, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan alert event")
		}
		ev.Type, ev.JobID = model.AlertType(typ), deref(job)
		if err := json.Unmarshal([]byte(details), &ev.Details); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal alert details")
		}
		out = append(out, ev)
	}
	return out, db.Classify(rows.Err(), "store: list alert events")
}
