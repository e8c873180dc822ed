package model

import "time"

// AlertType identifies the statistic an alert rule watches.
type AlertType string

const (
	// AlertErrorRate fires when failed/processed exceeds the threshold.
	AlertErrorRate AlertType = "error_rate"
	// AlertHighQualityLead fires when the latest lead scores at or above the threshold.
	AlertHighQualityLead AlertType = "high_quality_lead"
	// AlertMarketVolume fires for each market whose lead count reaches the threshold.
	AlertMarketVolume AlertType = "market_volume"
)

// AlertCondition parameterizes an alert rule.
type AlertCondition struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	// MinProcessed delays error-rate evaluation until enough items finished.
	MinProcessed int `json:"min_processed,omitempty" yaml:"min_processed,omitempty"`
}

// AlertConfig is a user-defined alert rule.
type AlertConfig struct {
	ID              string         `json:"id" yaml:"id"`
	ProjectID       string         `json:"project_id" yaml:"project_id"`
	Name            string         `json:"name" yaml:"name"`
	Type            AlertType      `json:"type" yaml:"type"`
	Condition       AlertCondition `json:"condition" yaml:"condition"`
	Enabled         bool           `json:"enabled" yaml:"enabled"`
	LastTriggeredAt *time.Time     `json:"last_triggered_at,omitempty" yaml:"-"`
}

// AlertEvent is one firing of an alert rule.
type AlertEvent struct {
	ID        string         `json:"id"`
	AlertID   string         `json:"alert_id"`
	JobID     string         `json:"job_id,omitempty"`
	Type      AlertType      `json:"type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
