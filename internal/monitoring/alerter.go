package monitoring

import (
	"fmt"
	"time"

	"github.com/sells-group/leadgen-enrich/internal/model"
)

// Firing is one rule whose condition held on a snapshot.
type Firing struct {
	Rule  model.AlertConfig
	Event model.AlertEvent
}

// Alerter evaluates alert rules against a job snapshot.
type Alerter struct{}

// NewAlerter creates a new Alerter.
func NewAlerter() *Alerter {
	return &Alerter{}
}

// Evaluate returns the firings of every enabled rule. Rules re-fire on
// every evaluation while their condition holds, except high_quality_lead,
// which fires once per lead newer than the rule's last trigger.
func (a *Alerter) Evaluate(rules []model.AlertConfig, snap *Snapshot) []Firing {
	var out []Firing
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		switch r.Type {
		case model.AlertErrorRate:
			if f, ok := errorRate(r, snap); ok {
				out = append(out, f)
			}
		case model.AlertHighQualityLead:
			if f, ok := highQualityLead(r, snap); ok {
				out = append(out, f)
			}
		case model.AlertMarketVolume:
			out = append(out, marketVolume(r, snap)...)
		}
	}
	return out
}

func errorRate(r model.AlertConfig, snap *Snapshot) (Firing, bool) {
	job := snap.Job
	if job.Processed == 0 || job.Processed < r.Condition.MinProcessed {
		return Firing{}, false
	}
	if snap.ErrorRate <= r.Condition.Threshold {
		return Firing{}, false
	}
	return fire(r, snap, fmt.Sprintf(
		"Error rate %.1f%% exceeds threshold %.1f%% (%d failed / %d processed)",
		snap.ErrorRate*100, r.Condition.Threshold*100, job.Failed, job.Processed,
	), map[string]any{
		"error_rate": snap.ErrorRate,
		"threshold":  r.Condition.Threshold,
		"failed":     job.Failed,
		"processed":  job.Processed,
	}), true
}

func highQualityLead(r model.AlertConfig, snap *Snapshot) (Firing, bool) {
	lead := snap.LastLead
	if lead == nil || float64(lead.QualityScore) < r.Condition.Threshold {
		return Firing{}, false
	}
	if r.LastTriggeredAt != nil && !lead.CreatedAt.After(*r.LastTriggeredAt) {
		return Firing{}, false
	}
	return fire(r, snap, fmt.Sprintf(
		"High-quality lead %q scored %d (threshold %.0f)",
		lead.Name, lead.QualityScore, r.Condition.Threshold,
	), map[string]any{
		"lead_id":       lead.ID,
		"market_id":     lead.MarketID,
		"quality_score": lead.QualityScore,
		"threshold":     r.Condition.Threshold,
	}), true
}

func marketVolume(r model.AlertConfig, snap *Snapshot) []Firing {
	var out []Firing
	for _, m := range snap.Markets {
		if float64(m.Leads) < r.Condition.Threshold {
			continue
		}
		out = append(out, fire(r, snap, fmt.Sprintf(
			"Market %q reached %d leads (threshold %.0f)",
			m.Name, m.Leads, r.Condition.Threshold,
		), map[string]any{
			"market_id": m.MarketID,
			"leads":     m.Leads,
			"threshold": r.Condition.Threshold,
		}))
	}
	return out
}

func fire(r model.AlertConfig, snap *Snapshot, msg string, details map[string]any) Firing {
	at := snap.CollectedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return Firing{
		Rule: r,
		Event: model.AlertEvent{
			AlertID:   r.ID,
			JobID:     snap.Job.ID,
			Type:      r.Type,
			Message:   msg,
			Details:   details,
			CreatedAt: at,
		},
	}
}
