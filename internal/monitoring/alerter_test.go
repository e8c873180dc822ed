package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-enrich/internal/config"
	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/store"
)

func cfgWithInterval(secs int) config.MonitoringConfig {
	return config.MonitoringConfig{CheckIntervalSecs: secs}
}

func zapNop() *zap.Logger { return zap.NewNop() }

func rule(typ model.AlertType, threshold float64) model.AlertConfig {
	return model.AlertConfig{ID: string(typ), Name: string(typ), Type: typ, Enabled: true,
		Condition: model.AlertCondition{Threshold: threshold}}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	snap := &Snapshot{Job: model.Job{ID: "j", Processed: 10, Failed: 1}, ErrorRate: 0.1}
	got := NewAlerter().Evaluate([]model.AlertConfig{rule(model.AlertErrorRate, 0.2)}, snap)
	assert.Empty(t, got)
}

func TestAlerter_Evaluate_ErrorRate(t *testing.T) {
	snap := &Snapshot{Job: model.Job{ID: "j", Processed: 20, Failed: 8}, ErrorRate: 0.4, CollectedAt: time.Now()}
	got := NewAlerter().Evaluate([]model.AlertConfig{rule(model.AlertErrorRate, 0.1)}, snap)
	require.Len(t, got, 1)
	assert.Equal(t, model.AlertErrorRate, got[0].Event.Type)
	assert.Equal(t, "j", got[0].Event.JobID)
	assert.Contains(t, got[0].Event.Message, "40.0%")
	assert.Equal(t, 8, got[0].Event.Details["failed"])
}

func TestAlerter_Evaluate_ErrorRateNeedsProcessed(t *testing.T) {
	r := rule(model.AlertErrorRate, 0.1)
	r.Condition.MinProcessed = 5
	snap := &Snapshot{Job: model.Job{Processed: 2, Failed: 2}, ErrorRate: 1}
	assert.Empty(t, NewAlerter().Evaluate([]model.AlertConfig{r}, snap))
	assert.Empty(t, NewAlerter().Evaluate([]model.AlertConfig{rule(model.AlertErrorRate, 0.1)}, &Snapshot{}))
}

func TestAlerter_Evaluate_HighQualityLead(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := &Snapshot{LastLead: &model.Party{ID: "l1", Name: "Rota", QualityScore: 90, CreatedAt: created}}

	r := rule(model.AlertHighQualityLead, 85)
	require.Len(t, NewAlerter().Evaluate([]model.AlertConfig{r}, snap), 1)

	later := created.Add(time.Minute)
	r.LastTriggeredAt = &later
	assert.Empty(t, NewAlerter().Evaluate([]model.AlertConfig{r}, snap), "already alerted for this lead")

	assert.Empty(t, NewAlerter().Evaluate([]model.AlertConfig{rule(model.AlertHighQualityLead, 95)}, snap))
	assert.Empty(t, NewAlerter().Evaluate([]model.AlertConfig{rule(model.AlertHighQualityLead, 50)}, &Snapshot{}))
}

func TestAlerter_Evaluate_MarketVolumePerMarket(t *testing.T) {
	snap := &Snapshot{Markets: []store.MarketCount{
		{MarketID: "m1", Name: "A", Leads: 12},
		{MarketID: "m2", Name: "B", Leads: 3},
		{MarketID: "m3", Name: "C", Leads: 10},
	}}
	got := NewAlerter().Evaluate([]model.AlertConfig{rule(model.AlertMarketVolume, 10)}, snap)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].Event.Details["market_id"])
	assert.Equal(t, "m3", got[1].Event.Details["market_id"])
}

func TestAlerter_Evaluate_SkipsDisabled(t *testing.T) {
	r := rule(model.AlertMarketVolume, 1)
	r.Enabled = false
	snap := &Snapshot{Markets: []store.MarketCount{{MarketID: "m1", Leads: 5}}}
	assert.Empty(t, NewAlerter().Evaluate([]model.AlertConfig{r}, snap))
}
