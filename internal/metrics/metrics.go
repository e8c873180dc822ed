// Package metrics registers the Prometheus collectors of the enrichment
// pipeline, batch orchestrator and progress monitor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "leadgen"

var (
	// stageDuration measures one pipeline stage. Labels: stage, outcome (ok, failed).
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Pipeline stage latency in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"stage", "outcome"})

	generationTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "generation",
		Name:      "tokens_total",
		Help:      "Tokens consumed by generation calls",
	}, []string{"provider", "model", "direction"})

	generationCost = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "generation",
		Name:      "cost_usd_total",
		Help:      "Estimated generation spend in USD",
	}, []string{"provider", "model"})

	uniqueShortfall = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "unique_shortfall_total",
		Help:      "Candidates missing from a uniqueness quota after the retry budget",
	}, []string{"kind"})

	// itemsTotal counts finished job items. Labels: state (succeeded, failed).
	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "items_total",
		Help:      "Job items finished by the batch orchestrator",
	}, []string{"state"})

	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "batches_total",
		Help:      "Batches started by the batch orchestrator",
	})

	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "alerts_total",
		Help:      "Alert rule firings",
	}, []string{"type"})

	milestonesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "milestones_total",
		Help:      "Milestone notifications fired",
	}, []string{"milestone"})

	notifyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "failures_total",
		Help:      "Failed notification deliveries",
	}, []string{"sink"})
)

// ObserveStage records the duration and outcome of a pipeline stage.
func ObserveStage(stage string, ok bool, d time.Duration) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	stageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

// AddTokens records token usage and estimated cost of a generation call.
func AddTokens(provider, model string, input, output int64, costUSD float64) {
	generationTokens.WithLabelValues(provider, model, "input").Add(float64(input))
	generationTokens.WithLabelValues(provider, model, "output").Add(float64(output))
	if costUSD > 0 {
		generationCost.WithLabelValues(provider, model).Add(costUSD)
	}
}

// AddShortfall records candidates missing from a uniqueness quota.
func AddShortfall(kind string, n int) {
	if n > 0 {
		uniqueShortfall.WithLabelValues(kind).Add(float64(n))
	}
}

// ItemDone counts a finished job item.
func ItemDone(state string) {
	itemsTotal.WithLabelValues(state).Inc()
}

// BatchStarted counts a started batch.
func BatchStarted() {
	batchesTotal.Inc()
}

// AlertFired counts an alert rule firing.
func AlertFired(alertType string) {
	alertsTotal.WithLabelValues(alertType).Inc()
}

// MilestoneFired counts a milestone notification.
func MilestoneFired(milestone string) {
	milestonesTotal.WithLabelValues(milestone).Inc()
}

// NotifyFailed counts a failed notification delivery.
func NotifyFailed(sink string) {
	notifyFailures.WithLabelValues(sink).Inc()
}
