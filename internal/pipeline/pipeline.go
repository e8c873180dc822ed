// Package pipeline enriches one client through five dependent generation
// stages: attributes, principal product, markets, competitors and leads.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-enrich/internal/config"
	"github.com/sells-group/leadgen-enrich/internal/cost"
	"github.com/sells-group/leadgen-enrich/internal/dedup"
	"github.com/sells-group/leadgen-enrich/internal/generate"
	"github.com/sells-group/leadgen-enrich/internal/metrics"
	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/notify"
)

// Store is the persistence the pipeline writes through.
type Store interface {
	NameSource
	Upsert(ctx context.Context, req dedup.Request) (*dedup.Result, error)
	GetClient(ctx context.Context, id string) (*model.Client, error)
	AssociateMarket(ctx context.Context, cm model.ClientMarket) error
}

// Config tunes the stages.
type Config struct {
	CompetitorQuota int
	LeadQuota       int
	MaxMarkets      int
	UniqueAttempts  int
	StageTimeout    time.Duration
	// Actor is recorded on every history entry the pipeline writes.
	Actor string
}

// ConfigFrom maps the application pipeline settings.
func ConfigFrom(c config.PipelineConfig) Config {
	return Config{
		CompetitorQuota: c.CompetitorQuota,
		LeadQuota:       c.LeadQuota,
		MaxMarkets:      c.MaxMarkets,
		UniqueAttempts:  c.UniqueAttempts,
		StageTimeout:    time.Duration(c.StageTimeoutSecs) * time.Second,
		Actor:           "pipeline",
	}
}

// Pipeline runs the stages for one client at a time. It is safe for
// concurrent use by multiple workers.
type Pipeline struct {
	cfg   Config
	store Store
	gen   generate.Generator
	guard *Guard
	costs *cost.Calculator
}

// New creates a Pipeline.
func New(cfg Config, st Store, gen generate.Generator, costs *cost.Calculator) *Pipeline {
	if cfg.MaxMarkets <= 0 || cfg.MaxMarkets > 3 {
		cfg.MaxMarkets = 3
	}
	if cfg.Actor == "" {
		cfg.Actor = "pipeline"
	}
	if costs == nil {
		costs = cost.NewCalculator(cost.DefaultRates())
	}
	return &Pipeline{
		cfg:   cfg,
		store: st,
		gen:   gen,
		guard: NewGuard(gen, st, cfg.UniqueAttempts),
		costs: costs,
	}
}

// run carries stage outputs forward within one Run.
type run struct {
	client      model.Client
	product     productSpec
	markets     []model.Market
	competitors []string
}

type stageFunc func(ctx context.Context, r *run) (any, generate.Usage, error)

// Run executes S1..S5 for the client. Stages run strictly in order and the
// first failure aborts the rest; writes of completed stages are kept. The
// returned error is the failing stage's error and the result is always
// non-nil.
func (p *Pipeline) Run(ctx context.Context, clientID string) (*Result, error) {
	log := zap.L().With(zap.String("client_id", clientID))
	log.Info("pipeline: starting enrichment")

	res := &Result{ClientID: clientID}
	r := &run{}
	steps := []struct {
		stage Stage
		fn    stageFunc
	}{
		{StageAttributes, p.enrichAttributes(clientID)},
		{StageProduct, p.deriveProduct},
		{StageMarkets, p.deriveMarkets},
		{StageCompetitors, p.generateCompetitors},
		{StageLeads, p.generateLeads},
	}

	for _, step := range steps {
		sr, err := p.track(ctx, log, step.stage, r, step.fn)
		res.Stages = append(res.Stages, sr)
		res.Usage.Add(sr.Usage)
		res.CostUSD += sr.CostUSD
		if err != nil {
			res.Events = append(res.Events, notify.New(notify.KindStageFailed,
				"Enrichment stage failed",
				sr.Name+": "+sr.Error,
				map[string]any{"client_id": clientID, "stage": sr.Stage, "kind": string(sr.Kind)},
			))
			return res, eris.Wrapf(err, "pipeline: %s", step.stage)
		}
		if out, ok := sr.Output.(PartyOutput); ok && out.Shortfall > 0 {
			res.Events = append(res.Events, notify.New(notify.KindShortfall,
				"Uniqueness quota not met",
				sr.Name+" collected fewer unique companies than requested",
				map[string]any{"client_id": clientID, "market_id": out.MarketID, "requested": out.Requested, "shortfall": out.Shortfall},
			))
		}
	}

	log.Info("pipeline: enrichment complete",
		zap.Int64("input_tokens", res.Usage.InputTokens),
		zap.Int64("output_tokens", res.Usage.OutputTokens),
		zap.Float64("cost_usd", res.CostUSD),
	)
	return res, nil
}

// track runs one stage under the stage timeout and records its outcome.
func (p *Pipeline) track(ctx context.Context, log *zap.Logger, stage Stage, r *run, fn stageFunc) (StageResult, error) {
	sr := StageResult{Stage: int(stage), Name: stage.String()}

	sctx := ctx
	if p.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, p.cfg.StageTimeout)
		defer cancel()
	}

	start := time.Now()
	out, usage, err := fn(sctx, r)
	elapsed := time.Since(start)

	sr.DurationMs = elapsed.Milliseconds()
	sr.Usage = usage
	sr.CostUSD = p.costs.Estimate(usage.Provider, usage.Model,
		int(usage.InputTokens), int(usage.OutputTokens), int(usage.CacheWriteTokens), int(usage.CacheReadTokens))
	metrics.ObserveStage(sr.Name, err == nil, elapsed)
	metrics.AddTokens(usage.Provider, usage.Model, usage.InputTokens, usage.OutputTokens, sr.CostUSD)

	if err != nil {
		sr.Error = err.Error()
		sr.Kind = model.KindOf(err)
		log.Error("pipeline: stage failed",
			zap.String("stage", sr.Name),
			zap.String("kind", string(sr.Kind)),
			zap.Int64("duration_ms", sr.DurationMs),
			zap.Error(err),
		)
		return sr, err
	}

	sr.Success = true
	sr.Output = out
	log.Info("pipeline: stage complete",
		zap.String("stage", sr.Name),
		zap.Int64("duration_ms", sr.DurationMs),
	)
	return sr, nil
}

// generateInto makes the stage's single generation call and decodes it.
func generateInto[T any](ctx context.Context, gen generate.Generator, stage Stage, system, prompt string) (T, generate.Usage, error) {
	var zero T
	resp, err := gen.Generate(ctx, generate.Request{Stage: stage.String(), System: system, Prompt: prompt})
	if err != nil {
		return zero, generate.Usage{}, err
	}
	out, err := generate.Decode[T](stage.String(), resp.Text)
	return out, resp.Usage, err
}
