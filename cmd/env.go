package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-enrich/internal/batch"
	"github.com/sells-group/leadgen-enrich/internal/cost"
	"github.com/sells-group/leadgen-enrich/internal/generate"
	"github.com/sells-group/leadgen-enrich/internal/metrics"
	"github.com/sells-group/leadgen-enrich/internal/monitoring"
	"github.com/sells-group/leadgen-enrich/internal/notify"
	"github.com/sells-group/leadgen-enrich/internal/pipeline"
	"github.com/sells-group/leadgen-enrich/internal/resilience"
	"github.com/sells-group/leadgen-enrich/internal/store"
	anthropicpkg "github.com/sells-group/leadgen-enrich/pkg/anthropic"
)

// appEnv holds the store and the components built on it.
type appEnv struct {
	Store        store.Store
	Pipeline     *pipeline.Pipeline
	Orchestrator *batch.Orchestrator
	Monitor      *monitoring.Monitor
	Dispatcher   *notify.Dispatcher
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadgen.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initGenerator() (generate.Generator, error) {
	opts := generate.Options{Model: cfg.Generation.Model, MaxTokens: cfg.Generation.MaxTokens}

	var gen generate.Generator
	switch cfg.Generation.Provider {
	case "anthropic":
		gen = generate.NewAnthropic(anthropicpkg.NewClient(cfg.Generation.Anthropic.Key), opts)
	case "openai":
		gen = generate.NewOpenAI(cfg.Generation.OpenAI.Key, cfg.Generation.OpenAI.BaseURL, opts)
	default:
		return nil, eris.Errorf("unsupported generation provider: %s", cfg.Generation.Provider)
	}

	timeout := time.Duration(cfg.Generation.TimeoutSecs) * time.Second
	return generate.WithRetry(gen, resilience.GenerationRetry(cfg.Generation.RetryAttempts, timeout, cfg.Generation.Provider)), nil
}

func initDispatcher() *notify.Dispatcher {
	sinks := []notify.Sink{notify.LogSink{}}
	if cfg.Monitoring.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Monitoring.WebhookURL))
	}
	d := notify.NewDispatcher(sinks...)
	d.OnError(func(sink string, _ notify.Event, _ error) { metrics.NotifyFailed(sink) })
	return d
}

// initEnv validates cfg for mode and builds the environment. The pipeline
// and orchestrator are only built for modes that generate.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{
		Store:      st,
		Monitor:    monitoring.NewMonitor(st),
		Dispatcher: initDispatcher(),
	}

	if cfg.Monitoring.AlertRulesPath != "" {
		if err := syncAlertRules(ctx, st); err != nil {
			env.Close()
			return nil, err
		}
	}

	var runner batch.Runner
	switch mode {
	case "run", "batch", "supervise":
		gen, err := initGenerator()
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Pipeline = pipeline.New(pipeline.ConfigFrom(cfg.Pipeline), st, gen, cost.NewCalculator(cfg.Pricing))
		runner = env.Pipeline
	}

	env.Orchestrator = batch.New(batch.ConfigFrom(cfg.Batch), st, runner, env.Dispatcher).WithMonitor(env.Monitor)
	return env, nil
}

// syncAlertRules saves the rules of the configured rule file. Rules must
// name their project.
func syncAlertRules(ctx context.Context, st store.Store) error {
	rules, err := monitoring.LoadRules(cfg.Monitoring.AlertRulesPath, "")
	if err != nil {
		return err
	}
	scoped := rules[:0]
	for _, r := range rules {
		if r.ProjectID == "" {
			zap.L().Warn("alert rule has no project_id, skipping", zap.String("rule", r.ID))
			continue
		}
		scoped = append(scoped, r)
	}
	return monitoring.SyncRules(ctx, st, scoped)
}
