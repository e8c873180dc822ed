package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/leadgen-enrich/internal/cost"
	"github.com/sells-group/leadgen-enrich/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GenerationConfig selects and tunes the generation-service provider.
type GenerationConfig struct {
	Provider      string          `yaml:"provider" mapstructure:"provider"`
	Model         string          `yaml:"model" mapstructure:"model"`
	MaxTokens     int64           `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs   int             `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryAttempts int             `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	Anthropic     AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI        OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// OpenAIConfig holds OpenAI-compatible API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PipelineConfig configures the per-client enrichment stages.
type PipelineConfig struct {
	CompetitorQuota  int `yaml:"competitor_quota" mapstructure:"competitor_quota"`
	LeadQuota        int `yaml:"lead_quota" mapstructure:"lead_quota"`
	MaxMarkets       int `yaml:"max_markets" mapstructure:"max_markets"`
	UniqueAttempts   int `yaml:"unique_attempts" mapstructure:"unique_attempts"`
	StageTimeoutSecs int `yaml:"stage_timeout_secs" mapstructure:"stage_timeout_secs"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	BatchSize                   int `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency                 int `yaml:"concurrency" mapstructure:"concurrency"`
	ItemDelayMs                 int `yaml:"item_delay_ms" mapstructure:"item_delay_ms"`
	BatchDelayMs                int `yaml:"batch_delay_ms" mapstructure:"batch_delay_ms"`
	MaxConsecutiveStoreFailures int `yaml:"max_consecutive_store_failures" mapstructure:"max_consecutive_store_failures"`
	PollIntervalSecs            int `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
}

// MonitoringConfig configures progress checks and notification delivery.
type MonitoringConfig struct {
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
	AlertRulesPath    string `yaml:"alert_rules_path" mapstructure:"alert_rules_path"`
}

// ServerConfig configures the status API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("generation.provider", "anthropic")
	v.SetDefault("generation.model", "claude-haiku-4-5-20251001")
	v.SetDefault("generation.max_tokens", 4096)
	v.SetDefault("generation.timeout_secs", 60)
	v.SetDefault("generation.retry_attempts", 2)
	v.SetDefault("generation.anthropic.key", "")
	v.SetDefault("generation.openai.key", "")
	v.SetDefault("generation.openai.base_url", "")
	v.SetDefault("pipeline.competitor_quota", 10)
	v.SetDefault("pipeline.lead_quota", 20)
	v.SetDefault("pipeline.max_markets", 3)
	v.SetDefault("pipeline.unique_attempts", 3)
	v.SetDefault("pipeline.stage_timeout_secs", 90)
	v.SetDefault("batch.batch_size", 50)
	v.SetDefault("batch.concurrency", 5)
	v.SetDefault("batch.item_delay_ms", 1000)
	v.SetDefault("batch.batch_delay_ms", 5000)
	v.SetDefault("batch.max_consecutive_store_failures", 5)
	v.SetDefault("batch.poll_interval_secs", 10)
	v.SetDefault("monitoring.check_interval_secs", 30)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.alert_rules_path", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	defaults := cost.DefaultRates()
	if cfg.Pricing.Anthropic == nil {
		cfg.Pricing.Anthropic = defaults.Anthropic
	}
	if cfg.Pricing.OpenAI == nil {
		cfg.Pricing.OpenAI = defaults.OpenAI
	}

	return &cfg, nil
}

// Validate checks that the values a command mode depends on are present
// and in range. Missing values wrap model.ErrConfigurationMissing.
func (c *Config) Validate(mode string) error {
	var errs []string

	needStore := func() {
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			errs = append(errs, "store.driver must be postgres or sqlite")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}
	needGeneration := func() {
		switch c.Generation.Provider {
		case "anthropic":
			if c.Generation.Anthropic.Key == "" {
				errs = append(errs, "generation.anthropic.key is required")
			}
		case "openai":
			if c.Generation.OpenAI.Key == "" {
				errs = append(errs, "generation.openai.key is required")
			}
		default:
			errs = append(errs, "generation.provider must be anthropic or openai")
		}
		if c.Generation.Model == "" {
			errs = append(errs, "generation.model is required")
		}
	}

	switch mode {
	case "migrate", "import", "status":
		needStore()
	case "run":
		needStore()
		needGeneration()
	case "batch", "supervise":
		needStore()
		needGeneration()
		if c.Batch.BatchSize < 1 {
			errs = append(errs, "batch.batch_size must be > 0")
		}
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50 {
			errs = append(errs, "batch.concurrency must be between 1 and 50")
		}
		if c.Batch.MaxConsecutiveStoreFailures < 1 {
			errs = append(errs, "batch.max_consecutive_store_failures must be > 0")
		}
	case "monitor":
		needStore()
		if c.Monitoring.CheckIntervalSecs < 1 {
			errs = append(errs, "monitoring.check_interval_secs must be > 0")
		}
	case "serve":
		needStore()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Wrapf(model.ErrConfigurationMissing, "config: unknown mode %q", mode)
	}

	if c.Pipeline.UniqueAttempts < 0 || c.Pipeline.CompetitorQuota < 0 || c.Pipeline.LeadQuota < 0 {
		errs = append(errs, "pipeline quotas and unique_attempts must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Wrapf(model.ErrConfigurationMissing, "config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
