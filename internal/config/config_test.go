package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-enrich/internal/model"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "anthropic", cfg.Generation.Provider)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Generation.Model)
	assert.Equal(t, 50, cfg.Batch.BatchSize)
	assert.Equal(t, 5, cfg.Batch.Concurrency)
	assert.Equal(t, 1000, cfg.Batch.ItemDelayMs)
	assert.Equal(t, 5000, cfg.Batch.BatchDelayMs)
	assert.Equal(t, 5, cfg.Batch.MaxConsecutiveStoreFailures)
	assert.Equal(t, 3, cfg.Pipeline.UniqueAttempts)
	assert.Equal(t, 3, cfg.Pipeline.MaxMarkets)
	assert.Equal(t, 30, cfg.Monitoring.CheckIntervalSecs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Contains(t, cfg.Pricing.Anthropic, "claude-haiku-4-5-20251001")
	assert.Contains(t, cfg.Pricing.OpenAI, "gpt-4o-mini")
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
batch:
  batch_size: 5
  concurrency: 2
generation:
  provider: openai
  model: gpt-4o-mini
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Batch.BatchSize)
	assert.Equal(t, 2, cfg.Batch.Concurrency)
	assert.Equal(t, "openai", cfg.Generation.Provider)
	// Defaults still apply for unset values
	assert.Equal(t, 1000, cfg.Batch.ItemDelayMs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADGEN_STORE_DRIVER", "postgres")
	t.Setenv("LEADGEN_GENERATION_ANTHROPIC_KEY", "sk-ant")
	t.Setenv("LEADGEN_BATCH_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "sk-ant", cfg.Generation.Anthropic.Key)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "file:test.db"
	cfg.Generation.Provider = "anthropic"
	cfg.Generation.Model = "claude-haiku-4-5-20251001"
	cfg.Generation.Anthropic.Key = "sk-ant"
	cfg.Batch.BatchSize = 50
	cfg.Batch.Concurrency = 5
	cfg.Batch.MaxConsecutiveStoreFailures = 5
	cfg.Monitoring.CheckIntervalSecs = 30
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"migrate", "import", "status", "run", "batch", "supervise", "monitor", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_MissingGenerationKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Generation.Anthropic.Key = ""

	err := cfg.Validate("batch")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConfigurationMissing)
	assert.Contains(t, err.Error(), "generation.anthropic.key is required")

	// migrate never talks to the generation service
	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidate_OpenAI(t *testing.T) {
	cfg := validDefaults()
	cfg.Generation.Provider = "openai"

	err := cfg.Validate("run")
	assert.Contains(t, err.Error(), "generation.openai.key is required")

	cfg.Generation.OpenAI.Key = "sk-oa"
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidate_MissingStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidate_BatchBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.Concurrency = 0
	assert.ErrorContains(t, cfg.Validate("batch"), "batch.concurrency must be between 1 and 50")

	cfg.Batch.Concurrency = 51
	assert.ErrorContains(t, cfg.Validate("batch"), "batch.concurrency must be between 1 and 50")

	cfg.Batch.Concurrency = 50
	cfg.Batch.BatchSize = 0
	assert.ErrorContains(t, cfg.Validate("batch"), "batch.batch_size must be > 0")
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0
	assert.ErrorContains(t, cfg.Validate("serve"), "server.port must be > 0")
}

func TestValidate_UnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.ErrorIs(t, err, model.ErrConfigurationMissing)
	assert.Contains(t, err.Error(), "unknown mode")
}
