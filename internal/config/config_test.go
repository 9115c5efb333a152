package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 10, cfg.Evaluator.TopN)
	assert.Equal(t, 1_000_000, cfg.Evaluator.MaxCombinations)
	assert.Equal(t, 4, cfg.Evaluator.TickerParallelism)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab.yaml")
	data := `
provider:
  base_url: http://localhost:9000
  timeout: 5s
cache:
  ttl: 1m
storage:
  backend: postgres
  postgres_dsn: postgres://lab@localhost/lab
evaluator:
  parallelism: 4
  top_n: 25
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.Provider.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 3, cfg.Provider.MaxRetries, "unset fields keep defaults")
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, 4, cfg.Evaluator.Parallelism)
	assert.Equal(t, 25, cfg.Evaluator.TopN)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Provider.Timeout, cfg.Provider.Timeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"unknown backend":  "storage:\n  backend: mysql\n",
		"postgres w/o dsn": "storage:\n  backend: postgres\n",
		"bad log level":    "log_level: loud\n",
		"zero top n":       "evaluator:\n  top_n: 0\n",
		"grid limit":       "evaluator:\n  max_combinations: 20000000\n",
		"malformed yaml":   "provider: [\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "lab.yaml")
			require.NoError(t, os.WriteFile(path, []byte(data), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestValidate_NoPriceSource(t *testing.T) {
	cfg := Default()
	cfg.Provider.BaseURL = ""
	assert.ErrorIs(t, cfg.Validate(), ErrNoPriceSource)

	cfg.Provider.CSVDir = "testdata"
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvPostgresDSN:   "postgres://env",
		EnvClickHouseDSN: "clickhouse://env",
		EnvProviderURL:   "http://env",
		EnvLogLevel:      "warn",
	}
	cfg := Default()
	applyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "postgres://env", cfg.Storage.PostgresDSN)
	assert.Equal(t, "clickhouse://env", cfg.Storage.ClickHouseDSN)
	assert.Equal(t, "http://env", cfg.Provider.BaseURL)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lab.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
