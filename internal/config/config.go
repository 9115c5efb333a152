// Package config loads the lab.yaml settings shared by the CLI and server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment overrides applied after the file is read.
const (
	EnvPostgresDSN   = "LAB_POSTGRES_DSN"
	EnvClickHouseDSN = "LAB_CLICKHOUSE_DSN"
	EnvProviderURL   = "LAB_PROVIDER_URL"
	EnvLogLevel      = "LAB_LOG_LEVEL"
)

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
)

// Config is the root of lab.yaml.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Evaluator EvaluatorConfig `yaml:"evaluator"`
	Server    ServerConfig    `yaml:"server"`
	LogLevel  string          `yaml:"log_level" validate:"oneof=trace debug info warn error"`
}

// ProviderConfig configures the HTTP price provider. An empty BaseURL
// together with a CSVDir selects the offline CSV provider.
type ProviderConfig struct {
	BaseURL    string        `yaml:"base_url" validate:"omitempty,url"`
	CSVDir     string        `yaml:"csv_dir"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	RateLimit  float64       `yaml:"rate_limit" validate:"gte=0"` // requests per second, 0 disables
	Burst      int           `yaml:"burst" validate:"gte=0"`
}

// CacheConfig configures the in-process cache and the sqlite price cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl" validate:"gte=0"`
	MaxEntries int           `yaml:"max_entries" validate:"gte=0"`
	SQLitePath string        `yaml:"sqlite_path"` // empty disables the persistent cache
	MaxAge     time.Duration `yaml:"max_age" validate:"gte=0"`
}

// StorageConfig selects where sweeps and price histories are stored.
type StorageConfig struct {
	Backend       string `yaml:"backend" validate:"oneof=memory postgres clickhouse"`
	PostgresDSN   string `yaml:"postgres_dsn" validate:"required_if=Backend postgres"`
	ClickHouseDSN string `yaml:"clickhouse_dsn" validate:"required_if=Backend clickhouse"`
}

// EvaluatorConfig tunes grid evaluation.
type EvaluatorConfig struct {
	Parallelism       int `yaml:"parallelism" validate:"gte=0"` // 0 uses every CPU
	TickerParallelism int `yaml:"ticker_parallelism" validate:"gte=0"`
	TopN              int `yaml:"top_n" validate:"gte=1,lte=1000"`
	MaxCombinations   int `yaml:"max_combinations" validate:"gte=1,lte=10000000"`
}

// ServerConfig configures cmd/server.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL:    "https://query1.finance.yahoo.com",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RateLimit:  2,
			Burst:      1,
		},
		Cache: CacheConfig{
			TTL:        15 * time.Minute,
			MaxEntries: 256,
			MaxAge:     24 * time.Hour,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		Evaluator: EvaluatorConfig{
			TickerParallelism: 4,
			TopN:              10,
			MaxCombinations:   1_000_000,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		LogLevel: "info",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path over Default, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ErrNoPriceSource is returned when neither a provider URL nor a CSV
// directory is configured.
var ErrNoPriceSource = errors.New("config sets neither provider.base_url nor provider.csv_dir")

// Validate checks field constraints.
func (c Config) Validate() error {
	if c.Provider.BaseURL == "" && c.Provider.CSVDir == "" {
		return ErrNoPriceSource
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvPostgresDSN); ok && v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v, ok := lookup(EnvClickHouseDSN); ok && v != "" {
		cfg.Storage.ClickHouseDSN = v
	}
	if v, ok := lookup(EnvProviderURL); ok && v != "" {
		cfg.Provider.BaseURL = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}
}

// WriteDefault writes the default config to path, creating its directory.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
