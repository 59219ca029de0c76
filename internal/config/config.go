// Package config loads the scanner's YAML configuration: the series list,
// scan defaults, fetch limits, and storage backends.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"leadlag-scanner/internal/domain"
)

// SeriesConfig is one entry of the configured series list.
type SeriesConfig struct {
	Name       string            `yaml:"name"`
	Source     string            `yaml:"source"`
	Symbol     string            `yaml:"symbol"`
	Resolution string            `yaml:"resolution"`
	Params     map[string]string `yaml:"params"`
}

// Spec converts a series entry into a domain spec.
func (s SeriesConfig) Spec() (domain.SeriesSpec, error) {
	resolution, err := domain.ParseResolution(s.Resolution)
	if err != nil {
		return domain.SeriesSpec{}, fmt.Errorf("series %q: %w", s.Name, err)
	}
	return domain.SeriesSpec{
		Name:       s.Name,
		Source:     s.Source,
		Symbol:     s.Symbol,
		Resolution: resolution,
		Params:     s.Params,
	}, nil
}

type Config struct {
	Scan struct {
		Target       string        `yaml:"target"`
		LookbackDays int           `yaml:"lookback_days"`
		MaxLag       int           `yaml:"max_lag"`
		TopN         int           `yaml:"top_n"`
		MinSamples   int           `yaml:"min_samples"`
		Resolution   string        `yaml:"resolution"` // empty = coarsest requested
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"scan"`

	Fetch struct {
		PerSourceLimit int                      `yaml:"per_source_limit"`
		GlobalLimit    int                      `yaml:"global_limit"`
		RetryBackoff   time.Duration            `yaml:"retry_backoff"`
		TTLOverrides   map[string]time.Duration `yaml:"ttl_overrides"` // source -> TTL
	} `yaml:"fetch"`

	Storage struct {
		Backend       string `yaml:"backend"` // memory | postgres
		PostgresDSN   string `yaml:"postgres_dsn"`
		ClickHouseDSN string `yaml:"clickhouse_dsn"` // optional scan-history store
	} `yaml:"storage"`

	Sources struct {
		FredAPIKey string `yaml:"fred_api_key"`
	} `yaml:"sources"`

	Series []SeriesConfig `yaml:"series"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FRED_API_KEY"); v != "" {
		c.Sources.FredAPIKey = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		c.Storage.ClickHouseDSN = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Scan.LookbackDays <= 0 {
		c.Scan.LookbackDays = 365
	}
	if c.Scan.MaxLag <= 0 {
		c.Scan.MaxLag = 5
	}
	if c.Scan.TopN <= 0 {
		c.Scan.TopN = 2
	}
	if c.Scan.MinSamples <= 0 {
		c.Scan.MinSamples = 30
	}
	if c.Scan.Timeout <= 0 {
		c.Scan.Timeout = 5 * time.Minute
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Series) == 0 {
		return fmt.Errorf("series list cannot be empty")
	}
	if c.Scan.Target == "" {
		return fmt.Errorf("scan.target is required")
	}
	if c.Storage.Backend != "memory" && c.Storage.Backend != "postgres" {
		return fmt.Errorf("storage.backend must be 'memory' or 'postgres', got '%s'", c.Storage.Backend)
	}
	if c.Storage.Backend == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required for the postgres backend")
	}
	if c.Scan.Resolution != "" {
		if _, err := domain.ParseResolution(c.Scan.Resolution); err != nil {
			return fmt.Errorf("scan.resolution: %w", err)
		}
	}

	seen := make(map[string]bool, len(c.Series))
	targetFound := false
	for _, s := range c.Series {
		if s.Name == "" {
			return fmt.Errorf("every series needs a name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate series name '%s'", s.Name)
		}
		seen[s.Name] = true

		if s.Source == "" {
			return fmt.Errorf("series '%s': source is required", s.Name)
		}
		if s.Symbol == "" {
			return fmt.Errorf("series '%s': symbol is required", s.Name)
		}
		if _, err := domain.ParseResolution(s.Resolution); err != nil {
			return fmt.Errorf("series '%s': %w", s.Name, err)
		}
		if s.Name == c.Scan.Target {
			targetFound = true
		}
	}
	if !targetFound {
		return fmt.Errorf("scan.target '%s' is not in the series list", c.Scan.Target)
	}
	return nil
}

// Specs converts the configured series list into domain specs, preserving
// order.
func (c *Config) Specs() ([]domain.SeriesSpec, error) {
	specs := make([]domain.SeriesSpec, 0, len(c.Series))
	for _, s := range c.Series {
		spec, err := s.Spec()
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Window computes the scan window ending at now with the configured
// lookback, in Unix milliseconds.
func (c *Config) Window(now time.Time) (startMs, endMs int64) {
	end := now.UTC()
	start := end.AddDate(0, 0, -c.Scan.LookbackDays)
	return start.UnixMilli(), end.UnixMilli()
}
