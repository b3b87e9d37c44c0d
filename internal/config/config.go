// Package config loads service configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the analysis service.
// Values come from a YAML file (config.yaml by default) or environment
// variables; environment variables override YAML values.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	// Database configuration. DSN is a file path for the SQLite
	// snapshot store; ":memory:" keeps everything in-process.
	Database DatabaseConfig `yaml:"database"`

	// Analysis tuning
	Analysis AnalysisConfig `yaml:"analysis"`
}

// DatabaseConfig holds the SQLite snapshot store configuration.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn" env:"SKA_DB_DSN" env-default:"ska.db"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"SKA_DB_MAX_OPEN_CONNS" env-default:"1"`
}

// AnalysisConfig holds tuning knobs for the metrics, bottleneck and
// forecast engines. Zero values fall back to each engine's defaults.
type AnalysisConfig struct {
	HistoryLimit     int     `yaml:"history_limit" env:"SKA_HISTORY_LIMIT" env-default:"10"`
	ForecastHorizon  int     `yaml:"forecast_horizon" env:"SKA_FORECAST_HORIZON" env-default:"3"`
	MinForecastRuns  int     `yaml:"min_forecast_runs" env:"SKA_MIN_FORECAST_RUNS" env-default:"3"`
	EfficiencyFactor float64 `yaml:"efficiency_factor" env:"SKA_EFFICIENCY_FACTOR" env-default:"0.7"`
	VolumeFactor     float64 `yaml:"volume_factor" env:"SKA_VOLUME_FACTOR" env-default:"1.5"`
	DistributionCV   float64 `yaml:"distribution_cv" env:"SKA_DISTRIBUTION_CV" env-default:"0.5"`
	EventBufferSize  int     `yaml:"event_buffer_size" env:"SKA_EVENT_BUFFER_SIZE" env-default:"256"`
}

// Load reads configuration from path (or config.yaml when empty) and
// the environment. A missing file is not an error; environment
// defaults apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	cfg := &Config{}
	err := cleanenv.ReadConfig(path, cfg)
	if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("reading environment: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return cfg, nil
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return c.BindAddr + ":" + c.Port
}
