package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"go-sales-etl/internal/model"
	"go-sales-etl/pkg/utils"
)

// Config is the application configuration loaded once at startup. The
// pipeline section is converted into a model.RunConfig and threaded
// through the orchestrator constructor; nothing reads it globally
// mid-run.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	RunDB string `yaml:"run_db"`

	Sink struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
		Table  string `yaml:"table"`
	} `yaml:"sink"`

	Source model.Source `yaml:"source"`

	Pipeline PipelineConfig `yaml:"pipeline"`
}

// PipelineConfig mirrors model.RunConfig with YAML-friendly durations.
type PipelineConfig struct {
	Retry struct {
		MaxAttempts   int     `yaml:"max_attempts"`
		InitialDelay  string  `yaml:"initial_delay"`
		MaxDelay      string  `yaml:"max_delay"`
		BackoffFactor float64 `yaml:"backoff_factor"`
		Jitter        *bool   `yaml:"jitter"`
	} `yaml:"retry"`

	Cache struct {
		Capacity int    `yaml:"capacity"`
		TTL      string `yaml:"ttl"`
	} `yaml:"cache"`

	Load struct {
		ChunkSize   int `yaml:"chunk_size"`
		Parallelism int `yaml:"parallelism"`
	} `yaml:"load"`

	Quality struct {
		RequiredFields   []string           `yaml:"required_fields"`
		MinValues        map[string]float64 `yaml:"min_values"`
		MaxValues        map[string]float64 `yaml:"max_values"`
		Tolerance        float64            `yaml:"tolerance"`
		StalenessHorizon string             `yaml:"staleness_horizon"`
		Weights          *model.ScoreWeights `yaml:"weights"`
	} `yaml:"quality"`
}

// Load reads the YAML file (optional) and applies environment overrides
// on top of the built-in defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.RunDB = "runs.db"
	cfg.Sink.Driver = "sqlite3"
	cfg.Sink.DSN = "sales.db"
	cfg.Sink.Table = "sales"

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.RunDB = getEnv("RUN_DB", cfg.RunDB)
	cfg.Sink.Driver = getEnv("SINK_DRIVER", cfg.Sink.Driver)
	cfg.Sink.DSN = getEnv("SINK_DSN", cfg.Sink.DSN)
	return cfg, nil
}

// RunConfig merges the pipeline section onto the defaults.
func (c *Config) RunConfig() model.RunConfig {
	rc := model.DefaultRunConfig()
	p := c.Pipeline

	if p.Retry.MaxAttempts > 0 {
		rc.Retry.MaxAttempts = p.Retry.MaxAttempts
	}
	rc.Retry.InitialDelay = utils.ParseDuration(p.Retry.InitialDelay, rc.Retry.InitialDelay)
	rc.Retry.MaxDelay = utils.ParseDuration(p.Retry.MaxDelay, rc.Retry.MaxDelay)
	if p.Retry.BackoffFactor > 0 {
		rc.Retry.BackoffFactor = p.Retry.BackoffFactor
	}
	if p.Retry.Jitter != nil {
		rc.Retry.Jitter = *p.Retry.Jitter
	}

	if p.Cache.Capacity > 0 {
		rc.Cache.Capacity = p.Cache.Capacity
	}
	rc.Cache.TTL = utils.ParseDuration(p.Cache.TTL, rc.Cache.TTL)

	if p.Load.ChunkSize > 0 {
		rc.Load.ChunkSize = p.Load.ChunkSize
	}
	if p.Load.Parallelism > 0 {
		rc.Load.Parallelism = p.Load.Parallelism
	}

	if len(p.Quality.RequiredFields) > 0 {
		rc.Rules.RequiredFields = p.Quality.RequiredFields
	}
	if len(p.Quality.MinValues) > 0 {
		rc.Rules.MinValues = p.Quality.MinValues
	}
	if len(p.Quality.MaxValues) > 0 {
		rc.Rules.MaxValues = p.Quality.MaxValues
	}
	if p.Quality.Tolerance > 0 {
		rc.Rules.Tolerance = p.Quality.Tolerance
	}
	rc.Rules.StalenessHorizon = utils.ParseDuration(p.Quality.StalenessHorizon, rc.Rules.StalenessHorizon)
	if p.Quality.Weights != nil {
		rc.Rules.Weights = *p.Quality.Weights
	}
	return rc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
