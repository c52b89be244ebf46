package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "8080" || cfg.RunDB != "runs.db" ||
		cfg.Sink.Driver != "sqlite3" || cfg.Sink.Table != "sales" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: "9090"
sink:
  driver: postgres
  dsn: postgres://localhost/sales
source:
  type: csv
  url: data/sales.csv
pipeline:
  retry:
    max_attempts: 5
    initial_delay: 500ms
  load:
    chunk_size: 200
    parallelism: 8
  quality:
    tolerance: 0.05
    staleness_horizon: 720h
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "9090" || cfg.Sink.Driver != "postgres" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Source.Type != "csv" || cfg.Source.URL != "data/sales.csv" {
		t.Errorf("source = %+v", cfg.Source)
	}

	rc := cfg.RunConfig()
	if rc.Retry.MaxAttempts != 5 || rc.Retry.InitialDelay != 500*time.Millisecond {
		t.Errorf("retry = %+v", rc.Retry)
	}
	if rc.Load.ChunkSize != 200 || rc.Load.Parallelism != 8 {
		t.Errorf("load = %+v", rc.Load)
	}
	if rc.Rules.Tolerance != 0.05 || rc.Rules.StalenessHorizon != 720*time.Hour {
		t.Errorf("rules = %+v", rc.Rules)
	}
	// untouched sections keep their defaults
	if rc.Retry.MaxDelay != 30*time.Second || rc.Cache.Capacity != 128 {
		t.Errorf("defaults lost on merge: %+v", rc)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("SINK_DSN", "env.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "7070" || cfg.Sink.DSN != "env.db" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("a named but missing config file is an error")
	}
}
