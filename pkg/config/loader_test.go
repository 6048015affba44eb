package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Anomaly.Threshold != 3.0 {
		t.Errorf("expected default threshold 3.0, got %v", cfg.Anomaly.Threshold)
	}
	if cfg.Anomaly.DefaultWindow != 7*24*time.Hour {
		t.Errorf("expected default window 168h, got %v", cfg.Anomaly.DefaultWindow)
	}
	if cfg.Sweep.Concurrency != 5 {
		t.Errorf("expected default sweep concurrency 5, got %d", cfg.Sweep.Concurrency)
	}
	if cfg.Ingestion.ClaimUnownedDevices {
		t.Error("expected unowned devices not to be claimed by default")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/sentinel")
	t.Setenv("APP_SWEEP_CONCURRENCY", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Database.URL != "postgres://u:p@db:5432/sentinel" {
		t.Errorf("expected database url from env, got %q", cfg.Database.URL)
	}
	if cfg.Sweep.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.Sweep.Concurrency)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Anomaly: AnomalyConfig{Threshold: 3, MinSamples: 10},
		Sweep:   SweepConfig{Concurrency: 5},
		Queue:   QueueConfig{Driver: "nats"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]func(c *Config){
		"zero threshold":   func(c *Config) { c.Anomaly.Threshold = 0 },
		"one sample":       func(c *Config) { c.Anomaly.MinSamples = 1 },
		"zero concurrency": func(c *Config) { c.Sweep.Concurrency = 0 },
		"unknown driver":   func(c *Config) { c.Queue.Driver = "kafka" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
