package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Queue.ClaimTTL != 60*time.Second {
		t.Errorf("ClaimTTL = %v, want 60s", cfg.Queue.ClaimTTL)
	}
	if cfg.Sessions.TTL != 10*time.Minute {
		t.Errorf("Sessions.TTL = %v, want 10m", cfg.Sessions.TTL)
	}
	if cfg.TrustedProxy {
		t.Error("TrustedProxy should default to false")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JOB_TTL", "5m")
	t.Setenv("CLAIM_TTL", "30")
	t.Setenv("LLM_BASE_URL", "http://localhost:11434/v1/")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TRUSTED_PROXY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Queue.JobTTL != 5*time.Minute {
		t.Errorf("JobTTL = %v, want 5m", cfg.Queue.JobTTL)
	}
	if cfg.Queue.ClaimTTL != 30*time.Second {
		t.Errorf("ClaimTTL = %v, want 30s", cfg.Queue.ClaimTTL)
	}
	if cfg.LLM.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.LLM.BaseURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if !cfg.TrustedProxy {
		t.Error("TrustedProxy = false, want true from env")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.yaml")
	body := "port: \"9000\"\nllm:\n  model: local-model\nqueue:\n  job_ttl: 2m\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("Port = %q, env should win over file", cfg.Port)
	}
	if cfg.LLM.Model != "local-model" {
		t.Errorf("Model = %q, want local-model", cfg.LLM.Model)
	}
	if cfg.Queue.JobTTL != 2*time.Minute {
		t.Errorf("JobTTL = %v, want 2m", cfg.Queue.JobTTL)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"zero claim ttl", func(c *Config) { c.Queue.ClaimTTL = 0 }},
		{"negative session ttl", func(c *Config) { c.Sessions.TTL = -time.Second }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"zero image limit", func(c *Config) { c.MaxImageBytes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
