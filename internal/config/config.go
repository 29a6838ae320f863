// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// GenerateAttempts is the fixed number of backend attempts per generation.
	GenerateAttempts = 3
	// MaxJobFailures is the fixed number of reported failures that evicts a job.
	MaxJobFailures = 3
)

// Config holds all application configuration.
type Config struct {
	Port        string `yaml:"port"`
	FrontendURL string `yaml:"frontend_url"`
	LogLevel    string `yaml:"log_level"`

	// TrustedProxy honors X-Forwarded-For/X-Real-IP. Only set it when a
	// proxy in front of the broker overwrites those headers.
	TrustedProxy bool `yaml:"trusted_proxy"`

	LLM      LLMConfig     `yaml:"llm"`
	Queue    QueueConfig   `yaml:"queue"`
	Sessions SessionConfig `yaml:"sessions"`

	GenerateRatePerMinute int    `yaml:"generate_rate_per_minute"`
	HealthGRPCAddr        string `yaml:"health_grpc_addr"`
	MaxImageBytes         int    `yaml:"max_image_bytes"`
}

// LLMConfig configures the text-generation backend.
type LLMConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// QueueConfig controls print job lifetimes.
type QueueConfig struct {
	JobTTL        time.Duration `yaml:"job_ttl"`
	ClaimTTL      time.Duration `yaml:"claim_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// SessionConfig controls input session lifetimes.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

func defaults() *Config {
	return &Config{
		Port:     "8080",
		LogLevel: "info",
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 20 * time.Second,
		},
		Queue: QueueConfig{
			JobTTL:        10 * time.Minute,
			ClaimTTL:      60 * time.Second,
			SweepInterval: 15 * time.Second,
		},
		Sessions: SessionConfig{
			TTL:           10 * time.Minute,
			SweepInterval: 60 * time.Second,
		},
		GenerateRatePerMinute: 20,
		HealthGRPCAddr:        ":9090",
		MaxImageBytes:         8 << 20,
	}
}

// Load reads configuration from an optional YAML file named by CONFIG_FILE,
// then applies environment variable overrides.
func Load() (*Config, error) {
	cfg := defaults()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.FrontendURL = getEnv("FRONTEND_URL", cfg.FrontendURL)
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.TrustedProxy = getEnvBool("TRUSTED_PROXY", cfg.TrustedProxy)

	cfg.LLM.BaseURL = strings.TrimRight(getEnv("LLM_BASE_URL", cfg.LLM.BaseURL), "/")
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Timeout = getEnvDuration("LLM_TIMEOUT", cfg.LLM.Timeout)

	cfg.Queue.JobTTL = getEnvDuration("JOB_TTL", cfg.Queue.JobTTL)
	cfg.Queue.ClaimTTL = getEnvDuration("CLAIM_TTL", cfg.Queue.ClaimTTL)
	cfg.Queue.SweepInterval = getEnvDuration("QUEUE_SWEEP_INTERVAL", cfg.Queue.SweepInterval)

	cfg.Sessions.TTL = getEnvDuration("SESSION_TTL", cfg.Sessions.TTL)
	cfg.Sessions.SweepInterval = getEnvDuration("SESSION_SWEEP_INTERVAL", cfg.Sessions.SweepInterval)

	cfg.GenerateRatePerMinute = getEnvInt("GENERATE_RATE_PER_MINUTE", cfg.GenerateRatePerMinute)
	cfg.HealthGRPCAddr = getEnv("HEALTH_GRPC_ADDR", cfg.HealthGRPCAddr)
	cfg.MaxImageBytes = getEnvInt("MAX_IMAGE_BYTES", cfg.MaxImageBytes)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL cannot be empty")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	if c.Queue.JobTTL <= 0 {
		return fmt.Errorf("JOB_TTL must be > 0")
	}
	if c.Queue.ClaimTTL <= 0 {
		return fmt.Errorf("CLAIM_TTL must be > 0")
	}
	if c.Queue.SweepInterval <= 0 {
		return fmt.Errorf("QUEUE_SWEEP_INTERVAL must be > 0")
	}
	if c.Sessions.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Sessions.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.GenerateRatePerMinute <= 0 {
		return fmt.Errorf("GENERATE_RATE_PER_MINUTE must be > 0")
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be > 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %s (valid: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// GeneratorConfigured reports whether an API key is available for the backend.
func (c *Config) GeneratorConfigured() bool {
	return c.LLM.APIKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
}

// getEnvDuration accepts Go duration strings ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
