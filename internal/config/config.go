// Package config loads plan-relay configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Command-line flags (applied by the caller)
//  2. Environment variables (PLAN_RELAY_*), including a .env file in the
//     current directory
//  3. Config file
//  4. Built-in defaults
//
// Config file search order (unless an explicit path is given):
//  1. .plan-relay.yaml in current directory
//  2. ~/.config/plan-relay/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/timvw/plan-relay/internal/recovery"
	"gopkg.in/yaml.v3"
)

// Supported backend providers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all plan-relay configuration.
type Config struct {
	// Backend settings
	Provider    string  `yaml:"provider"`    // ollama (default), openai, anthropic
	BaseURL     string  `yaml:"base_url"`    // empty selects the provider default
	Model       string  `yaml:"model"`       // empty selects the provider default
	APIKey      string  `yaml:"api_key"`     // only used by openai/anthropic
	Timeout     string  `yaml:"timeout"`     // Go duration string, e.g. "120s"
	Temperature float64 `yaml:"temperature"` // sampling temperature
	MaxTokens   int64   `yaml:"max_tokens"`  // only used by openai/anthropic

	// Recovery
	RecoveryMode string `yaml:"recovery_mode"` // strict, extract (default), repair

	// HTTP server
	Listen string `yaml:"listen"` // e.g. ":8000"

	// Logging
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // json, console

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs

	// Parsed values (not from YAML, set after loading)
	TimeoutDuration time.Duration `yaml:"-"`
	Recovery        recovery.Mode `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Provider:     ProviderOllama,
		Timeout:      "120s",
		Temperature:  0.3,
		MaxTokens:    4096,
		RecoveryMode: "extract",
		Listen:       ":8000",
		LogLevel:     "info",
		LogFormat:    "json",
	}
}

// Load reads configuration from the given file (or the default search
// locations when path is empty) and environment variables.
// Environment variables always override file values.
func Load(path string) (*Config, error) {
	// A missing .env is normal; variables already set are never overridden.
	_ = godotenv.Load()

	cfg := Defaults()

	filePath, data, err := findConfigFile(path)
	if err != nil && path != "" {
		return nil, err
	}
	if err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
		}
		cfg.ConfigFile = filePath
		mergeFile(cfg, &fileCfg)
	}

	mergeEnv(cfg)

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize parses derived fields and validates the configuration. Callers
// that modify a loaded Config (e.g. from flags) must call it again.
func (c *Config) Finalize() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	switch c.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider %q (supported: ollama, openai, anthropic)", c.Provider)
	}

	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid timeout %q: must be positive", c.Timeout)
	}
	c.TimeoutDuration = d

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("invalid temperature %v: must be between 0 and 2", c.Temperature)
	}

	mode, err := recovery.ParseMode(c.RecoveryMode)
	if err != nil {
		return err
	}
	c.Recovery = mode

	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q (supported: json, console)", c.LogFormat)
	}
	return nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile(path string) (string, []byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("reading config file: %w", err)
		}
		return path, data, nil
	}

	// 1. Current directory
	if data, err := os.ReadFile(".plan-relay.yaml"); err == nil {
		return ".plan-relay.yaml", data, nil
	}

	// 2. XDG config dir / ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "plan-relay", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Provider != "" {
		cfg.Provider = file.Provider
	}
	if file.BaseURL != "" {
		cfg.BaseURL = file.BaseURL
	}
	if file.Model != "" {
		cfg.Model = file.Model
	}
	if file.APIKey != "" {
		cfg.APIKey = file.APIKey
	}
	if file.Timeout != "" {
		cfg.Timeout = file.Timeout
	}
	if file.Temperature > 0 {
		cfg.Temperature = file.Temperature
	}
	if file.MaxTokens > 0 {
		cfg.MaxTokens = file.MaxTokens
	}
	if file.RecoveryMode != "" {
		cfg.RecoveryMode = file.RecoveryMode
	}
	if file.Listen != "" {
		cfg.Listen = file.Listen
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.LogFormat != "" {
		cfg.LogFormat = file.LogFormat
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) {
	if v := os.Getenv("PLAN_RELAY_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("PLAN_RELAY_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("PLAN_RELAY_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("PLAN_RELAY_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("PLAN_RELAY_TIMEOUT"); v != "" {
		cfg.Timeout = v
	}
	if v := os.Getenv("PLAN_RELAY_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Temperature = f
		}
	}
	if v := os.Getenv("PLAN_RELAY_MAX_TOKENS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv("PLAN_RELAY_RECOVERY_MODE"); v != "" {
		cfg.RecoveryMode = v
	}
	if v := os.Getenv("PLAN_RELAY_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("PLAN_RELAY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PLAN_RELAY_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}

	// API key fallbacks per provider
	if cfg.APIKey == "" {
		switch strings.ToLower(cfg.Provider) {
		case ProviderOpenAI:
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderAnthropic:
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
}
