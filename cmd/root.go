package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/timvw/plan-relay/internal/backend"
	"github.com/timvw/plan-relay/internal/config"
	"github.com/timvw/plan-relay/internal/logging"
	"go.uber.org/zap"
)

var (
	// Global flags.
	flagConfig       string
	flagProvider     string
	flagModel        string
	flagBaseURL      string
	flagAPIKey       string
	flagTimeout      string
	flagRecoveryMode string
	flagMaxTokens    int64
	flagVerbose      bool

	// Set by PersistentPreRunE.
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "plan-relay",
	Short: "Study-plan relay in front of a local language model",
	Long: `plan-relay turns a topic and a number of days into a day-by-day study
plan by prompting a language model (Ollama by default) for JSON.

Models asked for "JSON only" still wrap their answer in prose or markdown.
plan-relay recovers the JSON payload from the raw text and returns a
structured result either way: the plan on success, or the raw output with
backend context on failure.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}

		// One-shot commands keep stderr quiet unless asked.
		level := cfg.LogLevel
		if cmd.Name() != "serve" {
			level = "warn"
		}
		logger, err = logging.New(logging.Options{
			Level:   level,
			Format:  cfg.LogFormat,
			Verbose: flagVerbose,
		})
		if err != nil {
			return err
		}
		if cfg.ConfigFile != "" {
			logger.Info("config loaded", zap.String("file", cfg.ConfigFile))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", envOrDefault("PLAN_RELAY_CONFIG", ""), "config file (default: .plan-relay.yaml, then ~/.config/plan-relay/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", envOrDefault("PLAN_RELAY_PROVIDER", ""), "inference provider: ollama, openai, anthropic (default: ollama)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", envOrDefault("PLAN_RELAY_MODEL", ""), "default model (default: qwen2.5:7b for ollama, gpt-4o-mini for openai, claude-sonnet-4-5 for anthropic)")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", envOrDefault("PLAN_RELAY_BASE_URL", ""), "override backend URL (default: http://localhost:11434/api/generate for ollama)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", envOrDefault("PLAN_RELAY_API_KEY", ""), "override backend API key")
	rootCmd.PersistentFlags().StringVar(&flagTimeout, "timeout", envOrDefault("PLAN_RELAY_TIMEOUT", ""), "backend call timeout (default: 120s)")
	rootCmd.PersistentFlags().StringVar(&flagRecoveryMode, "recovery-mode", envOrDefault("PLAN_RELAY_RECOVERY_MODE", ""), "JSON recovery: strict, extract, repair (default: extract)")
	rootCmd.PersistentFlags().Int64Var(&flagMaxTokens, "max-tokens", 0, "max completion tokens for openai/anthropic (default: 4096)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "debug logging")
}

// loadConfig loads the config file and environment, then applies flags.
func loadConfig() (*config.Config, error) {
	c, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{flagProvider, &c.Provider},
		{flagModel, &c.Model},
		{flagBaseURL, &c.BaseURL},
		{flagAPIKey, &c.APIKey},
		{flagTimeout, &c.Timeout},
		{flagRecoveryMode, &c.RecoveryMode},
	}
	for _, o := range overrides {
		if o.flag != "" {
			*o.dst = o.flag
		}
	}
	if flagMaxTokens > 0 {
		c.MaxTokens = flagMaxTokens
	}

	if err := c.Finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// getGenerator returns the configured inference backend.
func getGenerator() (backend.Generator, error) {
	return backend.New(backend.FromConfig(cfg))
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
