package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete sage configuration
type Config struct {
	Prompts Prompts `mapstructure:"prompts"`
	Tools   Tools   `mapstructure:"tools"`
	Session Session `mapstructure:"session"`
	Pricing Pricing `mapstructure:"pricing"`
	Logging Logging `mapstructure:"logging"`
}

// Prompts controls the system prompt presets available to exchanges
type Prompts struct {
	// Active is the name of the preset used when no override is given
	Active string `mapstructure:"active"`
	// Presets maps preset name to system prompt text
	Presets map[string]string `mapstructure:"presets"`
}

// ActivePrompt returns the system prompt text for the active preset.
// An unknown or empty active preset yields an empty prompt.
func (p *Prompts) ActivePrompt() string {
	return p.Presets[p.Active]
}

// Tools controls which engine tools an exchange may use
type Tools struct {
	// Allowed is the list of tool patterns passed to the engine.
	// Patterns use glob syntax, e.g. "Bash(git *)" or "Read".
	Allowed []string `mapstructure:"allowed"`
}

// Session controls session behavior and defaults
type Session struct {
	// DefaultName is the name used for the fallback session (default: "global")
	DefaultName string `mapstructure:"default_name"`
	// MaxTurns limits conversational turns per exchange
	MaxTurns int `mapstructure:"max_turns"`
	// RetryAttempts is how many times a failed exchange may be retried
	RetryAttempts int `mapstructure:"retry_attempts"`
	// Streaming enables incremental output as the engine responds
	Streaming bool `mapstructure:"streaming"`
	// Model overrides the engine's default model when non-empty
	Model string `mapstructure:"model"`
	// Cleanup controls automatic expiry of stale sessions
	Cleanup Cleanup `mapstructure:"cleanup"`
}

// Cleanup controls the expiry sweep run before command dispatch
type Cleanup struct {
	// Auto enables the sweep (default: true)
	Auto bool `mapstructure:"auto"`
	// ShellExpiryDays is the age in days after which shell-scoped sessions expire
	ShellExpiryDays int `mapstructure:"shell_expiry_days"`
	// NamedExpiryDays is the age in days after which named sessions expire
	NamedExpiryDays int `mapstructure:"named_expiry_days"`
}

// Pricing holds the per-token rates used to estimate exchange cost.
// Costs are frozen into session records at recording time; changing these
// rates never rewrites history.
type Pricing struct {
	// InputPerMillion is the USD cost per 1M input tokens
	InputPerMillion float64 `mapstructure:"input_per_million"`
	// OutputPerMillion is the USD cost per 1M output tokens
	OutputPerMillion float64 `mapstructure:"output_per_million"`
}

// Logging controls debug logging behavior
type Logging struct {
	// Enabled controls whether debug logging is enabled (default: false)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Prompts: Prompts{
			Active: "default",
			Presets: map[string]string{
				"default": "You are a concise assistant answering questions from a shell. Prefer short answers with commands the user can run.",
			},
		},
		Tools: Tools{
			Allowed: []string{"Read", "Glob", "Grep", "Bash(git *)"},
		},
		Session: Session{
			DefaultName:   "global",
			MaxTurns:      10,
			RetryAttempts: 3,
			Streaming:     true,
			Model:         "",
			Cleanup: Cleanup{
				Auto:            true,
				ShellExpiryDays: 7,
				NamedExpiryDays: 30,
			},
		},
		Pricing: Pricing{
			InputPerMillion:  3.00,
			OutputPerMillion: 15.00,
		},
		Logging: Logging{
			Enabled: false,
			Level:   "info",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Prompt defaults
	viper.SetDefault("prompts.active", defaults.Prompts.Active)
	viper.SetDefault("prompts.presets", defaults.Prompts.Presets)

	// Tool defaults
	viper.SetDefault("tools.allowed", defaults.Tools.Allowed)

	// Session defaults
	viper.SetDefault("session.default_name", defaults.Session.DefaultName)
	viper.SetDefault("session.max_turns", defaults.Session.MaxTurns)
	viper.SetDefault("session.retry_attempts", defaults.Session.RetryAttempts)
	viper.SetDefault("session.streaming", defaults.Session.Streaming)
	viper.SetDefault("session.model", defaults.Session.Model)
	viper.SetDefault("session.cleanup.auto", defaults.Session.Cleanup.Auto)
	viper.SetDefault("session.cleanup.shell_expiry_days", defaults.Session.Cleanup.ShellExpiryDays)
	viper.SetDefault("session.cleanup.named_expiry_days", defaults.Session.Cleanup.NamedExpiryDays)

	// Pricing defaults
	viper.SetDefault("pricing.input_per_million", defaults.Pricing.InputPerMillion)
	viper.SetDefault("pricing.output_per_million", defaults.Pricing.OutputPerMillion)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper into a Config struct
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sage")
	}
	// Fall back to ~/.config/sage
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sage"
	}
	return filepath.Join(home, ".config", "sage")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the root directory for persisted sage data: session
// records, the transcript area owned by the engine, and debug logs.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "sage")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sage"
	}
	return filepath.Join(home, ".local", "share", "sage")
}

// SessionsDir returns the directory holding one record file per session.
func SessionsDir() string {
	return filepath.Join(DataDir(), "sessions")
}

// TranscriptsDir returns the directory reserved for full conversation
// transcripts. The engine owns its contents; sage never parses them.
func TranscriptsDir() string {
	return filepath.Join(DataDir(), "transcripts")
}
