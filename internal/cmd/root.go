// Package cmd wires sage's cobra commands: the root ask command,
// session management, retry, and config inspection.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sagecli/sage/internal/config"
	"github.com/sagecli/sage/internal/logging"
	"github.com/sagecli/sage/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "sage [question...]",
	Short: "Session-persistent AI assistant for your shell",
	Long: `Sage answers questions from your shell using the Claude Code CLI,
keeping named conversation sessions that survive across invocations.
Each shell window can have its own session, and explicit names let you
keep separate topics of conversation going side by side.`,
	Args:          cobra.ArbitraryArgs,
	RunE:          runAsk,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/sage/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.PersistentPreRunE = sweepBeforeDispatch
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SAGE")
	// Replace dots with underscores for nested keys in env vars
	// e.g., SAGE_SESSION_MAX_TURNS for session.max_turns
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// sweepBeforeDispatch runs the expiry sweep ahead of every command when
// auto-cleanup is enabled. Sweep failures are logged, not fatal: a stale
// record must never block the command the user actually asked for.
func sweepBeforeDispatch(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	if !cfg.Session.Cleanup.Auto {
		return nil
	}

	log := newLogger(cfg)
	defer log.Close()

	store, err := session.NewFileStore(config.SessionsDir(), log)
	if err != nil {
		log.Warn("expiry sweep skipped", "error", err.Error())
		return nil
	}

	manager := session.NewManager(store, ratesFromConfig(cfg), log)
	deleted, err := manager.SweepExpired(cmd.Context(), session.Policy{
		ShellExpiryDays: cfg.Session.Cleanup.ShellExpiryDays,
		NamedExpiryDays: cfg.Session.Cleanup.NamedExpiryDays,
	})
	if err != nil {
		log.Warn("expiry sweep failed", "error", err.Error())
		return nil
	}
	if deleted > 0 {
		log.Info("expiry sweep complete", "deleted", deleted)
	}
	return nil
}

// newLogger builds the process logger from config. Disabled logging yields
// a no-op logger rather than conditional call sites.
func newLogger(cfg *config.Config) *logging.Logger {
	if !cfg.Logging.Enabled {
		return logging.Nop()
	}
	log, err := logging.New(config.DataDir(), cfg.Logging.Level)
	if err != nil {
		return logging.Nop()
	}
	return log
}

func ratesFromConfig(cfg *config.Config) session.Rates {
	return session.Rates{
		InputPerMillion:  cfg.Pricing.InputPerMillion,
		OutputPerMillion: cfg.Pricing.OutputPerMillion,
	}
}
