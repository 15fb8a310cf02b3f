package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagecli/sage/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect sage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println(headerStyle.Render("Configuration"))
	fmt.Printf("  Config file:  %s\n", config.ConfigFile())
	fmt.Printf("  Data dir:     %s\n", config.DataDir())
	fmt.Println()
	fmt.Printf("  Active prompt preset: %s\n", cfg.Prompts.Active)
	for name := range cfg.Prompts.Presets {
		marker := " "
		if name == cfg.Prompts.Active {
			marker = "*"
		}
		fmt.Printf("   %s %s\n", marker, name)
	}
	fmt.Printf("  Allowed tools:  %v\n", cfg.Tools.Allowed)
	fmt.Printf("  Default session: %s\n", cfg.Session.DefaultName)
	fmt.Printf("  Max turns:      %d\n", cfg.Session.MaxTurns)
	fmt.Printf("  Retry attempts: %d\n", cfg.Session.RetryAttempts)
	fmt.Printf("  Streaming:      %v\n", cfg.Session.Streaming)
	if cfg.Session.Model != "" {
		fmt.Printf("  Model:          %s\n", cfg.Session.Model)
	}
	fmt.Printf("  Auto cleanup:   %v (shell %dd, named %dd)\n",
		cfg.Session.Cleanup.Auto,
		cfg.Session.Cleanup.ShellExpiryDays,
		cfg.Session.Cleanup.NamedExpiryDays,
	)
	fmt.Printf("  Pricing:        $%.2f in / $%.2f out per 1M tokens\n",
		cfg.Pricing.InputPerMillion,
		cfg.Pricing.OutputPerMillion,
	)
	return nil
}
