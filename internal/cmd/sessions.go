package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sagecli/sage/internal/config"
	"github.com/sagecli/sage/internal/errors"
	"github.com/sagecli/sage/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage sage sessions",
	Long:  `Commands for listing, inspecting, deleting, and exporting sage sessions.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	Long: `List every persisted session, most recently used first, with its
kind, message count, token usage, and estimated cost.`,
	RunE: runSessionsList,
}

var sessionsInfoCmd = &cobra.Command{
	Use:   "info [name]",
	Short: "Show details for a session",
	Long: `Show the full metadata of one session. With no name, shows the
global session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessionsInfo,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all sessions",
	Long:  `Delete every session regardless of kind or recency.`,
	RunE:  runSessionsClear,
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <name> [file]",
	Short: "Export a session's metadata",
	Long: `Write a human-readable metadata report for a session to the given
file, or to stdout when no file is named. Conversation transcripts live in
the engine's own storage and are not included.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSessionsExport,
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	nameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	kindStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsInfoCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
}

// newManager builds the store-backed lifecycle manager shared by the
// session subcommands.
func newManager() (*session.Manager, error) {
	cfg := config.Get()
	log := newLogger(cfg)
	store, err := session.NewFileStore(config.SessionsDir(), log)
	if err != nil {
		return nil, err
	}
	return session.NewManager(store, ratesFromConfig(cfg), log), nil
}

func newStore() (session.Store, error) {
	cfg := config.Get()
	return session.NewFileStore(config.SessionsDir(), newLogger(cfg))
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := newStore()
	if err != nil {
		return err
	}

	records, err := store.ListAll(cmd.Context())
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No sessions yet. Ask something to create one.")
		return nil
	}

	now := time.Now()
	fmt.Println(headerStyle.Render(fmt.Sprintf("Sessions (%d)", len(records))))
	for _, rec := range records {
		fmt.Printf("  %s %s\n", nameStyle.Render(rec.Name), kindStyle.Render("["+string(rec.Kind)+"]"))
		fmt.Printf("    %s\n", faintStyle.Render(fmt.Sprintf(
			"last used %s · %d messages · %d tokens · $%.4f",
			session.RelativeTime(rec.LastUsed, now),
			rec.MessageCount,
			rec.TotalTokens,
			rec.TotalCost,
		)))
	}
	return nil
}

func runSessionsInfo(cmd *cobra.Command, args []string) error {
	name := session.GlobalName
	if len(args) > 0 {
		name = args[0]
	}

	manager, err := newManager()
	if err != nil {
		return err
	}

	rec, err := manager.Info(cmd.Context(), name)
	if err != nil {
		return err
	}

	now := time.Now()
	fmt.Println(headerStyle.Render(rec.Name) + " " + kindStyle.Render("["+string(rec.Kind)+"]"))
	fmt.Printf("  ID:        %s\n", rec.ID)
	fmt.Printf("  Created:   %s\n", rec.Created.Format(time.RFC822))
	fmt.Printf("  Last used: %s (%s)\n", rec.LastUsed.Format(time.RFC822), session.RelativeTime(rec.LastUsed, now))
	fmt.Printf("  Messages:  %d\n", rec.MessageCount)
	fmt.Printf("  Tokens:    %d\n", rec.TotalTokens)
	fmt.Printf("  Cost:      $%.4f\n", rec.TotalCost)
	if rec.ResumeToken != "" {
		fmt.Printf("  Resumable: yes\n")
	} else {
		fmt.Printf("  Resumable: no (next exchange starts fresh)\n")
	}
	if rec.OwnerPID != 0 {
		fmt.Printf("  Shell PID: %d\n", rec.OwnerPID)
	}
	if rec.OverridePrompt != "" {
		fmt.Printf("  Prompt override: %s\n", rec.OverridePrompt)
	}
	if len(rec.OverrideTools) > 0 {
		fmt.Printf("  Tool overrides:  %v\n", rec.OverrideTools)
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	store, err := newStore()
	if err != nil {
		return err
	}

	removed, err := store.Delete(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !removed {
		return errors.NewNotFoundError("session", args[0])
	}
	fmt.Printf("Deleted session %q\n", args[0])
	return nil
}

func runSessionsClear(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	deleted, err := manager.ClearAll(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d session(s)\n", deleted)
	return nil
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	name := args[0]
	if len(args) == 1 {
		return manager.Export(cmd.Context(), name, os.Stdout)
	}

	f, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := manager.Export(cmd.Context(), name, f); err != nil {
		return err
	}
	fmt.Printf("Exported session %q to %s\n", name, args[1])
	return nil
}
