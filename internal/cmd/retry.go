package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sagecli/sage/internal/errors"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Resend the last failed question",
	Long: `Resubmit the most recently failed question with identical text.
Only failures from this process run are remembered.`,
	Args: cobra.NoArgs,
	RunE: runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	question, ok := failures.LastFailure()
	if !ok {
		return errors.ErrNoPriorFailure
	}
	return runExchange(cmd.Context(), question)
}
