package main

import (
	"os"

	"github.com/sagecli/sage/internal/cmd"
	"github.com/sagecli/sage/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		// User-correctable errors (unknown session, bad preset) exit 2 so
		// shell integrations can distinguish them from engine failures.
		if errors.IsUserFacing(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
