package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagecli/sage/internal/config"
	"github.com/sagecli/sage/internal/engine"
	"github.com/sagecli/sage/internal/errors"
	"github.com/sagecli/sage/internal/retry"
	"github.com/sagecli/sage/internal/session"
	"github.com/sagecli/sage/internal/tools"
)

// ShellPIDEnv is set by the shell integration layer to the pid of the
// calling shell, enabling per-window sessions.
const ShellPIDEnv = "SAGE_SHELL_PID"

var (
	askSessionName string
	askNewSession  bool
	askShellScoped bool
	askEphemeral   bool
	askModel       string
	askPreset      string
)

// failures remembers the last failed question for this process run.
var failures = retry.NewCache()

func init() {
	rootCmd.Flags().StringVarP(&askSessionName, "session", "s", "", "use the named session")
	rootCmd.Flags().BoolVarP(&askNewSession, "new", "n", false, "start the named session over with fresh context")
	rootCmd.Flags().BoolVar(&askShellScoped, "shell", false, "use a session scoped to this shell window (requires "+ShellPIDEnv+")")
	rootCmd.Flags().BoolVar(&askEphemeral, "ephemeral", false, "answer without touching session state")
	rootCmd.Flags().StringVar(&askModel, "model", "", "override the configured model")
	rootCmd.Flags().StringVar(&askPreset, "prompt", "", "use the named system prompt preset")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return cmd.Help()
	}
	return runExchange(cmd.Context(), question)
}

// runExchange is the shared ask/retry path: resolve the session, run the
// engine exchange (with configured retries), and record the outcome.
func runExchange(ctx context.Context, question string) error {
	cfg := config.Get()
	log := newLogger(cfg)
	defer log.Close()

	store, err := session.NewFileStore(config.SessionsDir(), log)
	if err != nil {
		return err
	}

	resolver := session.NewResolver(store, log)
	rec, err := resolver.Resolve(ctx, session.Request{
		Name:        sessionNameFromFlags(cfg),
		PID:         shellPID(),
		ShellScoped: askShellScoped,
		ForceNew:    askNewSession,
	})
	if err != nil {
		return err
	}
	log = log.WithSession(rec.Name)

	opts, err := exchangeOptions(cfg, rec, question)
	if err != nil {
		return err
	}

	client := engine.NewClient(engine.DefaultCommand, log)
	manager := session.NewManager(store, ratesFromConfig(cfg), log)

	attempts := cfg.Session.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var res *engine.Result
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, lastErr = client.Query(ctx, opts, streamHandler(cfg))
		if lastErr == nil {
			break
		}

		// Remember the question before surfacing the failure so an
		// explicit retry can resubmit identical text.
		failures.RecordFailure(question)
		log.Warn("exchange failed", "attempt", attempt, "error", lastErr.Error())

		if !errors.Is(lastErr, errors.ErrEngineFailed) || ctx.Err() != nil {
			break
		}
	}

	// Fold whatever the engine reported back into the record. A stream
	// that never produced a terminal event has nothing to account for.
	if res != nil && res.Completed {
		if res.ResumeToken != "" {
			rec.ResumeToken = res.ResumeToken
		}
		usage := session.Usage{
			InputTokens:  res.Usage.InputTokens,
			OutputTokens: res.Usage.OutputTokens,
		}
		if err := manager.RecordOutcome(ctx, rec, askEphemeral, res.Turns, usage, res.IsError); err != nil {
			if lastErr == nil {
				return err
			}
			log.Error("failed to persist session after exchange", "error", err.Error())
		}
	}

	if lastErr != nil {
		return lastErr
	}

	if !cfg.Session.Streaming && res.Text != "" {
		fmt.Println(res.Text)
	}
	return nil
}

// sessionNameFromFlags returns the explicit session name for the request.
// The configured default name only applies when it differs from the global
// fallback, so plain invocations still resolve the global session.
func sessionNameFromFlags(cfg *config.Config) string {
	if askSessionName != "" {
		return askSessionName
	}
	if !askShellScoped && cfg.Session.DefaultName != session.GlobalName {
		return cfg.Session.DefaultName
	}
	return ""
}

// exchangeOptions assembles engine options from config and per-session
// overrides. Tool patterns are compiled up front so a bad entry fails the
// command before any engine process is spawned.
func exchangeOptions(cfg *config.Config, rec *session.Record, question string) (engine.Options, error) {
	patterns := cfg.Tools.Allowed
	if len(rec.OverrideTools) > 0 {
		patterns = rec.OverrideTools
	}
	allowlist, err := tools.Compile(patterns)
	if err != nil {
		return engine.Options{}, err
	}

	systemPrompt := rec.OverridePrompt
	if systemPrompt == "" {
		preset := cfg.Prompts.Active
		if askPreset != "" {
			preset = askPreset
		}
		text, ok := cfg.Prompts.Presets[preset]
		if !ok && askPreset != "" {
			return engine.Options{}, fmt.Errorf("%w: %q", errors.ErrUnknownPreset, askPreset)
		}
		systemPrompt = text
	}

	model := cfg.Session.Model
	if askModel != "" {
		model = askModel
	}

	wd, _ := os.Getwd()
	return engine.Options{
		Prompt:         question,
		SystemPrompt:   systemPrompt,
		AllowedTools:   allowlist.Patterns(),
		PermissionMode: "default",
		WorkingDir:     wd,
		MaxTurns:       cfg.Session.MaxTurns,
		ResumeToken:    rec.ResumeToken,
		Model:          model,
	}, nil
}

// streamHandler prints assistant fragments as they arrive when streaming
// is enabled; otherwise the final result text is printed by the caller.
func streamHandler(cfg *config.Config) engine.Handler {
	if !cfg.Session.Streaming {
		return nil
	}
	printed := false
	return func(ev *engine.Event) {
		switch {
		case ev.Type == engine.TypeAssistant:
			if text := ev.Text(); text != "" {
				fmt.Print(text)
				printed = true
			}
		case ev.Type == engine.TypeResult && printed:
			fmt.Println()
		}
	}
}

// shellPID reads the calling shell's pid from the integration env var.
// Absent or malformed values mean no shell scoping.
func shellPID() int {
	raw := os.Getenv(ShellPIDEnv)
	if raw == "" {
		return 0
	}
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}
