package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sagecli/sage/internal/errors"
	"github.com/sagecli/sage/internal/logging"
)

// DefaultCommand is the engine binary invoked when none is configured.
const DefaultCommand = "claude"

// Options configures one exchange.
type Options struct {
	// Prompt is the user's question text.
	Prompt string
	// SystemPrompt is appended to the engine's system prompt when non-empty.
	SystemPrompt string
	// AllowedTools restricts which tools the engine may invoke.
	AllowedTools []string
	// PermissionMode is passed through to the engine (e.g. "default",
	// "acceptEdits").
	PermissionMode string
	// WorkingDir is the directory the engine runs in; empty means inherit.
	WorkingDir string
	// MaxTurns limits conversational turns; 0 means the engine default.
	MaxTurns int
	// ResumeToken continues a prior conversation when non-empty; otherwise
	// the engine starts fresh and issues a new token via the init event.
	ResumeToken string
	// Model overrides the engine's default model when non-empty.
	Model string
}

// Handler receives each decoded event as it arrives. Used for streaming
// display; the final Result is returned from Query regardless.
type Handler func(ev *Event)

// Client runs exchanges by executing the engine CLI in print mode and
// decoding its stream-json output.
type Client struct {
	command string
	log     *logging.Logger
}

// NewClient creates a Client for the given engine command.
// An empty command falls back to DefaultCommand.
func NewClient(command string, log *logging.Logger) *Client {
	if command == "" {
		command = DefaultCommand
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Client{command: command, log: log}
}

// buildArgs constructs the engine invocation for the given options.
// Kept separate from Query so command construction is testable without
// executing anything.
func buildArgs(opts Options) []string {
	args := []string{"-p", "--output-format", "stream-json", "--verbose"}

	if opts.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", opts.SystemPrompt)
	}
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}
	if opts.PermissionMode != "" {
		args = append(args, "--permission-mode", opts.PermissionMode)
	}
	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}
	if opts.ResumeToken != "" {
		args = append(args, "--resume", opts.ResumeToken)
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}

	return append(args, opts.Prompt)
}

// Query runs one exchange and blocks until the engine exits. Every decoded
// event is handed to onEvent (when non-nil) as it arrives; the terminal
// result and any issued resume token are folded into the returned Result.
//
// A stream that ends without a terminal event, a non-zero engine exit, or a
// result flagged as an error all surface as ErrEngineFailed.
func (c *Client) Query(ctx context.Context, opts Options, onEvent Handler) (*Result, error) {
	if opts.Prompt == "" {
		return nil, fmt.Errorf("prompt required")
	}

	cmd := exec.CommandContext(ctx, c.command, buildArgs(opts)...)
	if opts.WorkingDir != "" {
		cmd.Dir = opts.WorkingDir
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}

	result := &Result{}
	sawResult := false

	scanner := bufio.NewScanner(stdout)
	// Result events can carry large response payloads.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		ev, err := ParseEvent(line)
		if err != nil {
			c.log.Warn("skipping malformed engine event", "error", err.Error())
			continue
		}

		switch {
		case ev.IsInit():
			result.ResumeToken = ev.SessionID
		case ev.Type == TypeResult:
			sawResult = true
			result.Completed = true
			result.Turns = ev.NumTurns
			result.IsError = ev.IsError
			result.Text = ev.ResultText
			if ev.Usage != nil {
				result.Usage = *ev.Usage
			}
			if result.ResumeToken == "" {
				result.ResumeToken = ev.SessionID
			}
		}

		if onEvent != nil {
			onEvent(ev)
		}
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()

	if scanErr != nil {
		return result, fmt.Errorf("%w: reading engine output: %v", errors.ErrEngineFailed, scanErr)
	}
	if waitErr != nil {
		return result, engineFailure(waitErr, &stderr)
	}
	if !sawResult {
		return result, fmt.Errorf("%w: engine stream ended without a result", errors.ErrEngineFailed)
	}
	if result.IsError {
		return result, fmt.Errorf("%w: %s", errors.ErrEngineFailed, firstLine(result.Text))
	}

	return result, nil
}

func engineFailure(waitErr error, stderr *bytes.Buffer) error {
	if msg := firstLine(stderr.String()); msg != "" {
		return fmt.Errorf("%w: %s", errors.ErrEngineFailed, msg)
	}
	return fmt.Errorf("%w: %v", errors.ErrEngineFailed, waitErr)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
