package session

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sagecli/sage/internal/errors"
	"github.com/sagecli/sage/internal/logging"
)

// Rates holds the per-token pricing used to estimate exchange cost.
// Estimates are frozen into records at recording time; rate changes never
// rewrite history.
type Rates struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultRates mirrors the public Claude API pricing approximation:
// $3.00 per 1M input tokens, $15.00 per 1M output tokens.
func DefaultRates() Rates {
	return Rates{InputPerMillion: 3.00, OutputPerMillion: 15.00}
}

// Cost estimates the USD cost of an exchange.
func (r Rates) Cost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/1e6*r.InputPerMillion +
		float64(outputTokens)/1e6*r.OutputPerMillion
}

// Usage reports the token consumption of one exchange.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Total returns the combined token count.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// Policy holds the kind-specific expiry thresholds for the sweep.
type Policy struct {
	ShellExpiryDays int
	NamedExpiryDays int
}

// Manager applies lifecycle rules to session records: update-on-use
// accounting, the expiry sweep, bulk deletion, and export.
type Manager struct {
	store Store
	rates Rates
	now   func() time.Time
	log   *logging.Logger
}

// NewManager creates a Manager over the given store.
func NewManager(store Store, rates Rates, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{store: store, rates: rates, now: time.Now, log: log}
}

// RecordOutcome applies a completed exchange to the record and persists it.
// Ephemeral exchanges leave the record untouched and perform no persistence.
// Counters only move forward; an errored exchange still counts its usage,
// since the engine consumed those tokens.
func (m *Manager) RecordOutcome(ctx context.Context, rec *Record, ephemeral bool, turns int, usage Usage, errored bool) error {
	if ephemeral {
		return nil
	}

	rec.LastUsed = m.now()
	rec.MessageCount += turns
	rec.TotalTokens += usage.Total()
	rec.TotalCost += m.rates.Cost(usage.InputTokens, usage.OutputTokens)

	if err := m.store.Save(ctx, rec); err != nil {
		return err
	}
	m.log.Debug("recorded exchange",
		"session", rec.Name,
		"turns", turns,
		"tokens", usage.Total(),
		"errored", errored,
	)
	return nil
}

// SweepExpired deletes every non-global record whose last use is more than
// the kind-specific threshold days in the past. Returns the count deleted.
func (m *Manager) SweepExpired(ctx context.Context, policy Policy) (int, error) {
	records, err := m.store.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	now := m.now()
	deleted := 0
	for _, rec := range records {
		var threshold int
		switch rec.Kind {
		case KindShell:
			threshold = policy.ShellExpiryDays
		case KindNamed:
			threshold = policy.NamedExpiryDays
		default:
			// The global record never expires.
			continue
		}

		elapsedDays := int(now.Sub(rec.LastUsed).Hours() / 24)
		if elapsedDays <= threshold {
			continue
		}

		removed, err := m.store.Delete(ctx, rec.Name)
		if err != nil {
			return deleted, err
		}
		if removed {
			deleted++
			m.log.Info("expired session", "name", rec.Name, "kind", rec.Kind, "idle_days", elapsedDays)
		}
	}
	return deleted, nil
}

// ClearAll deletes every record regardless of kind or recency.
// Returns the count deleted.
func (m *Manager) ClearAll(ctx context.Context) (int, error) {
	records, err := m.store.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, rec := range records {
		removed, err := m.store.Delete(ctx, rec.Name)
		if err != nil {
			return deleted, err
		}
		if removed {
			deleted++
		}
	}
	return deleted, nil
}

// Export writes a human-readable metadata report for the named record.
// Transcript content is owned by the engine's own storage and is not
// included. Returns a not-found error if the record does not exist.
func (m *Manager) Export(ctx context.Context, name string, w io.Writer) error {
	rec, err := m.store.Load(ctx, name)
	if err != nil {
		return err
	}

	now := m.now()
	_, err = fmt.Fprintf(w,
		"Session: %s\nID: %s\nKind: %s\nCreated: %s\nLast used: %s (%s)\nMessages: %d\nTokens: %d\nEstimated cost: $%.4f\n",
		rec.Name,
		rec.ID,
		rec.Kind,
		rec.Created.Format(time.RFC1123),
		rec.LastUsed.Format(time.RFC1123),
		RelativeTime(rec.LastUsed, now),
		rec.MessageCount,
		rec.TotalTokens,
		rec.TotalCost,
	)
	if err != nil {
		return err
	}
	if rec.ResumeToken != "" {
		if _, err := fmt.Fprintf(w, "Resume token: %s\n", rec.ResumeToken); err != nil {
			return err
		}
	}
	if rec.OverridePrompt != "" {
		if _, err := fmt.Fprintf(w, "Prompt override: %s\n", rec.OverridePrompt); err != nil {
			return err
		}
	}
	if len(rec.OverrideTools) > 0 {
		if _, err := fmt.Fprintf(w, "Tool overrides: %v\n", rec.OverrideTools); err != nil {
			return err
		}
	}
	return nil
}

// Info loads the named record, mapping absence to a user-facing not-found
// error for display commands.
func (m *Manager) Info(ctx context.Context, name string) (*Record, error) {
	rec, err := m.store.Load(ctx, name)
	if err != nil {
		if errors.Is(err, errors.ErrSessionNotFound) {
			return nil, errors.NewNotFoundError("session", name)
		}
		return nil, err
	}
	return rec, nil
}

// RelativeTime renders how long ago t was, relative to now:
// under a minute "just now", then minutes, hours, days, and an absolute
// date once the gap reaches 30 days.
func RelativeTime(t, now time.Time) string {
	elapsed := now.Sub(t)

	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return plural(int(elapsed.Minutes()), "minute") + " ago"
	case elapsed < 24*time.Hour:
		return plural(int(elapsed.Hours()), "hour") + " ago"
	case elapsed < 30*24*time.Hour:
		return plural(int(elapsed.Hours()/24), "day") + " ago"
	default:
		return t.Format("Jan 2, 2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
