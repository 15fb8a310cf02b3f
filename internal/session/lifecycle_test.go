package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sagecli/sage/internal/errors"
)

// countingStore wraps a Store and counts Save calls, so tests can assert
// that ephemeral exchanges perform no persistence.
type countingStore struct {
	Store
	saves int
}

func (cs *countingStore) Save(ctx context.Context, rec *Record) error {
	cs.saves++
	return cs.Store.Save(ctx, rec)
}

func newTestManager(t *testing.T) (*Manager, *countingStore) {
	t.Helper()
	cs := &countingStore{Store: newTestStore(t)}
	return NewManager(cs, DefaultRates(), nil), cs
}

func TestManager_RecordOutcome(t *testing.T) {
	manager, cs := newTestManager(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rec := NewNamed("topic-a", base)
	if err := cs.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	cs.saves = 0

	later := base.Add(2 * time.Hour)
	manager.now = func() time.Time { return later }

	usage := Usage{InputTokens: 1000, OutputTokens: 500}
	if err := manager.RecordOutcome(ctx, rec, false, 2, usage, false); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}

	if rec.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", rec.MessageCount)
	}
	if rec.TotalTokens != 1500 {
		t.Errorf("TotalTokens = %d, want 1500", rec.TotalTokens)
	}
	// 1000 in at $3/M + 500 out at $15/M
	wantCost := 0.003 + 0.0075
	if rec.TotalCost < wantCost-1e-9 || rec.TotalCost > wantCost+1e-9 {
		t.Errorf("TotalCost = %f, want %f", rec.TotalCost, wantCost)
	}
	if !rec.LastUsed.Equal(later) {
		t.Errorf("LastUsed = %v, want %v", rec.LastUsed, later)
	}
	if cs.saves != 1 {
		t.Errorf("saves = %d, want 1", cs.saves)
	}

	// Counters only move forward across exchanges.
	evenLater := later.Add(time.Hour)
	manager.now = func() time.Time { return evenLater }
	if err := manager.RecordOutcome(ctx, rec, false, 1, Usage{InputTokens: 10, OutputTokens: 40}, true); err != nil {
		t.Fatalf("second RecordOutcome failed: %v", err)
	}
	if rec.MessageCount != 3 || rec.TotalTokens != 1550 {
		t.Errorf("counters = %d/%d, want 3/1550", rec.MessageCount, rec.TotalTokens)
	}
	if !rec.LastUsed.After(later) {
		t.Error("LastUsed must move forward")
	}
}

func TestManager_RecordOutcome_Ephemeral(t *testing.T) {
	manager, cs := newTestManager(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rec := NewNamed("topic-a", base)
	if err := cs.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	cs.saves = 0

	usage := Usage{InputTokens: 1000, OutputTokens: 500}
	if err := manager.RecordOutcome(ctx, rec, true, 2, usage, false); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}

	if rec.MessageCount != 0 || rec.TotalTokens != 0 || rec.TotalCost != 0 {
		t.Error("ephemeral exchange must not touch counters")
	}
	if !rec.LastUsed.Equal(base) {
		t.Error("ephemeral exchange must not touch LastUsed")
	}
	if cs.saves != 0 {
		t.Errorf("ephemeral exchange performed %d saves, want 0", cs.saves)
	}
}

func TestManager_SweepExpired(t *testing.T) {
	manager, cs := newTestManager(t)
	ctx := context.Background()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return now }

	// Global is ancient but immune.
	global := NewGlobal(now.Add(-400 * 24 * time.Hour))
	// Shell record 10 days idle, threshold 7: expires.
	staleShell := NewShellScoped(101, now.Add(-10*24*time.Hour))
	// Shell record 3 days idle: survives.
	freshShell := NewShellScoped(202, now.Add(-3*24*time.Hour))
	// Named record 45 days idle, threshold 30: expires.
	staleNamed := NewNamed("old-topic", now.Add(-45*24*time.Hour))
	// Named record exactly at the threshold: survives (must exceed).
	edgeNamed := NewNamed("edge-topic", now.Add(-30*24*time.Hour))

	for _, rec := range []*Record{global, staleShell, freshShell, staleNamed, edgeNamed} {
		if err := cs.Save(ctx, rec); err != nil {
			t.Fatalf("Save(%s) failed: %v", rec.Name, err)
		}
	}

	deleted, err := manager.SweepExpired(ctx, Policy{ShellExpiryDays: 7, NamedExpiryDays: 30})
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	for _, name := range []string{GlobalName, freshShell.Name, "edge-topic"} {
		if _, err := cs.Load(ctx, name); err != nil {
			t.Errorf("record %q should have survived the sweep: %v", name, err)
		}
	}
	for _, name := range []string{staleShell.Name, "old-topic"} {
		if _, err := cs.Load(ctx, name); !errors.Is(err, errors.ErrSessionNotFound) {
			t.Errorf("record %q should have been swept", name)
		}
	}
}

func TestManager_ClearAll(t *testing.T) {
	manager, cs := newTestManager(t)
	ctx := context.Background()

	now := time.Now()
	for _, rec := range []*Record{NewGlobal(now), NewNamed("a", now), NewShellScoped(1, now)} {
		if err := cs.Save(ctx, rec); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	deleted, err := manager.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	records, err := cs.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("%d records remain after ClearAll", len(records))
	}
}

func TestManager_Export(t *testing.T) {
	manager, cs := newTestManager(t)
	ctx := context.Background()

	rec := NewNamed("topic-a", time.Now())
	rec.ResumeToken = "tok-9"
	rec.MessageCount = 3
	rec.TotalTokens = 900
	if err := cs.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var b strings.Builder
	if err := manager.Export(ctx, "topic-a", &b); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	out := b.String()
	for _, want := range []string{"topic-a", rec.ID, "Messages: 3", "Tokens: 900", "tok-9"} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q in:\n%s", want, out)
		}
	}
}

func TestManager_Export_NotFound(t *testing.T) {
	manager, _ := newTestManager(t)

	var b strings.Builder
	err := manager.Export(context.Background(), "ghost", &b)
	if !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("Export of missing session = %v, want ErrSessionNotFound", err)
	}
	if b.Len() != 0 {
		t.Error("failed export must produce no partial output")
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"just now", now.Add(-30 * time.Second), "just now"},
		{"one minute", now.Add(-90 * time.Second), "1 minute ago"},
		{"minutes", now.Add(-45 * time.Minute), "45 minutes ago"},
		{"one hour", now.Add(-1 * time.Hour), "1 hour ago"},
		{"hours", now.Add(-13 * time.Hour), "13 hours ago"},
		{"one day", now.Add(-25 * time.Hour), "1 day ago"},
		{"days", now.Add(-12 * 24 * time.Hour), "12 days ago"},
		{"absolute", now.Add(-60 * 24 * time.Hour), "May 2, 2026"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RelativeTime(tt.t, now); got != tt.want {
				t.Errorf("RelativeTime = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRates_Cost(t *testing.T) {
	rates := DefaultRates()

	got := rates.Cost(1_000_000, 1_000_000)
	if got != 18.00 {
		t.Errorf("Cost(1M, 1M) = %f, want 18.00", got)
	}
	if rates.Cost(0, 0) != 0 {
		t.Error("Cost(0, 0) should be 0")
	}
}
