package session

import (
	"context"
	"testing"
	"time"
)

func newTestResolver(t *testing.T) (*Resolver, *FileStore) {
	t.Helper()
	store := newTestStore(t)
	return NewResolver(store, nil), store
}

func TestResolver_NoHintsYieldsGlobal(t *testing.T) {
	resolver, _ := newTestResolver(t)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, Request{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if first.Name != GlobalName || first.Kind != KindGlobal {
		t.Errorf("resolved %q/%q, want %q/%q", first.Name, first.Kind, GlobalName, KindGlobal)
	}

	second, err := resolver.Resolve(ctx, Request{})
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second resolution ID = %q, want %q (same record)", second.ID, first.ID)
	}
}

func TestResolver_NamedCreation(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()

	rec, err := resolver.Resolve(ctx, Request{Name: "topic-a"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rec.Kind != KindNamed {
		t.Errorf("Kind = %q, want %q", rec.Kind, KindNamed)
	}
	if rec.MessageCount != 0 || rec.TotalTokens != 0 || rec.TotalCost != 0 {
		t.Error("new record must have zeroed counters")
	}
	if rec.ResumeToken != "" {
		t.Error("new record must have no resume token")
	}

	// Creation persists before returning.
	if _, err := store.Load(ctx, "topic-a"); err != nil {
		t.Errorf("new record was not persisted: %v", err)
	}

	again, err := resolver.Resolve(ctx, Request{Name: "topic-a"})
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if again.ID != rec.ID {
		t.Errorf("re-resolution ID = %q, want %q", again.ID, rec.ID)
	}
}

func TestResolver_ForceNewReplacesRecord(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()

	orig, err := resolver.Resolve(ctx, Request{Name: "topic-a"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	orig.ResumeToken = "tok"
	orig.MessageCount = 9
	if err := store.Save(ctx, orig); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	fresh, err := resolver.Resolve(ctx, Request{Name: "topic-a", ForceNew: true})
	if err != nil {
		t.Fatalf("ForceNew Resolve failed: %v", err)
	}
	if fresh.ID == orig.ID {
		t.Error("ForceNew must assign a new id")
	}
	if fresh.MessageCount != 0 || fresh.ResumeToken != "" {
		t.Error("ForceNew must zero counters and drop the resume token")
	}

	// The prior record is gone: exactly one record per name.
	onDisk, err := store.Load(ctx, "topic-a")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if onDisk.ID != fresh.ID {
		t.Errorf("persisted ID = %q, want %q", onDisk.ID, fresh.ID)
	}
}

func TestResolver_ShellScopedByPID(t *testing.T) {
	resolver, _ := newTestResolver(t)
	ctx := context.Background()

	a, err := resolver.Resolve(ctx, Request{ShellScoped: true, PID: 101})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	b, err := resolver.Resolve(ctx, Request{ShellScoped: true, PID: 202})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if a.Kind != KindShell || b.Kind != KindShell {
		t.Errorf("kinds = %q/%q, want shell/shell", a.Kind, b.Kind)
	}
	if a.Name == b.Name {
		t.Errorf("distinct pids resolved to the same record %q", a.Name)
	}
	if a.OwnerPID != 101 || b.OwnerPID != 202 {
		t.Errorf("owner pids = %d/%d, want 101/202", a.OwnerPID, b.OwnerPID)
	}

	same, err := resolver.Resolve(ctx, Request{ShellScoped: true, PID: 101})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if same.ID != a.ID {
		t.Errorf("same pid resolved to a different record")
	}
}

func TestResolver_ShellScopedWithoutPIDFallsBackToGlobal(t *testing.T) {
	resolver, _ := newTestResolver(t)

	rec, err := resolver.Resolve(context.Background(), Request{ShellScoped: true})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rec.Kind != KindGlobal {
		t.Errorf("Kind = %q, want %q", rec.Kind, KindGlobal)
	}
}

func TestResolver_ExplicitNameWinsOverShellScope(t *testing.T) {
	resolver, _ := newTestResolver(t)

	rec, err := resolver.Resolve(context.Background(), Request{
		Name:        "topic-a",
		ShellScoped: true,
		PID:         101,
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rec.Kind != KindNamed || rec.Name != "topic-a" {
		t.Errorf("resolved %q/%q, want topic-a/named", rec.Name, rec.Kind)
	}
}

func TestResolver_CreationTimestamps(t *testing.T) {
	resolver, _ := newTestResolver(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	resolver.now = func() time.Time { return now }

	rec, err := resolver.Resolve(context.Background(), Request{Name: "stamped"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !rec.Created.Equal(now) || !rec.LastUsed.Equal(now) {
		t.Errorf("Created/LastUsed = %v/%v, want both %v", rec.Created, rec.LastUsed, now)
	}
}
