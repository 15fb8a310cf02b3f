package retry

import "testing"

func TestCache_Empty(t *testing.T) {
	cache := NewCache()

	if text, ok := cache.LastFailure(); ok || text != "" {
		t.Errorf("LastFailure on empty cache = (%q, %v), want (\"\", false)", text, ok)
	}
}

func TestCache_RecordAndRead(t *testing.T) {
	cache := NewCache()
	cache.RecordFailure("X")

	text, ok := cache.LastFailure()
	if !ok || text != "X" {
		t.Errorf("LastFailure = (%q, %v), want (\"X\", true)", text, ok)
	}

	// Reading does not clear: repeated retries re-send the same text.
	text, ok = cache.LastFailure()
	if !ok || text != "X" {
		t.Errorf("second LastFailure = (%q, %v), want (\"X\", true)", text, ok)
	}
}

func TestCache_Overwrites(t *testing.T) {
	cache := NewCache()
	cache.RecordFailure("first")
	cache.RecordFailure("second")

	if text, _ := cache.LastFailure(); text != "second" {
		t.Errorf("LastFailure = %q, want %q", text, "second")
	}
}
