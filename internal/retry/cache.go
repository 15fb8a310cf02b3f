// Package retry remembers the most recent failed question for the lifetime
// of one process, so an explicit retry command can resubmit identical text.
// Nothing here is persisted across runs.
package retry

import "sync"

// Cache is a single-slot remembrance of the last failed question.
// Safe for concurrent use.
type Cache struct {
	mu   sync.Mutex
	text string
	set  bool
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{}
}

// RecordFailure overwrites any previously remembered failure.
func (c *Cache) RecordFailure(question string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = question
	c.set = true
}

// LastFailure returns the remembered question, if any. The slot is not
// cleared: repeated retries without an intervening new question re-send
// the same text.
func (c *Cache) LastFailure() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.set
}
