// Package session implements sage's session subsystem: the persisted record
// model, the file-backed store, the resolver that maps an invocation to
// exactly one record, and the lifecycle manager that applies usage
// accounting and expiry policy.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes how a session was created and which lifecycle rules
// apply to it.
type Kind string

const (
	// KindGlobal is the single fallback session named "global". It is never
	// deleted by the expiry sweep.
	KindGlobal Kind = "global"
	// KindShell is a session scoped to one shell process, keyed by the
	// owning process id. Eligible for expiry.
	KindShell Kind = "shell"
	// KindNamed is a user-named session. Eligible for expiry.
	KindNamed Kind = "named"
)

// GlobalName is the reserved name of the single global session.
const GlobalName = "global"

// Record is the unit of persisted conversational state. One record exists
// per distinct name; the name is the storage key.
type Record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// ResumeToken is issued by the engine after the first successful
	// exchange. Once set it is never cleared except by deleting the record.
	ResumeToken string `json:"resume_token,omitempty"`

	Created  time.Time `json:"created"`
	LastUsed time.Time `json:"last_used"`

	MessageCount int     `json:"message_count"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`

	// OwnerPID identifies the originating shell process. Set only for
	// KindShell records; Validate rejects it elsewhere.
	OwnerPID int `json:"owner_pid,omitempty"`

	// Per-session overrides; empty means fall back to global configuration.
	OverridePrompt string   `json:"override_prompt,omitempty"`
	OverrideTools  []string `json:"override_tools,omitempty"`
}

// NewGlobal constructs the global fallback record.
func NewGlobal(now time.Time) *Record {
	return &Record{
		ID:       uuid.NewString(),
		Name:     GlobalName,
		Kind:     KindGlobal,
		Created:  now,
		LastUsed: now,
	}
}

// NewShellScoped constructs a record owned by the given shell process.
func NewShellScoped(pid int, now time.Time) *Record {
	return &Record{
		ID:       uuid.NewString(),
		Name:     ShellSessionName(pid),
		Kind:     KindShell,
		Created:  now,
		LastUsed: now,
		OwnerPID: pid,
	}
}

// NewNamed constructs a user-named record.
func NewNamed(name string, now time.Time) *Record {
	return &Record{
		ID:       uuid.NewString(),
		Name:     name,
		Kind:     KindNamed,
		Created:  now,
		LastUsed: now,
	}
}

// ShellSessionName derives the store key for a shell-scoped session.
// Records are never shared across different process ids.
func ShellSessionName(pid int) string {
	return fmt.Sprintf("shell-%d", pid)
}

// Validate checks the structural invariants of a record. It is applied to
// every record loaded from disk so a hand-edited file cannot smuggle in an
// illegal state such as a global record carrying an owner pid.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record %q has no id", r.Name)
	}
	if r.Name == "" {
		return fmt.Errorf("record has no name")
	}

	switch r.Kind {
	case KindGlobal:
		if r.Name != GlobalName {
			return fmt.Errorf("global record must be named %q, got %q", GlobalName, r.Name)
		}
		if r.OwnerPID != 0 {
			return fmt.Errorf("global record %q must not carry an owner pid", r.Name)
		}
	case KindShell:
		if r.OwnerPID == 0 {
			return fmt.Errorf("shell record %q missing owner pid", r.Name)
		}
	case KindNamed:
		if r.OwnerPID != 0 {
			return fmt.Errorf("named record %q must not carry an owner pid", r.Name)
		}
	default:
		return fmt.Errorf("record %q has unknown kind %q", r.Name, r.Kind)
	}

	return nil
}
