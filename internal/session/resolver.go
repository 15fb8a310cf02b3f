package session

import (
	"context"
	"time"

	"github.com/sagecli/sage/internal/errors"
	"github.com/sagecli/sage/internal/logging"
)

// Request carries the selection hints for one invocation.
type Request struct {
	// Name selects a named session when non-empty.
	Name string
	// PID is the calling shell's process id, used only when ShellScoped.
	PID int
	// ShellScoped requests a session tied to the calling shell process.
	ShellScoped bool
	// ForceNew discards any existing record under Name and creates a fresh
	// one: new id, zeroed counters, no resume token. Only meaningful
	// together with Name.
	ForceNew bool
}

// Resolver maps a Request to exactly one Record, creating and persisting it
// if absent. The resolved record is returned to the caller and threaded
// through subsequent calls; there is no hidden current-session state.
type Resolver struct {
	store Store
	now   func() time.Time
	log   *logging.Logger
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store Store, log *logging.Logger) *Resolver {
	if log == nil {
		log = logging.Nop()
	}
	return &Resolver{store: store, now: time.Now, log: log}
}

// Resolve picks or creates the record matching the request.
//
// Decision order, first match wins:
//  1. Name set: resolve or create a named record; ForceNew replaces any
//     existing record outright.
//  2. ShellScoped with a PID: resolve or create a record keyed by the
//     process id.
//  3. Otherwise the single global record.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Record, error) {
	switch {
	case req.Name != "":
		if req.ForceNew {
			// Explicit reset: do not merge with existing state.
			rec := NewNamed(req.Name, r.now())
			if err := r.store.Save(ctx, rec); err != nil {
				return nil, err
			}
			r.log.Info("created session", "name", rec.Name, "kind", rec.Kind, "reset", true)
			return rec, nil
		}
		return r.loadOrCreate(ctx, req.Name, func(now time.Time) *Record {
			return NewNamed(req.Name, now)
		})

	case req.ShellScoped && req.PID > 0:
		name := ShellSessionName(req.PID)
		return r.loadOrCreate(ctx, name, func(now time.Time) *Record {
			return NewShellScoped(req.PID, now)
		})

	default:
		return r.loadOrCreate(ctx, GlobalName, func(now time.Time) *Record {
			return NewGlobal(now)
		})
	}
}

// loadOrCreate loads the record by name, constructing and persisting a
// fresh one on not-found. Creation is not transactional across processes;
// concurrent first-use may create-then-overwrite, which is accepted because
// newly created records are identical in shape.
func (r *Resolver) loadOrCreate(ctx context.Context, name string, create func(time.Time) *Record) (*Record, error) {
	rec, err := r.store.Load(ctx, name)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, errors.ErrSessionNotFound) {
		return nil, err
	}

	rec = create(r.now())
	if err := r.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	r.log.Info("created session", "name", rec.Name, "kind", rec.Kind)
	return rec, nil
}
