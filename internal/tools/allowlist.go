// Package tools validates which engine tools an exchange may use.
// Allowed-tool entries are glob patterns matched against tool invocation
// names, e.g. "Read", "Bash(git *)", or "mcp__*".
package tools

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/sagecli/sage/internal/errors"
)

// Allowlist is a compiled set of tool patterns.
type Allowlist struct {
	patterns []string
	globs    []glob.Glob
}

// Compile builds an Allowlist from the given patterns. Every pattern is
// compiled up front so a bad config entry surfaces before any exchange.
func Compile(patterns []string) (*Allowlist, error) {
	al := &Allowlist{
		patterns: patterns,
		globs:    make([]glob.Glob, 0, len(patterns)),
	}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", errors.ErrInvalidToolPattern, pattern, err)
		}
		al.globs = append(al.globs, g)
	}
	return al, nil
}

// Allows reports whether the given tool invocation matches any pattern.
// An empty allowlist allows nothing.
func (al *Allowlist) Allows(tool string) bool {
	for _, g := range al.globs {
		if g.Match(tool) {
			return true
		}
	}
	return false
}

// Patterns returns the raw patterns this allowlist was compiled from,
// in their original order. These are handed to the engine verbatim.
func (al *Allowlist) Patterns() []string {
	return al.patterns
}
