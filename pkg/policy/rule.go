// Package policy classifies request paths into edge caching decisions.
//
// A Table is an ordered list of rules built once at start-up. The first rule
// whose path matches wins; paths that match no rule are never cached.
package policy

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRule indicates a rule that cannot be placed in a Table.
var ErrInvalidRule = errors.New("invalid policy rule")

// MatchKind selects how a rule compares its paths against a request path.
type MatchKind string

const (
	// MatchExact requires the request path to equal one of the rule paths.
	MatchExact MatchKind = "exact"

	// MatchPrefix requires the request path to start with one of the rule paths.
	MatchPrefix MatchKind = "prefix"
)

// Rule maps a set of paths to a caching decision.
type Rule struct {
	// Name identifies the rule in logs and metrics labels.
	Name string

	// Match is how Paths are compared to the request path.
	Match MatchKind

	// Paths are the literal paths or prefixes this rule covers.
	Paths []string

	// Cacheable marks responses for paths under this rule as edge-cacheable.
	Cacheable bool

	// TTL is how long a cached response stays fresh. Ignored when not cacheable.
	TTL time.Duration
}

// Decision is the outcome of classifying a path.
type Decision struct {
	Cacheable bool
	TTL       time.Duration

	// Rule is the name of the matching rule, empty for the default.
	Rule string
}

// MaxAge returns the TTL in whole seconds, as advertised in Cache-Control.
func (d Decision) MaxAge() int {
	return int(d.TTL / time.Second)
}

// matches reports whether path is covered by the rule.
func (r Rule) matches(path string) bool {
	for _, p := range r.Paths {
		switch r.Match {
		case MatchExact:
			if path == p {
				return true
			}
		case MatchPrefix:
			if strings.HasPrefix(path, p) {
				return true
			}
		}
	}
	return false
}

// Validate checks the rule can be used in a Table.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRule)
	}
	if r.Match != MatchExact && r.Match != MatchPrefix {
		return fmt.Errorf("%w: rule %q has unknown match kind %q", ErrInvalidRule, r.Name, r.Match)
	}
	if len(r.Paths) == 0 {
		return fmt.Errorf("%w: rule %q has no paths", ErrInvalidRule, r.Name)
	}
	for _, p := range r.Paths {
		if p == "" || !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: rule %q has path %q, must start with /", ErrInvalidRule, r.Name, p)
		}
	}
	if r.Cacheable && r.TTL < time.Second {
		return fmt.Errorf("%w: cacheable rule %q needs a TTL of at least 1s (got %v)", ErrInvalidRule, r.Name, r.TTL)
	}
	return nil
}
