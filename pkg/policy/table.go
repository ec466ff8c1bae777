package policy

import (
	"fmt"
	"slices"
	"time"
)

// TTLs used by the default rule set.
const (
	ShortTTL  = 5 * time.Minute
	MediumTTL = 30 * time.Minute
	LongTTL   = 1 * time.Hour
)

// Table is an immutable, ordered rule list. The first matching rule wins.
type Table struct {
	rules []Rule
}

// NewTable validates rules and returns a Table holding a private copy of them.
func NewTable(rules []Rule) (*Table, error) {
	copied := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		r.Paths = slices.Clone(r.Paths)
		if !r.Cacheable {
			r.TTL = 0
		}
		copied = append(copied, r)
	}
	return &Table{rules: copied}, nil
}

// MustNewTable is like NewTable but panics on invalid rules.
func MustNewTable(rules []Rule) *Table {
	t, err := NewTable(rules)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultTable returns the table built from DefaultRules.
func DefaultTable() *Table {
	return MustNewTable(DefaultRules())
}

// Classify returns the caching decision for a request path.
// Paths matching no rule are not cacheable.
func (t *Table) Classify(path string) Decision {
	for _, r := range t.rules {
		if r.matches(path) {
			return Decision{Cacheable: r.Cacheable, TTL: r.TTL, Rule: r.Name}
		}
	}
	return Decision{}
}

// Rules returns a copy of the table's rules in evaluation order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	for i, r := range t.rules {
		r.Paths = slices.Clone(r.Paths)
		out[i] = r
	}
	return out
}

// DefaultRules is the knowledge-graph API policy.
//
// Global, slow-changing, non-sensitive reads are cached. Generated answers,
// authentication, per-user search and bulk text always reach the origin; the
// explicit never-cache rule keeps that intent visible when rules are added
// above the default.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:      "health",
			Match:     MatchExact,
			Paths:     []string{"/health"},
			Cacheable: true,
			TTL:       ShortTTL,
		},
		{
			Name:      "stats",
			Match:     MatchExact,
			Paths:     []string{"/api/kg/stats"},
			Cacheable: true,
			TTL:       LongTTL,
		},
		{
			Name:      "bulk-listing",
			Match:     MatchExact,
			Paths:     []string{"/api/kg/nodes", "/api/kg/edges"},
			Cacheable: true,
			TTL:       LongTTL,
		},
		{
			Name:      "entity",
			Match:     MatchPrefix,
			Paths:     []string{"/api/kg/node/", "/api/kg/edge/"},
			Cacheable: true,
			TTL:       LongTTL,
		},
		{
			Name:      "analytics",
			Match:     MatchPrefix,
			Paths:     []string{"/api/kg/analytics/", "/api/kg/visualization/"},
			Cacheable: true,
			TTL:       MediumTTL,
		},
		{
			Name:  "never-cache",
			Match: MatchPrefix,
			Paths: []string{"/api/graphrag/", "/api/auth/", "/api/search/", "/api/kg/text/"},
		},
	}
}
