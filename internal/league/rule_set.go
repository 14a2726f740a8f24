package league

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleSet maps stat types to point values. A published version is never
// mutated; changes are published as a new version.
type RuleSet struct {
	ID          string                       `json:"id"`
	Version     int                          `json:"version"`
	Points      map[StatType]decimal.Decimal `json:"points"`
	PublishedAt time.Time                    `json:"published_at"`
}

// Key returns the registry key for the rule set.
func (r RuleSet) Key() RuleSetKey {
	return RuleSetKey{ID: r.ID, Version: r.Version}
}

// Value returns the point value for a stat type.
func (r RuleSet) Value(st StatType) (decimal.Decimal, bool) {
	v, ok := r.Points[st]
	return v, ok
}

// Prices reports whether the rule set assigns a value to the stat type.
func (r RuleSet) Prices(st StatType) bool {
	_, ok := r.Points[st]
	return ok
}
