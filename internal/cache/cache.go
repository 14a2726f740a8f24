// Package cache stores derived period scores keyed by an input fingerprint.
// A cached entry is only a shortcut: it is used when its fingerprint matches
// the current inputs and is otherwise ignored.
package cache

import (
	"context"

	"github.com/fortuna/gridiron/internal/league"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Scores caches the team scores of a league-period.
type Scores interface {
	// Get returns the cached scores when the stored fingerprint matches.
	Get(ctx context.Context, leagueID string, period int, fingerprint string) ([]league.PeriodScore, bool, error)
	Put(ctx context.Context, leagueID string, period int, fingerprint string, scores []league.PeriodScore) error
	// Invalidate drops the entries for the given periods.
	Invalidate(ctx context.Context, leagueID string, periods ...int) error
}

type entry struct {
	Fingerprint string               `json:"fingerprint"`
	Scores      []league.PeriodScore `json:"scores"`
}
