package replay

import (
	"context"

	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/internal/calculator"
	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/standings"
	"github.com/rs/zerolog"
)

// Scorer computes league-period results, consulting the score cache first.
// A cache entry is only used when its fingerprint matches the snapshot, so a
// hit is indistinguishable from a recomputation. Cache failures are logged
// and scoring falls back to the calculator.
type Scorer struct {
	cache    cache.Scores
	readOnly bool
	fresh    bool
	logger   zerolog.Logger
}

// NewScorer creates a Scorer. scores may be nil.
func NewScorer(scores cache.Scores, logger zerolog.Logger) *Scorer {
	return &Scorer{cache: scores, logger: logger}
}

// ReadOnly returns a copy that never writes to the cache.
func (s *Scorer) ReadOnly() *Scorer {
	cpy := *s
	cpy.readOnly = true
	return &cpy
}

// Fresh returns a copy that never reads the cache. Results are still
// written unless the scorer is read-only.
func (s *Scorer) Fresh() *Scorer {
	cpy := *s
	cpy.fresh = true
	return &cpy
}

// Period scores every team for one period.
func (s *Scorer) Period(ctx context.Context, snap *league.Snapshot, period int) (calculator.PeriodResult, error) {
	if s.cache == nil {
		return calculator.LeaguePeriod(snap, period)
	}

	fp, err := calculator.Fingerprint(snap, period)
	if err != nil {
		return calculator.LeaguePeriod(snap, period)
	}

	if !s.fresh {
		scores, ok, err := s.cache.Get(ctx, snap.League.ID, period, fp)
		if err != nil {
			s.logger.Warn().Err(err).Str("league_id", snap.League.ID).Int("period", period).Msg("score cache read failed")
		}
		if ok {
			return fromCache(period, scores), nil
		}
	}

	res, err := calculator.LeaguePeriod(snap, period)
	if err != nil {
		return res, err
	}
	if !s.readOnly {
		if err := s.cache.Put(ctx, snap.League.ID, period, fp, res.Scores); err != nil {
			s.logger.Warn().Err(err).Str("league_id", snap.League.ID).Int("period", period).Msg("score cache write failed")
		}
	}
	return res, nil
}

// fromCache rebuilds the per-team errors from the violations stored on each
// score; lineup violations are the only team-level errors a scored team has.
func fromCache(period int, scores []league.PeriodScore) calculator.PeriodResult {
	res := calculator.PeriodResult{Period: period, Scores: scores}
	for _, s := range scores {
		if len(s.Violations) == 0 {
			continue
		}
		res.Errors = append(res.Errors, league.UnitError{
			TeamID: s.TeamID,
			Period: period,
			Err:    &league.ValidationError{TeamID: s.TeamID, Period: period, Violations: s.Violations},
		})
	}
	return res
}

// Fold builds the standings over periods 1..through from their results.
// results must hold at least through entries ordered by period.
func Fold(snap *league.Snapshot, results []calculator.PeriodResult, through int) ([]league.StandingsEntry, error) {
	history := make([]standings.Period, 0, through)
	for i := 0; i < through && i < len(results); i++ {
		res := results[i]
		history = append(history, standings.Period{
			Number:   res.Period,
			Matchups: snap.Schedule[res.Period],
			Totals:   res.Totals(),
		})
	}
	return standings.Compute(snap.League.ID, snap.TeamIDs(), history)
}
