// Package calculator applies a rule set to lineups and scoring events.
//
// Everything here is a pure function of a league.Snapshot: the same snapshot
// always yields the same scores, so periods can be computed in parallel.
package calculator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/lineup"
	"github.com/fortuna/gridiron/internal/rules"
	"github.com/shopspring/decimal"
)

// PeriodResult holds every team's score for one period plus the per-team
// problems found while scoring.
type PeriodResult struct {
	Period int                  `json:"period"`
	Scores []league.PeriodScore `json:"scores"`
	Errors []league.UnitError   `json:"errors,omitempty"`
}

// ScoreFor returns the score of one team.
func (r PeriodResult) ScoreFor(teamID string) (league.PeriodScore, bool) {
	for _, s := range r.Scores {
		if s.TeamID == teamID {
			return s, true
		}
	}
	return league.PeriodScore{}, false
}

// Totals maps team id to total points.
func (r PeriodResult) Totals() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(r.Scores))
	for _, s := range r.Scores {
		out[s.TeamID] = s.Total
	}
	return out
}

// ScorePlayers sums count × value for each scoring assignment. Players
// without events score zero; events for unpriced stats are ignored. Each
// player's contribution is rounded on its own, so the team total does not
// depend on summation order.
func ScorePlayers(rs league.RuleSet, rounding league.RoundingPolicy, scoring []league.Assignment, events []league.ScoringEvent) (decimal.Decimal, []league.PlayerScore) {
	byPlayer := make(map[string]map[league.StatType]int64)
	for _, ev := range events {
		counts, ok := byPlayer[ev.PlayerID]
		if !ok {
			counts = make(map[league.StatType]int64)
			byPlayer[ev.PlayerID] = counts
		}
		counts[ev.StatType] += ev.Count
	}

	total := decimal.Zero
	players := make([]league.PlayerScore, 0, len(scoring))
	for _, a := range scoring {
		ps := league.PlayerScore{PlayerID: a.PlayerID, Slot: a.Slot, Points: decimal.Zero}

		counts := byPlayer[a.PlayerID]
		stats := make([]league.StatType, 0, len(counts))
		for st := range counts {
			stats = append(stats, st)
		}
		sort.Slice(stats, func(i, j int) bool { return stats[i] < stats[j] })

		raw := decimal.Zero
		for _, st := range stats {
			points, ok := rules.Price(rs, st, counts[st])
			if !ok {
				continue
			}
			value, _ := rs.Value(st)
			ps.Breakdown = append(ps.Breakdown, league.StatLine{
				StatType: st,
				Count:    counts[st],
				Value:    value,
				Points:   points,
			})
			raw = raw.Add(points)
		}

		ps.Points = rounding.Apply(raw)
		total = total.Add(ps.Points)
		players = append(players, ps)
	}
	return total, players
}

// TeamPeriod scores one team for one period. A lineup with violations still
// scores: the returned error is a *league.ValidationError and the score is
// valid. A *league.StaleRuleSetReference or ErrPeriodOutOfRange means no
// score could be produced.
func TeamPeriod(snap *league.Snapshot, teamID string, period int) (league.PeriodScore, error) {
	if err := snap.CheckPeriod(period); err != nil {
		return league.PeriodScore{}, err
	}
	rs, err := snap.RuleSetFor(period)
	if err != nil {
		return league.PeriodScore{}, err
	}
	return teamPeriod(snap, rs, teamID, period)
}

func teamPeriod(snap *league.Snapshot, rs league.RuleSet, teamID string, period int) (league.PeriodScore, error) {
	roster, _ := snap.RosterFor(teamID, period)
	submission, _ := snap.LineupFor(teamID, period)

	res := lineup.Validate(lineup.Input{
		League:   snap.League,
		Roster:   roster,
		Lineup:   submission.Assignments,
		Players:  snap.Players,
		Inactive: snap.Inactive[period],
	})

	total, players := ScorePlayers(rs, snap.League.Rounding, res.Scoring, snap.Events[period])

	score := league.PeriodScore{
		LeagueID:       snap.League.ID,
		TeamID:         teamID,
		Period:         period,
		RuleSetID:      rs.ID,
		RuleSetVersion: rs.Version,
		Total:          total,
		Players:        players,
		Violations:     res.Violations,
		Final:          snap.PeriodStatus(period) == league.PeriodFinal,
	}
	return score, res.Err(teamID, period)
}

// LeaguePeriod scores every team in the league for a period. Team-level
// problems are collected in PeriodResult.Errors and never stop the other
// teams. Only configuration errors are returned.
func LeaguePeriod(snap *league.Snapshot, period int) (PeriodResult, error) {
	if err := snap.CheckPeriod(period); err != nil {
		return PeriodResult{}, err
	}
	rs, err := snap.RuleSetFor(period)
	if err != nil {
		return PeriodResult{}, fmt.Errorf("scoring period %d: %w", period, err)
	}

	result := PeriodResult{Period: period}
	for _, teamID := range snap.TeamIDs() {
		score, err := teamPeriod(snap, rs, teamID, period)
		if err != nil {
			result.Errors = append(result.Errors, league.UnitError{TeamID: teamID, Period: period, Err: err})
			var verr *league.ValidationError
			if !errors.As(err, &verr) {
				continue
			}
		}
		result.Scores = append(result.Scores, score)
	}
	return result, nil
}

// Season scores periods 1..through. A configuration error in one period is
// recorded against every team for that period and the remaining periods are
// still scored.
func Season(snap *league.Snapshot, through int) []PeriodResult {
	out := make([]PeriodResult, 0, through)
	for p := 1; p <= through; p++ {
		res, err := LeaguePeriod(snap, p)
		if err != nil {
			res = PeriodResult{Period: p}
			for _, teamID := range snap.TeamIDs() {
				res.Errors = append(res.Errors, league.UnitError{TeamID: teamID, Period: p, Err: err})
			}
		}
		out = append(out, res)
	}
	return out
}
