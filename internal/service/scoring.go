package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortuna/gridiron/internal/calculator"
	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/lineup"
	"github.com/fortuna/gridiron/internal/replay"
)

// StandingsReport is the standings table over the finalized prefix.
type StandingsReport struct {
	LeagueID string                  `json:"league_id"`
	Through  int                     `json:"through"`
	Entries  []league.StandingsEntry `json:"entries"`
}

// PeriodScore returns a team's score for a period. When the lineup has
// violations the score is still returned, together with a
// *league.ValidationError describing them.
func (s *LeagueService) PeriodScore(ctx context.Context, leagueID, teamID string, period int) (league.PeriodScore, error) {
	snap, err := s.store.Snapshot(ctx, leagueID)
	if err != nil {
		return league.PeriodScore{}, err
	}
	if !hasTeam(snap, teamID) {
		return league.PeriodScore{}, fmt.Errorf("team %s in league %s: %w", teamID, leagueID, league.ErrNotFound)
	}

	res, err := s.scorer.Period(ctx, snap, period)
	if err != nil {
		return league.PeriodScore{}, err
	}
	score, _ := res.ScoreFor(teamID)
	for _, ue := range res.Errors {
		if ue.TeamID == teamID {
			return score, ue.Err
		}
	}
	return score, nil
}

// LeaguePeriod returns every team's score for a period.
func (s *LeagueService) LeaguePeriod(ctx context.Context, leagueID string, period int) (calculator.PeriodResult, error) {
	snap, err := s.store.Snapshot(ctx, leagueID)
	if err != nil {
		return calculator.PeriodResult{}, err
	}
	return s.scorer.Period(ctx, snap, period)
}

// Standings folds the contiguous finalized prefix of periods into a table.
// Open periods never contribute, so the table only changes on finalization
// or reopening.
func (s *LeagueService) Standings(ctx context.Context, leagueID string) (StandingsReport, error) {
	snap, err := s.store.Snapshot(ctx, leagueID)
	if err != nil {
		return StandingsReport{}, err
	}
	return s.standings(ctx, snap)
}

func (s *LeagueService) standings(ctx context.Context, snap *league.Snapshot) (StandingsReport, error) {
	through := snap.FinalizedPrefix()
	results := make([]calculator.PeriodResult, 0, through)
	for p := 1; p <= through; p++ {
		res, err := s.scorer.Period(ctx, snap, p)
		if err != nil {
			return StandingsReport{}, err
		}
		results = append(results, res)
	}

	entries, err := replay.Fold(snap, results, through)
	if err != nil {
		return StandingsReport{}, err
	}
	return StandingsReport{LeagueID: snap.League.ID, Through: through, Entries: entries}, nil
}

// ValidateLineup checks a proposed lineup without storing it.
func (s *LeagueService) ValidateLineup(ctx context.Context, leagueID, teamID string, period int, assignments []league.Assignment) (lineup.Result, error) {
	snap, err := s.store.Snapshot(ctx, leagueID)
	if err != nil {
		return lineup.Result{}, err
	}
	if err := snap.CheckPeriod(period); err != nil {
		return lineup.Result{}, err
	}
	if !hasTeam(snap, teamID) {
		return lineup.Result{}, fmt.Errorf("team %s in league %s: %w", teamID, leagueID, league.ErrNotFound)
	}

	roster, _ := snap.RosterFor(teamID, period)
	return lineup.Validate(lineup.Input{
		League:   snap.League,
		Roster:   roster,
		Lineup:   assignments,
		Players:  snap.Players,
		Inactive: snap.Inactive[period],
	}), nil
}

// SubmitLineup stores an owner's lineup stamped with the current time. It
// is rejected once the period is locked or final. The lineup is stored even
// when it has violations; they are returned alongside as a
// *league.ValidationError so the owner can fix them before the lock.
func (s *LeagueService) SubmitLineup(ctx context.Context, sub league.LineupSubmission) (lineup.Result, error) {
	l, err := s.store.GetLeague(ctx, sub.LeagueID)
	if err != nil {
		return lineup.Result{}, err
	}
	if err := l.CheckPeriod(sub.Period); err != nil {
		return lineup.Result{}, err
	}

	state, err := s.store.GetPeriod(ctx, sub.LeagueID, sub.Period)
	if err != nil {
		return lineup.Result{}, err
	}
	sub.SubmittedAt = s.now()
	if err := lineup.CheckLock(state, sub.SubmittedAt); err != nil {
		return lineup.Result{}, err
	}

	res, err := s.ValidateLineup(ctx, sub.LeagueID, sub.TeamID, sub.Period, sub.Assignments)
	if err != nil {
		return lineup.Result{}, err
	}
	if err := s.store.SaveLineup(ctx, sub); err != nil {
		return lineup.Result{}, err
	}

	s.logger.Info().
		Str("league_id", sub.LeagueID).
		Str("team_id", sub.TeamID).
		Int("period", sub.Period).
		Int("violations", len(res.Violations)).
		Msg("lineup submitted")
	return res, res.Err(sub.TeamID, sub.Period)
}

func hasTeam(snap *league.Snapshot, teamID string) bool {
	for _, t := range snap.Teams {
		if t.ID == teamID {
			return true
		}
	}
	return false
}

// IsValidation reports whether err only carries lineup violations.
func IsValidation(err error) bool {
	var verr *league.ValidationError
	return errors.As(err, &verr)
}
