package service

import (
	"context"
	"fmt"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/publisher"
	"github.com/fortuna/gridiron/internal/replay"
	"github.com/fortuna/gridiron/internal/rules"
)

// PublishRuleSet publishes an immutable rule set version.
func (s *LeagueService) PublishRuleSet(ctx context.Context, rs league.RuleSet) (league.RuleSet, error) {
	if rs.PublishedAt.IsZero() {
		rs.PublishedAt = s.now()
	}
	if err := rules.Validate(rs); err != nil {
		return league.RuleSet{}, err
	}
	if err := s.store.PublishRuleSet(ctx, rs); err != nil {
		return league.RuleSet{}, err
	}
	s.logger.Info().Str("rule_set", rs.ID).Int("version", rs.Version).Str("fingerprint", rules.Fingerprint(rs)).Msg("rule set published")
	return rs, nil
}

// PublishRuleSetDocument builds a rule set from its declarative form and
// publishes it.
func (s *LeagueService) PublishRuleSetDocument(ctx context.Context, doc rules.Document) (league.RuleSet, error) {
	rs, err := rules.Build(doc, s.now())
	if err != nil {
		return league.RuleSet{}, err
	}
	return s.PublishRuleSet(ctx, rs)
}

// GetRuleSet returns a published rule set version.
func (s *LeagueService) GetRuleSet(ctx context.Context, id string, version int) (league.RuleSet, error) {
	return s.store.GetRuleSet(ctx, id, version)
}

// DiffRuleSets lists the stat values that change between two published
// versions of a rule set.
func (s *LeagueService) DiffRuleSets(ctx context.Context, id string, from, to int) ([]rules.Change, error) {
	a, err := s.store.GetRuleSet(ctx, id, from)
	if err != nil {
		return nil, err
	}
	b, err := s.store.GetRuleSet(ctx, id, to)
	if err != nil {
		return nil, err
	}
	return rules.Diff(a, b), nil
}

// ListRuleSets returns every published version.
func (s *LeagueService) ListRuleSets(ctx context.Context) ([]league.RuleSet, error) {
	return s.store.ListRuleSets(ctx)
}

// BindRuleSet points a league at a rule set version from fromPeriod on.
// fromPeriod 0 means the first period after the finalized prefix, so a
// change never rewrites history. Binding at an earlier period is only
// allowed once every affected period has been reopened.
func (s *LeagueService) BindRuleSet(ctx context.Context, leagueID, ruleSetID string, version, fromPeriod int) (league.RuleSetBinding, error) {
	snap, err := s.store.Snapshot(ctx, leagueID)
	if err != nil {
		return league.RuleSetBinding{}, err
	}
	if fromPeriod == 0 {
		fromPeriod = snap.FinalizedPrefix() + 1
	}
	if err := snap.CheckPeriod(fromPeriod); err != nil {
		return league.RuleSetBinding{}, err
	}

	binding := league.RuleSetBinding{RuleSetID: ruleSetID, Version: version, FromPeriod: fromPeriod}
	if err := s.store.BindRuleSet(ctx, leagueID, binding); err != nil {
		return league.RuleSetBinding{}, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, leagueID, periodRange(fromPeriod, snap.League.Periods)...); err != nil {
			s.logger.Warn().Err(err).Str("league_id", leagueID).Msg("cache invalidation failed")
		}
	}
	s.logger.Info().
		Str("league_id", leagueID).
		Str("rule_set", ruleSetID).
		Int("version", version).
		Int("from_period", fromPeriod).
		Msg("rule set bound")
	return binding, nil
}

// FinalizePeriod closes a period. Every earlier period must already be
// final and the period must resolve to a published rule set. On success
// the new standings are published.
func (s *LeagueService) FinalizePeriod(ctx context.Context, leagueID string, period int) (StandingsReport, error) {
	snap, err := s.store.Snapshot(ctx, leagueID)
	if err != nil {
		return StandingsReport{}, err
	}
	if err := snap.CheckPeriod(period); err != nil {
		return StandingsReport{}, err
	}
	if _, err := snap.RuleSetFor(period); err != nil {
		return StandingsReport{}, err
	}

	at := s.now()
	if err := s.store.FinalizePeriod(ctx, leagueID, period, at); err != nil {
		return StandingsReport{}, err
	}
	s.logger.Info().Str("league_id", leagueID).Int("period", period).Msg("✓ Period finalized")

	report, err := s.Standings(ctx, leagueID)
	if err != nil {
		return StandingsReport{}, fmt.Errorf("standings after finalizing period %d: %w", period, err)
	}

	s.publish(ctx, publisher.Event{Type: publisher.EventPeriodFinalized, LeagueID: leagueID, Period: period, At: at})
	s.publish(ctx, publisher.Event{
		Type:      publisher.EventStandingsUpdated,
		LeagueID:  leagueID,
		Period:    report.Through,
		Standings: report.Entries,
		At:        at,
	})
	return report, nil
}

// ReopenPeriod moves a final period back to open so corrections can be
// appended. Cached scores from that period on are dropped and a replay is
// queued from the period forward. The returned job is nil when no replay
// queue is configured.
func (s *LeagueService) ReopenPeriod(ctx context.Context, leagueID string, period int, actor string) (*replay.Job, error) {
	if actor == "" {
		return nil, fmt.Errorf("%w: reopening a period requires an actor", league.ErrInvalidArgument)
	}
	l, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if err := l.CheckPeriod(period); err != nil {
		return nil, err
	}
	if err := s.store.ReopenPeriod(ctx, leagueID, period); err != nil {
		return nil, err
	}

	s.logger.Warn().Str("league_id", leagueID).Int("period", period).Str("actor", actor).Msg("period reopened")

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, leagueID, periodRange(period, l.Periods)...); err != nil {
			s.logger.Warn().Err(err).Str("league_id", leagueID).Msg("cache invalidation failed")
		}
	}
	s.publish(ctx, publisher.Event{
		Type:     publisher.EventPeriodReopened,
		LeagueID: leagueID,
		Period:   period,
		Actor:    actor,
		At:       s.now(),
	})

	if s.replays == nil {
		return nil, nil
	}
	return s.replays.Enqueue(ctx, leagueID, period, fmt.Sprintf("period %d reopened by %s", period, actor))
}

func periodRange(from, to int) []int {
	if from < 1 {
		from = 1
	}
	if to < from {
		return nil
	}
	out := make([]int, 0, to-from+1)
	for p := from; p <= to; p++ {
		out = append(out, p)
	}
	return out
}
