// Package service is the boundary every caller goes through: REST, MCP, the
// stream consumer and the scheduler all drive leagues via LeagueService.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/internal/ingest"
	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/normalizer"
	"github.com/fortuna/gridiron/internal/publisher"
	"github.com/fortuna/gridiron/internal/replay"
	"github.com/fortuna/gridiron/internal/store"
	"github.com/rs/zerolog"
)

// ReplayQueue queues a league recomputation.
type ReplayQueue interface {
	Enqueue(ctx context.Context, leagueID string, fromPeriod int, reason string) (*replay.Job, error)
}

// Options configures optional collaborators. Zero values disable them.
type Options struct {
	Cache   cache.Scores
	Events  publisher.Sink
	Replays ReplayQueue
	Aliases map[string]league.StatType
	Now     func() time.Time
	Logger  zerolog.Logger
}

// LeagueService handles league business logic
type LeagueService struct {
	store      store.Store
	cache      cache.Scores
	scorer     *replay.Scorer
	events     publisher.Sink
	replays    ReplayQueue
	checker    *ingest.Checker
	normalizer *normalizer.Normalizer
	now        func() time.Time
	logger     zerolog.Logger
}

// New creates a league service on top of a store
func New(st store.Store, opts Options) *LeagueService {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &LeagueService{
		store:      st,
		cache:      opts.Cache,
		scorer:     replay.NewScorer(opts.Cache, opts.Logger),
		events:     opts.Events,
		replays:    opts.Replays,
		checker:    ingest.NewChecker(),
		normalizer: normalizer.New(opts.Aliases),
		now:        now,
		logger:     opts.Logger,
	}
}

// Checker exposes the request validator so transports share one rules engine.
func (s *LeagueService) Checker() *ingest.Checker {
	return s.checker
}

// CreateLeague validates and stores a league. Bindings supplied with the
// league must reference published rule sets.
func (s *LeagueService) CreateLeague(ctx context.Context, l league.League) (league.League, error) {
	if err := validateLeague(l); err != nil {
		return league.League{}, err
	}
	for _, b := range l.RuleSets {
		if _, err := s.store.GetRuleSet(ctx, b.RuleSetID, b.Version); err != nil {
			return league.League{}, &league.StaleRuleSetReference{LeagueID: l.ID, RuleSetID: b.RuleSetID, Version: b.Version}
		}
	}
	if l.Rounding.Mode == "" {
		l.Rounding.Mode = league.RoundExact
	}
	if l.Cadence == "" {
		l.Cadence = league.CadenceWeekly
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	sort.Slice(l.RuleSets, func(i, j int) bool { return l.RuleSets[i].FromPeriod < l.RuleSets[j].FromPeriod })

	if err := s.store.CreateLeague(ctx, l); err != nil {
		return league.League{}, err
	}
	s.logger.Info().Str("league_id", l.ID).Int("periods", l.Periods).Msg("league created")
	return l, nil
}

func validateLeague(l league.League) error {
	if strings.TrimSpace(l.ID) == "" {
		return fmt.Errorf("%w: league id is required", league.ErrInvalidArgument)
	}
	if l.Periods < 1 {
		return fmt.Errorf("%w: league needs at least one period", league.ErrInvalidArgument)
	}
	if l.RosterMin < 0 || (l.RosterMax > 0 && l.RosterMax < l.RosterMin) {
		return fmt.Errorf("%w: roster limits %d..%d", league.ErrInvalidArgument, l.RosterMin, l.RosterMax)
	}
	if err := l.Rounding.Validate(); err != nil {
		return fmt.Errorf("%w: %v", league.ErrInvalidArgument, err)
	}

	seen := make(map[string]bool, len(l.Slots))
	for _, slot := range l.Slots {
		if slot.Name == "" || slot.Count < 1 || len(slot.Allowed) == 0 {
			return fmt.Errorf("%w: slot %q needs a count and allowed positions", league.ErrInvalidArgument, slot.Name)
		}
		if seen[slot.Name] {
			return fmt.Errorf("%w: duplicate slot %q", league.ErrInvalidArgument, slot.Name)
		}
		seen[slot.Name] = true
	}
	for _, b := range l.RuleSets {
		if b.FromPeriod < 1 {
			return fmt.Errorf("%w: binding must start at period 1 or later", league.ErrInvalidArgument)
		}
	}
	return nil
}

// GetLeague returns a league.
func (s *LeagueService) GetLeague(ctx context.Context, leagueID string) (league.League, error) {
	return s.store.GetLeague(ctx, leagueID)
}

// ListLeagues returns every league.
func (s *LeagueService) ListLeagues(ctx context.Context) ([]league.League, error) {
	return s.store.ListLeagues(ctx)
}

// UpsertTeam creates or updates a team in an existing league.
func (s *LeagueService) UpsertTeam(ctx context.Context, t league.Team) error {
	if t.ID == "" || t.LeagueID == "" {
		return fmt.Errorf("%w: team needs id and league id", league.ErrInvalidArgument)
	}
	if _, err := s.store.GetLeague(ctx, t.LeagueID); err != nil {
		return err
	}
	return s.store.UpsertTeam(ctx, t)
}

// ListTeams returns a league's teams.
func (s *LeagueService) ListTeams(ctx context.Context, leagueID string) ([]league.Team, error) {
	return s.store.ListTeams(ctx, leagueID)
}

// UpsertPlayer creates or updates a player.
func (s *LeagueService) UpsertPlayer(ctx context.Context, p league.Player) error {
	if p.ID == "" || len(p.Positions) == 0 {
		return fmt.Errorf("%w: player needs id and at least one position", league.ErrInvalidArgument)
	}
	return s.store.UpsertPlayer(ctx, p)
}

// GetPlayer returns a player.
func (s *LeagueService) GetPlayer(ctx context.Context, playerID string) (league.Player, error) {
	return s.store.GetPlayer(ctx, playerID)
}

// SetRoster records a team's roster for a period. It carries forward to
// later periods until replaced.
func (s *LeagueService) SetRoster(ctx context.Context, leagueID string, r league.Roster) error {
	l, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return err
	}
	if err := l.CheckPeriod(r.Period); err != nil {
		return err
	}
	if err := s.requireTeam(ctx, leagueID, r.TeamID); err != nil {
		return err
	}
	seen := make(map[string]bool, len(r.Players))
	for _, e := range r.Players {
		if seen[e.PlayerID] {
			return fmt.Errorf("%w: player %s listed twice", league.ErrInvalidArgument, e.PlayerID)
		}
		seen[e.PlayerID] = true
		if _, err := s.store.GetPlayer(ctx, e.PlayerID); err != nil {
			return err
		}
	}
	return s.store.SetRoster(ctx, leagueID, r)
}

// SetSchedule replaces a period's matchups. A team may appear at most once
// per period; teams left out are on bye.
func (s *LeagueService) SetSchedule(ctx context.Context, leagueID string, period int, matchups []league.Matchup) error {
	l, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return err
	}
	if err := l.CheckPeriod(period); err != nil {
		return err
	}
	teams, err := s.store.ListTeams(ctx, leagueID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(teams))
	for _, t := range teams {
		known[t.ID] = true
	}

	playing := make(map[string]bool)
	out := make([]league.Matchup, 0, len(matchups))
	for _, m := range matchups {
		if m.HomeID == m.AwayID {
			return fmt.Errorf("%w: team %s cannot play itself", league.ErrInvalidArgument, m.HomeID)
		}
		for _, id := range []string{m.HomeID, m.AwayID} {
			if !known[id] {
				return fmt.Errorf("team %s: %w", id, league.ErrNotFound)
			}
			if playing[id] {
				return fmt.Errorf("%w: team %s scheduled twice in period %d", league.ErrInvalidArgument, id, period)
			}
			playing[id] = true
		}
		m.Period = period
		out = append(out, m)
	}
	return s.store.SetSchedule(ctx, leagueID, period, out)
}

// SetInactive replaces the bye/inactive list for a period.
func (s *LeagueService) SetInactive(ctx context.Context, leagueID string, period int, playerIDs []string) error {
	l, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return err
	}
	if err := l.CheckPeriod(period); err != nil {
		return err
	}
	return s.store.SetInactive(ctx, leagueID, period, playerIDs)
}

// SetLock sets or clears the lineup lock time for a period.
func (s *LeagueService) SetLock(ctx context.Context, leagueID string, period int, lockAt *time.Time) error {
	l, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return err
	}
	if err := l.CheckPeriod(period); err != nil {
		return err
	}
	return s.store.SetLock(ctx, leagueID, period, lockAt)
}

// GetPeriod returns a period's state.
func (s *LeagueService) GetPeriod(ctx context.Context, leagueID string, period int) (league.PeriodState, error) {
	l, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return league.PeriodState{}, err
	}
	if err := l.CheckPeriod(period); err != nil {
		return league.PeriodState{}, err
	}
	return s.store.GetPeriod(ctx, leagueID, period)
}

func (s *LeagueService) requireTeam(ctx context.Context, leagueID, teamID string) error {
	teams, err := s.store.ListTeams(ctx, leagueID)
	if err != nil {
		return err
	}
	for _, t := range teams {
		if t.ID == teamID {
			return nil
		}
	}
	return fmt.Errorf("team %s in league %s: %w", teamID, leagueID, league.ErrNotFound)
}

func (s *LeagueService) publish(ctx context.Context, ev publisher.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("type", string(ev.Type)).Str("league_id", ev.LeagueID).Msg("publish event failed")
	}
}
