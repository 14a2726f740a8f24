// Package testutil builds league fixtures for tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/store"
	"github.com/shopspring/decimal"
)

// BasicRuleSet prices touchdowns at 6 and receptions at 1.
func BasicRuleSet() league.RuleSet {
	return league.RuleSet{
		ID:      "basic",
		Version: 1,
		Points: map[league.StatType]decimal.Decimal{
			league.StatTouchdown: decimal.NewFromInt(6),
			league.StatReception: decimal.NewFromInt(1),
		},
		PublishedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

// NewLeague returns a league with one QB, RB and WR slot, bound to
// BasicRuleSet from period 1.
func NewLeague(id string, periods int) league.League {
	return league.League{
		ID:        id,
		Name:      "League " + id,
		Cadence:   league.CadenceWeekly,
		Periods:   periods,
		RosterMin: 1,
		RosterMax: 10,
		Slots: []league.Slot{
			{Name: "QB", Count: 1, Allowed: []league.Position{league.PositionQB}},
			{Name: "RB", Count: 1, Allowed: []league.Position{league.PositionRB}},
			{Name: "WR", Count: 1, Allowed: []league.Position{league.PositionWR}},
		},
		Rounding: league.RoundingPolicy{Mode: league.RoundExact},
		RuleSets: []league.RuleSetBinding{{RuleSetID: "basic", Version: 1, FromPeriod: 1}},
	}
}

// NewSnapshot returns an empty snapshot for the league holding the given
// rule sets.
func NewSnapshot(l league.League, sets ...league.RuleSet) *league.Snapshot {
	s := &league.Snapshot{
		League:   l,
		Players:  make(map[string]league.Player),
		Rosters:  make(map[league.RosterKey]league.Roster),
		Lineups:  make(map[league.RosterKey]league.LineupSubmission),
		Events:   make(map[int][]league.ScoringEvent),
		Schedule: make(map[int][]league.Matchup),
		Periods:  make(map[int]league.PeriodState),
		Inactive: make(map[int]map[string]bool),
		RuleSets: make(map[league.RuleSetKey]league.RuleSet),
	}
	for _, rs := range sets {
		s.RuleSets[rs.Key()] = rs
	}
	return s
}

// Player builds a single-position player.
func Player(id string, pos league.Position) league.Player {
	return league.Player{ID: id, Name: "Player " + id, Positions: []league.Position{pos}, ProTeam: "FA"}
}

// AddTeam adds a team with a period-1 roster of the given players and a
// lineup placing each player in the slot named after its first position.
func AddTeam(s *league.Snapshot, teamID string, players ...league.Player) {
	s.Teams = append(s.Teams, league.Team{ID: teamID, LeagueID: s.League.ID, OwnerID: "owner-" + teamID, Name: "Team " + teamID})

	key := league.RosterKey{TeamID: teamID, Period: 1}
	roster := league.Roster{TeamID: teamID, Period: 1}
	sub := league.LineupSubmission{LeagueID: s.League.ID, TeamID: teamID, Period: 1}
	for _, p := range players {
		s.Players[p.ID] = p
		roster.Players = append(roster.Players, league.RosterEntry{PlayerID: p.ID})
		sub.Assignments = append(sub.Assignments, league.Assignment{Slot: string(p.Positions[0]), PlayerID: p.ID})
	}
	s.Rosters[key] = roster
	s.Lineups[key] = sub
}

// AddEvent appends a scoring event with a generated key.
func AddEvent(s *league.Snapshot, period int, playerID string, st league.StatType, count int64) {
	s.Events[period] = append(s.Events[period], league.ScoringEvent{
		LeagueID: s.League.ID,
		Period:   period,
		PlayerID: playerID,
		StatType: st,
		Count:    count,
		Key:      fmt.Sprintf("%d-%s-%s-%d", period, playerID, st, len(s.Events[period])),
	})
}

// AddMatchup schedules home against away.
func AddMatchup(s *league.Snapshot, period int, home, away string) {
	s.Schedule[period] = append(s.Schedule[period], league.Matchup{Period: period, HomeID: home, AwayID: away})
}

// Finalize marks periods final.
func Finalize(s *league.Snapshot, periods ...int) {
	at := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	for _, p := range periods {
		s.Periods[p] = league.PeriodState{Period: p, Status: league.PeriodFinal, FinalizedAt: &at}
	}
}

// Seed writes a snapshot into a store: rule sets, league, teams, players,
// rosters, lineups, schedule, availability and events, then finalizes the
// final periods in order.
func Seed(ctx context.Context, st store.Store, s *league.Snapshot) error {
	for _, rs := range s.RuleSets {
		if err := st.PublishRuleSet(ctx, rs); err != nil {
			return err
		}
	}
	if err := st.CreateLeague(ctx, s.League); err != nil {
		return err
	}
	for _, t := range s.Teams {
		if err := st.UpsertTeam(ctx, t); err != nil {
			return err
		}
	}
	for _, p := range s.Players {
		if err := st.UpsertPlayer(ctx, p); err != nil {
			return err
		}
	}
	for _, r := range s.Rosters {
		if err := st.SetRoster(ctx, s.League.ID, r); err != nil {
			return err
		}
	}
	for _, sub := range s.Lineups {
		if err := st.SaveLineup(ctx, sub); err != nil {
			return err
		}
	}
	for period, matchups := range s.Schedule {
		if err := st.SetSchedule(ctx, s.League.ID, period, matchups); err != nil {
			return err
		}
	}
	for period, inactive := range s.Inactive {
		ids := make([]string, 0, len(inactive))
		for id, out := range inactive {
			if out {
				ids = append(ids, id)
			}
		}
		if err := st.SetInactive(ctx, s.League.ID, period, ids); err != nil {
			return err
		}
	}
	for _, evs := range s.Events {
		if _, err := st.AppendEvents(ctx, evs); err != nil {
			return err
		}
	}

	var final []int
	for p, state := range s.Periods {
		if state.Status == league.PeriodFinal {
			final = append(final, p)
		}
	}
	sort.Ints(final)
	for _, p := range final {
		at := time.Now().UTC()
		if fa := s.Periods[p].FinalizedAt; fa != nil {
			at = *fa
		}
		if err := st.FinalizePeriod(ctx, s.League.ID, p, at); err != nil {
			return err
		}
	}
	return nil
}
