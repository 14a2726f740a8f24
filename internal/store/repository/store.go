package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/store"
)

// Store implements store.Store on top of the Postgres repositories.
type Store struct {
	db       *store.Database
	leagues  *LeagueRepository
	teams    *TeamRepository
	players  *PlayerRepository
	ruleSets *RuleSetRepository
	events   *EventRepository
	periods  *PeriodRepository
}

var _ store.Store = (*Store)(nil)

// NewStore wires every repository to the database.
func NewStore(db *store.Database) *Store {
	return &Store{
		db:       db,
		leagues:  NewLeagueRepository(db),
		teams:    NewTeamRepository(db),
		players:  NewPlayerRepository(db),
		ruleSets: NewRuleSetRepository(db),
		events:   NewEventRepository(db),
		periods:  NewPeriodRepository(db),
	}
}

func (s *Store) CreateLeague(ctx context.Context, l league.League) error {
	return s.leagues.Create(ctx, l)
}

func (s *Store) GetLeague(ctx context.Context, leagueID string) (league.League, error) {
	return s.leagues.GetByID(ctx, leagueID)
}

func (s *Store) ListLeagues(ctx context.Context) ([]league.League, error) {
	return s.leagues.GetAll(ctx)
}

func (s *Store) BindRuleSet(ctx context.Context, leagueID string, binding league.RuleSetBinding) error {
	return s.leagues.Bind(ctx, leagueID, binding)
}

func (s *Store) UpsertTeam(ctx context.Context, t league.Team) error {
	return s.teams.Upsert(ctx, t)
}

func (s *Store) ListTeams(ctx context.Context, leagueID string) ([]league.Team, error) {
	if _, err := s.leagues.GetByID(ctx, leagueID); err != nil {
		return nil, err
	}
	return s.teams.GetByLeague(ctx, leagueID)
}

func (s *Store) UpsertPlayer(ctx context.Context, p league.Player) error {
	return s.players.Upsert(ctx, p)
}

func (s *Store) GetPlayer(ctx context.Context, playerID string) (league.Player, error) {
	return s.players.GetByID(ctx, playerID)
}

func (s *Store) SetRoster(ctx context.Context, leagueID string, r league.Roster) error {
	return s.teams.SetRoster(ctx, leagueID, r)
}

func (s *Store) SaveLineup(ctx context.Context, sub league.LineupSubmission) error {
	return s.periods.SaveLineup(ctx, sub)
}

func (s *Store) SetSchedule(ctx context.Context, leagueID string, period int, matchups []league.Matchup) error {
	return s.periods.SetSchedule(ctx, leagueID, period, matchups)
}

func (s *Store) SetInactive(ctx context.Context, leagueID string, period int, playerIDs []string) error {
	return s.periods.SetInactive(ctx, leagueID, period, playerIDs)
}

func (s *Store) PublishRuleSet(ctx context.Context, rs league.RuleSet) error {
	return s.ruleSets.Publish(ctx, rs)
}

func (s *Store) GetRuleSet(ctx context.Context, id string, version int) (league.RuleSet, error) {
	return s.ruleSets.Get(ctx, id, version)
}

func (s *Store) ListRuleSets(ctx context.Context) ([]league.RuleSet, error) {
	return s.ruleSets.GetAll(ctx)
}

func (s *Store) AppendEvents(ctx context.Context, events []league.ScoringEvent) (store.AppendResult, error) {
	return s.events.Append(ctx, events)
}

func (s *Store) GetPeriod(ctx context.Context, leagueID string, period int) (league.PeriodState, error) {
	return s.periods.Get(ctx, leagueID, period)
}

func (s *Store) SetLock(ctx context.Context, leagueID string, period int, lockAt *time.Time) error {
	return s.periods.SetLock(ctx, leagueID, period, lockAt)
}

func (s *Store) FinalizePeriod(ctx context.Context, leagueID string, period int, at time.Time) error {
	return s.periods.Finalize(ctx, leagueID, period, at)
}

func (s *Store) ReopenPeriod(ctx context.Context, leagueID string, period int) error {
	return s.periods.Reopen(ctx, leagueID, period)
}

// Snapshot reads the whole league inside one read-only REPEATABLE READ
// transaction, so every table is seen as of the same instant.
func (s *Store) Snapshot(ctx context.Context, leagueID string) (*league.Snapshot, error) {
	tx, err := s.db.DB().BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning snapshot: %w", err)
	}
	defer tx.Rollback()

	snap := &league.Snapshot{}
	if snap.League, err = getLeague(ctx, tx, leagueID); err != nil {
		return nil, err
	}
	if snap.Teams, err = listTeams(ctx, tx, leagueID); err != nil {
		return nil, err
	}
	if snap.Players, err = listRosteredPlayers(ctx, tx, leagueID); err != nil {
		return nil, err
	}
	if snap.Rosters, err = listRosters(ctx, tx, leagueID); err != nil {
		return nil, err
	}
	if snap.Lineups, err = listLineups(ctx, tx, leagueID); err != nil {
		return nil, err
	}
	if snap.Events, err = listEvents(ctx, tx, leagueID); err != nil {
		return nil, err
	}
	if snap.Schedule, err = listSchedule(ctx, tx, leagueID); err != nil {
		return nil, err
	}
	if snap.Periods, err = listPeriods(ctx, tx, leagueID); err != nil {
		return nil, err
	}
	if snap.Inactive, err = listInactive(ctx, tx, leagueID); err != nil {
		return nil, err
	}
	if snap.RuleSets, err = listBoundRuleSets(ctx, tx, leagueID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("closing snapshot: %w", err)
	}
	return snap, nil
}
