package store

import (
	"context"
	"time"

	"github.com/fortuna/gridiron/internal/league"
)

// AppendResult summarizes an event append. Replayed events with a known key
// and identical payload are counted as duplicates and skipped.
type AppendResult struct {
	Appended   int      `json:"appended"`
	Duplicates int      `json:"duplicates"`
	Conflicts  []string `json:"conflicts,omitempty"`
}

// Store is the persistence surface the league service depends on. Both the
// Postgres repositories and the in-memory store implement it.
type Store interface {
	CreateLeague(ctx context.Context, l league.League) error
	GetLeague(ctx context.Context, leagueID string) (league.League, error)
	ListLeagues(ctx context.Context) ([]league.League, error)
	// BindRuleSet adds a binding. The rule set must be published and every
	// period from binding.FromPeriod on must still be open.
	BindRuleSet(ctx context.Context, leagueID string, binding league.RuleSetBinding) error

	UpsertTeam(ctx context.Context, t league.Team) error
	ListTeams(ctx context.Context, leagueID string) ([]league.Team, error)
	UpsertPlayer(ctx context.Context, p league.Player) error
	GetPlayer(ctx context.Context, playerID string) (league.Player, error)
	SetRoster(ctx context.Context, leagueID string, r league.Roster) error
	// SaveLineup keeps the submission unless a later one is already stored.
	SaveLineup(ctx context.Context, sub league.LineupSubmission) error
	SetSchedule(ctx context.Context, leagueID string, period int, matchups []league.Matchup) error
	SetInactive(ctx context.Context, leagueID string, period int, playerIDs []string) error

	PublishRuleSet(ctx context.Context, rs league.RuleSet) error
	GetRuleSet(ctx context.Context, id string, version int) (league.RuleSet, error)
	ListRuleSets(ctx context.Context) ([]league.RuleSet, error)

	// AppendEvents is idempotent per (league, key). Events for a finalized
	// period are rejected with ErrPeriodFinalized.
	AppendEvents(ctx context.Context, events []league.ScoringEvent) (AppendResult, error)

	GetPeriod(ctx context.Context, leagueID string, period int) (league.PeriodState, error)
	SetLock(ctx context.Context, leagueID string, period int, lockAt *time.Time) error
	// FinalizePeriod applies league.CheckFinalize atomically.
	FinalizePeriod(ctx context.Context, leagueID string, period int, at time.Time) error
	ReopenPeriod(ctx context.Context, leagueID string, period int) error

	// Snapshot returns a consistent, private copy of everything needed to
	// score the league.
	Snapshot(ctx context.Context, leagueID string) (*league.Snapshot, error)
}
