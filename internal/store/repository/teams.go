package repository

import (
	"context"
	"fmt"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/store"
	"github.com/lib/pq"
)

// TeamRepository handles team and roster data access
type TeamRepository struct {
	db *store.Database
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(db *store.Database) *TeamRepository {
	return &TeamRepository{db: db}
}

// Upsert inserts or updates a team
func (r *TeamRepository) Upsert(ctx context.Context, t league.Team) error {
	query := `
		INSERT INTO teams (team_id, league_id, owner_id, name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			name = EXCLUDED.name,
			updated_at = NOW()
	`

	if _, err := r.db.DB().ExecContext(ctx, query, t.ID, t.LeagueID, t.OwnerID, t.Name); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("league %s: %w", t.LeagueID, league.ErrNotFound)
		}
		return fmt.Errorf("upserting team: %w", err)
	}
	return nil
}

// GetByLeague returns a league's teams ordered by id
func (r *TeamRepository) GetByLeague(ctx context.Context, leagueID string) ([]league.Team, error) {
	return listTeams(ctx, r.db.DB(), leagueID)
}

// SetRoster replaces a team's roster for a period
func (r *TeamRepository) SetRoster(ctx context.Context, leagueID string, roster league.Roster) error {
	ids := make([]string, 0, len(roster.Players))
	for _, e := range roster.Players {
		ids = append(ids, e.PlayerID)
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockLeague(ctx, tx, leagueID, "FOR SHARE"); err != nil {
		return err
	}
	if err := requireOpen(ctx, tx, leagueID, roster.Period, "roster"); err != nil {
		return err
	}

	query := `
		INSERT INTO rosters (league_id, team_id, period, player_ids)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id, period) DO UPDATE SET
			player_ids = EXCLUDED.player_ids,
			updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, query, leagueID, roster.TeamID, roster.Period, pq.Array(ids)); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("team %s: %w", roster.TeamID, league.ErrNotFound)
		}
		return fmt.Errorf("saving roster: %w", err)
	}
	return tx.Commit()
}

func listTeams(ctx context.Context, q querier, leagueID string) ([]league.Team, error) {
	query := `
		SELECT team_id, league_id, owner_id, name
		FROM teams
		WHERE league_id = $1
		ORDER BY team_id
	`

	rows, err := q.QueryContext(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("querying teams: %w", err)
	}
	defer rows.Close()

	var teams []league.Team
	for rows.Next() {
		var t league.Team
		if err := rows.Scan(&t.ID, &t.LeagueID, &t.OwnerID, &t.Name); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, t)
	}

	return teams, rows.Err()
}

func listRosters(ctx context.Context, q querier, leagueID string) (map[league.RosterKey]league.Roster, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT team_id, period, player_ids
		FROM rosters
		WHERE league_id = $1
	`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("querying rosters: %w", err)
	}
	defer rows.Close()

	out := make(map[league.RosterKey]league.Roster)
	for rows.Next() {
		var (
			r   league.Roster
			ids pq.StringArray
		)
		if err := rows.Scan(&r.TeamID, &r.Period, &ids); err != nil {
			return nil, fmt.Errorf("scanning roster: %w", err)
		}
		for _, id := range ids {
			r.Players = append(r.Players, league.RosterEntry{PlayerID: id})
		}
		out[league.RosterKey{TeamID: r.TeamID, Period: r.Period}] = r
	}

	return out, rows.Err()
}

func isForeignKeyViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23503"
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
