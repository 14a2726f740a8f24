package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/store"
	"github.com/lib/pq"
)

// PlayerRepository handles player data access
type PlayerRepository struct {
	db *store.Database
}

// NewPlayerRepository creates a new player repository
func NewPlayerRepository(db *store.Database) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// GetByID finds a player by ID
func (r *PlayerRepository) GetByID(ctx context.Context, playerID string) (league.Player, error) {
	query := `
		SELECT player_id, name, positions, pro_team
		FROM players
		WHERE player_id = $1
	`

	var (
		p         league.Player
		positions pq.StringArray
	)
	err := r.db.DB().QueryRowContext(ctx, query, playerID).Scan(&p.ID, &p.Name, &positions, &p.ProTeam)
	if err == sql.ErrNoRows {
		return league.Player{}, fmt.Errorf("player %s: %w", playerID, league.ErrNotFound)
	}
	if err != nil {
		return league.Player{}, fmt.Errorf("querying player: %w", err)
	}
	p.Positions = toPositions(positions)

	return p, nil
}

// Upsert inserts or updates a player
func (r *PlayerRepository) Upsert(ctx context.Context, p league.Player) error {
	query := `
		INSERT INTO players (player_id, name, positions, pro_team)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id) DO UPDATE SET
			name = EXCLUDED.name,
			positions = EXCLUDED.positions,
			pro_team = EXCLUDED.pro_team,
			updated_at = NOW()
	`

	positions := make([]string, 0, len(p.Positions))
	for _, pos := range p.Positions {
		positions = append(positions, string(pos))
	}

	if _, err := r.db.DB().ExecContext(ctx, query, p.ID, p.Name, pq.Array(positions), p.ProTeam); err != nil {
		return fmt.Errorf("upserting player: %w", err)
	}
	return nil
}

// listRosteredPlayers loads every player that appears on one of the
// league's rosters.
func listRosteredPlayers(ctx context.Context, q querier, leagueID string) (map[string]league.Player, error) {
	query := `
		SELECT p.player_id, p.name, p.positions, p.pro_team
		FROM players p
		WHERE p.player_id IN (
			SELECT DISTINCT unnest(player_ids) FROM rosters WHERE league_id = $1
		)
	`

	rows, err := q.QueryContext(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("querying rostered players: %w", err)
	}
	defer rows.Close()

	out := make(map[string]league.Player)
	for rows.Next() {
		var (
			p         league.Player
			positions pq.StringArray
		)
		if err := rows.Scan(&p.ID, &p.Name, &positions, &p.ProTeam); err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		p.Positions = toPositions(positions)
		out[p.ID] = p
	}

	return out, rows.Err()
}

func toPositions(raw []string) []league.Position {
	out := make([]league.Position, 0, len(raw))
	for _, s := range raw {
		out = append(out, league.Position(s))
	}
	return out
}
