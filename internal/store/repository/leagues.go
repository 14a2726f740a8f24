package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/store"
)

// LeagueRepository handles league and rule set binding data access
type LeagueRepository struct {
	db *store.Database
}

// NewLeagueRepository creates a new league repository
func NewLeagueRepository(db *store.Database) *LeagueRepository {
	return &LeagueRepository{db: db}
}

// Create inserts a league and its initial rule set bindings
func (r *LeagueRepository) Create(ctx context.Context, l league.League) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	slots, err := json.Marshal(l.Slots)
	if err != nil {
		return fmt.Errorf("encoding slots: %w", err)
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO leagues (league_id, name, cadence, periods, roster_min, roster_max,
			slots, rounding_mode, rounding_places, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (league_id) DO NOTHING
	`
	res, err := tx.ExecContext(ctx, query,
		l.ID, l.Name, string(l.Cadence), l.Periods, l.RosterMin, l.RosterMax,
		slots, string(l.Rounding.Mode), l.Rounding.Places, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting league: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: league %s already exists", league.ErrInvalidArgument, l.ID)
	}

	for _, b := range l.RuleSets {
		if err := insertBinding(ctx, tx, l.ID, b); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID finds a league by ID
func (r *LeagueRepository) GetByID(ctx context.Context, leagueID string) (league.League, error) {
	return getLeague(ctx, r.db.DB(), leagueID)
}

// GetAll returns every league ordered by id
func (r *LeagueRepository) GetAll(ctx context.Context) ([]league.League, error) {
	rows, err := r.db.DB().QueryContext(ctx, `SELECT league_id FROM leagues ORDER BY league_id`)
	if err != nil {
		return nil, fmt.Errorf("querying leagues: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning league id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	leagues := make([]league.League, 0, len(ids))
	for _, id := range ids {
		l, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		leagues = append(leagues, l)
	}
	return leagues, nil
}

// Bind adds a rule set binding. The rule set must be published and no
// period from binding.FromPeriod on may be final.
func (r *LeagueRepository) Bind(ctx context.Context, leagueID string, binding league.RuleSetBinding) error {
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockLeague(ctx, tx, leagueID, "FOR UPDATE"); err != nil {
		return err
	}

	var published bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM rule_sets WHERE rule_set_id = $1 AND version = $2)`,
		binding.RuleSetID, binding.Version,
	).Scan(&published)
	if err != nil {
		return fmt.Errorf("checking rule set: %w", err)
	}
	if !published {
		return &league.StaleRuleSetReference{LeagueID: leagueID, RuleSetID: binding.RuleSetID, Version: binding.Version}
	}

	var finalPeriod sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MIN(period) FROM periods WHERE league_id = $1 AND period >= $2 AND status = 'final'`,
		leagueID, binding.FromPeriod,
	).Scan(&finalPeriod)
	if err != nil {
		return fmt.Errorf("checking periods: %w", err)
	}
	if finalPeriod.Valid {
		return fmt.Errorf("binding from period %d: period %d: %w", binding.FromPeriod, finalPeriod.Int64, league.ErrPeriodFinalized)
	}

	if err := insertBinding(ctx, tx, leagueID, binding); err != nil {
		return err
	}
	return tx.Commit()
}

func insertBinding(ctx context.Context, q querier, leagueID string, b league.RuleSetBinding) error {
	query := `
		INSERT INTO league_rule_sets (league_id, from_period, rule_set_id, version)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (league_id, from_period) DO UPDATE
		SET rule_set_id = EXCLUDED.rule_set_id, version = EXCLUDED.version
	`
	if _, err := q.ExecContext(ctx, query, leagueID, b.FromPeriod, b.RuleSetID, b.Version); err != nil {
		return fmt.Errorf("binding rule set: %w", err)
	}
	return nil
}

// lockLeague takes a row lock on the league. Appends take it FOR SHARE and
// finalization FOR UPDATE, which serializes the two.
func lockLeague(ctx context.Context, q querier, leagueID, mode string) error {
	var id string
	err := q.QueryRowContext(ctx, `SELECT league_id FROM leagues WHERE league_id = $1 `+mode, leagueID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("league %s: %w", leagueID, league.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("locking league: %w", err)
	}
	return nil
}

func getLeague(ctx context.Context, q querier, leagueID string) (league.League, error) {
	query := `
		SELECT league_id, name, cadence, periods, roster_min, roster_max,
			slots, rounding_mode, rounding_places, created_at
		FROM leagues
		WHERE league_id = $1
	`

	var (
		l     league.League
		slots []byte
	)
	err := q.QueryRowContext(ctx, query, leagueID).Scan(
		&l.ID, &l.Name, &l.Cadence, &l.Periods, &l.RosterMin, &l.RosterMax,
		&slots, &l.Rounding.Mode, &l.Rounding.Places, &l.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return league.League{}, fmt.Errorf("league %s: %w", leagueID, league.ErrNotFound)
	}
	if err != nil {
		return league.League{}, fmt.Errorf("querying league: %w", err)
	}
	if err := json.Unmarshal(slots, &l.Slots); err != nil {
		return league.League{}, fmt.Errorf("decoding slots: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT rule_set_id, version, from_period
		FROM league_rule_sets
		WHERE league_id = $1
		ORDER BY from_period
	`, leagueID)
	if err != nil {
		return league.League{}, fmt.Errorf("querying bindings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b league.RuleSetBinding
		if err := rows.Scan(&b.RuleSetID, &b.Version, &b.FromPeriod); err != nil {
			return league.League{}, fmt.Errorf("scanning binding: %w", err)
		}
		l.RuleSets = append(l.RuleSets, b)
	}

	return l, rows.Err()
}
