package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/store"
)

// PeriodRepository handles period state, schedules, availability and
// lineups: everything keyed by (league, period).
type PeriodRepository struct {
	db *store.Database
}

// NewPeriodRepository creates a new period repository
func NewPeriodRepository(db *store.Database) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// Get returns a period's state; periods without a row are open
func (r *PeriodRepository) Get(ctx context.Context, leagueID string, period int) (league.PeriodState, error) {
	return getPeriod(ctx, r.db.DB(), leagueID, period)
}

// SetLock sets or clears the lineup lock time
func (r *PeriodRepository) SetLock(ctx context.Context, leagueID string, period int, lockAt *time.Time) error {
	query := `
		INSERT INTO periods (league_id, period, lock_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (league_id, period) DO UPDATE SET lock_at = EXCLUDED.lock_at
	`
	if _, err := r.db.DB().ExecContext(ctx, query, leagueID, period, lockAt); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("league %s: %w", leagueID, league.ErrNotFound)
		}
		return fmt.Errorf("setting lock: %w", err)
	}
	return nil
}

// Finalize marks a period final once every earlier period is final
func (r *PeriodRepository) Finalize(ctx context.Context, leagueID string, period int, at time.Time) error {
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockLeague(ctx, tx, leagueID, "FOR UPDATE"); err != nil {
		return err
	}
	l, err := getLeague(ctx, tx, leagueID)
	if err != nil {
		return err
	}
	if err := l.CheckPeriod(period); err != nil {
		return err
	}
	periods, err := listPeriods(ctx, tx, leagueID)
	if err != nil {
		return err
	}
	if err := league.CheckFinalize(leagueID, periods, period); err != nil {
		return err
	}
	// league_rule_sets references rule_sets, so a bound version always exists.
	if _, err := l.RuleSetKeyFor(period); err != nil {
		return err
	}

	query := `
		INSERT INTO periods (league_id, period, status, finalized_at)
		VALUES ($1, $2, 'final', $3)
		ON CONFLICT (league_id, period) DO UPDATE SET
			status = 'final',
			finalized_at = EXCLUDED.finalized_at
	`
	if _, err := tx.ExecContext(ctx, query, leagueID, period, at); err != nil {
		return fmt.Errorf("finalizing period: %w", err)
	}
	return tx.Commit()
}

// Reopen moves a final period back to open
func (r *PeriodRepository) Reopen(ctx context.Context, leagueID string, period int) error {
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockLeague(ctx, tx, leagueID, "FOR UPDATE"); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE periods
		SET status = 'open', finalized_at = NULL
		WHERE league_id = $1 AND period = $2 AND status = 'final'
	`, leagueID, period)
	if err != nil {
		return fmt.Errorf("reopening period: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: period %d is not final", league.ErrInvalidArgument, period)
	}
	return tx.Commit()
}

// SetSchedule replaces a period's matchups
func (r *PeriodRepository) SetSchedule(ctx context.Context, leagueID string, period int, matchups []league.Matchup) error {
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockLeague(ctx, tx, leagueID, "FOR SHARE"); err != nil {
		return err
	}
	if err := requireOpen(ctx, tx, leagueID, period, "schedule"); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM matchups WHERE league_id = $1 AND period = $2`, leagueID, period); err != nil {
		return fmt.Errorf("clearing schedule: %w", err)
	}
	for _, m := range matchups {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO matchups (league_id, period, home_id, away_id)
			VALUES ($1, $2, $3, $4)
		`, leagueID, period, m.HomeID, m.AwayID)
		if err != nil {
			return fmt.Errorf("inserting matchup: %w", err)
		}
	}
	return tx.Commit()
}

// SetInactive replaces a period's bye/inactive players
func (r *PeriodRepository) SetInactive(ctx context.Context, leagueID string, period int, playerIDs []string) error {
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockLeague(ctx, tx, leagueID, "FOR SHARE"); err != nil {
		return err
	}
	if err := requireOpen(ctx, tx, leagueID, period, "availability"); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM inactive_players WHERE league_id = $1 AND period = $2`, leagueID, period); err != nil {
		return fmt.Errorf("clearing availability: %w", err)
	}
	for _, id := range playerIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO inactive_players (league_id, period, player_id)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, leagueID, period, id)
		if err != nil {
			return fmt.Errorf("inserting inactive player: %w", err)
		}
	}
	return tx.Commit()
}

// SaveLineup stores a submission unless a later one exists
func (r *PeriodRepository) SaveLineup(ctx context.Context, sub league.LineupSubmission) error {
	assignments, err := json.Marshal(sub.Assignments)
	if err != nil {
		return fmt.Errorf("encoding assignments: %w", err)
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockLeague(ctx, tx, sub.LeagueID, "FOR SHARE"); err != nil {
		return err
	}
	if err := requireOpen(ctx, tx, sub.LeagueID, sub.Period, "lineup"); err != nil {
		return err
	}

	query := `
		INSERT INTO lineups (league_id, team_id, period, assignments, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (team_id, period) DO UPDATE SET
			assignments = EXCLUDED.assignments,
			submitted_at = EXCLUDED.submitted_at
		WHERE lineups.submitted_at <= EXCLUDED.submitted_at
	`
	if _, err := tx.ExecContext(ctx, query, sub.LeagueID, sub.TeamID, sub.Period, assignments, sub.SubmittedAt); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("team %s: %w", sub.TeamID, league.ErrNotFound)
		}
		return fmt.Errorf("saving lineup: %w", err)
	}
	return tx.Commit()
}

func requireOpen(ctx context.Context, q querier, leagueID string, period int, what string) error {
	st, err := getPeriod(ctx, q, leagueID, period)
	if err != nil {
		return err
	}
	if st.Status == league.PeriodFinal {
		return fmt.Errorf("%s for period %d: %w", what, period, league.ErrPeriodFinalized)
	}
	return nil
}

func getPeriod(ctx context.Context, q querier, leagueID string, period int) (league.PeriodState, error) {
	st, err := scanPeriod(q.QueryRowContext(ctx, `
		SELECT period, status, lock_at, finalized_at
		FROM periods
		WHERE league_id = $1 AND period = $2
	`, leagueID, period))
	if err == sql.ErrNoRows {
		return league.PeriodState{Period: period, Status: league.PeriodOpen}, nil
	}
	if err != nil {
		return league.PeriodState{}, fmt.Errorf("querying period: %w", err)
	}
	return st, nil
}

func listPeriods(ctx context.Context, q querier, leagueID string) (map[int]league.PeriodState, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT period, status, lock_at, finalized_at
		FROM periods
		WHERE league_id = $1
	`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("querying periods: %w", err)
	}
	defer rows.Close()

	out := make(map[int]league.PeriodState)
	for rows.Next() {
		st, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning period: %w", err)
		}
		out[st.Period] = st
	}
	return out, rows.Err()
}

func scanPeriod(scanner interface {
	Scan(dest ...interface{}) error
}) (league.PeriodState, error) {
	var (
		st                league.PeriodState
		lockAt, finalized sql.NullTime
	)
	if err := scanner.Scan(&st.Period, &st.Status, &lockAt, &finalized); err != nil {
		return league.PeriodState{}, err
	}
	if lockAt.Valid {
		t := lockAt.Time
		st.LockAt = &t
	}
	if finalized.Valid {
		t := finalized.Time
		st.FinalizedAt = &t
	}
	return st, nil
}

func listSchedule(ctx context.Context, q querier, leagueID string) (map[int][]league.Matchup, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT period, home_id, away_id
		FROM matchups
		WHERE league_id = $1
		ORDER BY period, home_id, away_id
	`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("querying schedule: %w", err)
	}
	defer rows.Close()

	out := make(map[int][]league.Matchup)
	for rows.Next() {
		var m league.Matchup
		if err := rows.Scan(&m.Period, &m.HomeID, &m.AwayID); err != nil {
			return nil, fmt.Errorf("scanning matchup: %w", err)
		}
		out[m.Period] = append(out[m.Period], m)
	}
	return out, rows.Err()
}

func listInactive(ctx context.Context, q querier, leagueID string) (map[int]map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT period, player_id
		FROM inactive_players
		WHERE league_id = $1
	`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("querying availability: %w", err)
	}
	defer rows.Close()

	out := make(map[int]map[string]bool)
	for rows.Next() {
		var (
			period   int
			playerID string
		)
		if err := rows.Scan(&period, &playerID); err != nil {
			return nil, fmt.Errorf("scanning availability: %w", err)
		}
		if out[period] == nil {
			out[period] = make(map[string]bool)
		}
		out[period][playerID] = true
	}
	return out, rows.Err()
}

func listLineups(ctx context.Context, q querier, leagueID string) (map[league.RosterKey]league.LineupSubmission, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT team_id, period, assignments, submitted_at
		FROM lineups
		WHERE league_id = $1
	`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("querying lineups: %w", err)
	}
	defer rows.Close()

	out := make(map[league.RosterKey]league.LineupSubmission)
	for rows.Next() {
		sub := league.LineupSubmission{LeagueID: leagueID}
		var assignments []byte
		if err := rows.Scan(&sub.TeamID, &sub.Period, &assignments, &sub.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scanning lineup: %w", err)
		}
		if err := json.Unmarshal(assignments, &sub.Assignments); err != nil {
			return nil, fmt.Errorf("decoding assignments: %w", err)
		}
		out[league.RosterKey{TeamID: sub.TeamID, Period: sub.Period}] = sub
	}
	return out, rows.Err()
}
