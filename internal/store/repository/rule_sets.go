package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/store"
	"github.com/shopspring/decimal"
)

// RuleSetRepository handles published rule set versions
type RuleSetRepository struct {
	db *store.Database
}

// NewRuleSetRepository creates a new rule set repository
func NewRuleSetRepository(db *store.Database) *RuleSetRepository {
	return &RuleSetRepository{db: db}
}

// Publish inserts a new immutable version
func (r *RuleSetRepository) Publish(ctx context.Context, rs league.RuleSet) error {
	points, err := json.Marshal(rs.Points)
	if err != nil {
		return fmt.Errorf("encoding points: %w", err)
	}

	query := `
		INSERT INTO rule_sets (rule_set_id, version, points, published_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.DB().ExecContext(ctx, query, rs.ID, rs.Version, points, rs.PublishedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rule set %s v%d: %w", rs.ID, rs.Version, league.ErrRuleSetExists)
		}
		return fmt.Errorf("publishing rule set: %w", err)
	}
	return nil
}

// Get returns a published version
func (r *RuleSetRepository) Get(ctx context.Context, id string, version int) (league.RuleSet, error) {
	query := `
		SELECT rule_set_id, version, points, published_at
		FROM rule_sets
		WHERE rule_set_id = $1 AND version = $2
	`

	rs, err := scanRuleSet(r.db.DB().QueryRowContext(ctx, query, id, version))
	if err == sql.ErrNoRows {
		return league.RuleSet{}, fmt.Errorf("rule set %s v%d: %w", id, version, league.ErrNotFound)
	}
	if err != nil {
		return league.RuleSet{}, fmt.Errorf("querying rule set: %w", err)
	}
	return rs, nil
}

// GetAll returns every published version
func (r *RuleSetRepository) GetAll(ctx context.Context) ([]league.RuleSet, error) {
	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT rule_set_id, version, points, published_at
		FROM rule_sets
		ORDER BY rule_set_id, version
	`)
	if err != nil {
		return nil, fmt.Errorf("querying rule sets: %w", err)
	}
	defer rows.Close()

	var out []league.RuleSet
	for rows.Next() {
		rs, err := scanRuleSet(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rule set: %w", err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// listBoundRuleSets loads the rule sets a league's bindings reference.
func listBoundRuleSets(ctx context.Context, q querier, leagueID string) (map[league.RuleSetKey]league.RuleSet, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT rs.rule_set_id, rs.version, rs.points, rs.published_at
		FROM rule_sets rs
		JOIN league_rule_sets b ON b.rule_set_id = rs.rule_set_id AND b.version = rs.version
		WHERE b.league_id = $1
	`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("querying bound rule sets: %w", err)
	}
	defer rows.Close()

	out := make(map[league.RuleSetKey]league.RuleSet)
	for rows.Next() {
		rs, err := scanRuleSet(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rule set: %w", err)
		}
		out[rs.Key()] = rs
	}
	return out, rows.Err()
}

func scanRuleSet(scanner interface {
	Scan(dest ...interface{}) error
}) (league.RuleSet, error) {
	var (
		rs     league.RuleSet
		points []byte
	)
	if err := scanner.Scan(&rs.ID, &rs.Version, &points, &rs.PublishedAt); err != nil {
		return league.RuleSet{}, err
	}
	rs.Points = make(map[league.StatType]decimal.Decimal)
	if err := json.Unmarshal(points, &rs.Points); err != nil {
		return league.RuleSet{}, fmt.Errorf("decoding points: %w", err)
	}
	return rs, nil
}
