package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/normalizer"
	"github.com/fortuna/gridiron/internal/store"
	"github.com/lib/pq"
)

// EventRepository handles the append-only scoring event log
type EventRepository struct {
	db *store.Database
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *store.Database) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts events keyed by (league, key). Exact replays are counted as
// duplicates; a known key with a different payload is a conflict and is not
// written. Any event aimed at a finalized period fails the whole batch.
func (r *EventRepository) Append(ctx context.Context, events []league.ScoringEvent) (store.AppendResult, error) {
	var res store.AppendResult
	if len(events) == 0 {
		return res, nil
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	periods := make(map[string][]int64)
	for _, ev := range events {
		periods[ev.LeagueID] = append(periods[ev.LeagueID], int64(ev.Period))
	}
	leagueIDs := make([]string, 0, len(periods))
	for id := range periods {
		leagueIDs = append(leagueIDs, id)
	}
	sort.Strings(leagueIDs)

	for _, leagueID := range leagueIDs {
		if err := lockLeague(ctx, tx, leagueID, "FOR SHARE"); err != nil {
			return res, err
		}
		var final sql.NullInt64
		err := tx.QueryRowContext(ctx, `
			SELECT MIN(period) FROM periods
			WHERE league_id = $1 AND period = ANY($2) AND status = 'final'
		`, leagueID, pq.Array(periods[leagueID])).Scan(&final)
		if err != nil {
			return res, fmt.Errorf("checking periods: %w", err)
		}
		if final.Valid {
			return res, fmt.Errorf("append to period %d: %w", final.Int64, league.ErrPeriodFinalized)
		}
	}

	insert := `
		INSERT INTO scoring_events (league_id, event_key, period, player_id, stat_type, count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (league_id, event_key) DO NOTHING
	`
	existing := `
		SELECT league_id, event_key, period, player_id, stat_type, count
		FROM scoring_events
		WHERE league_id = $1 AND event_key = $2
	`

	for _, ev := range events {
		result, err := tx.ExecContext(ctx, insert, ev.LeagueID, ev.Key, ev.Period, ev.PlayerID, string(ev.StatType), ev.Count)
		if err != nil {
			return res, fmt.Errorf("inserting event %s: %w", ev.Key, err)
		}
		if n, _ := result.RowsAffected(); n == 1 {
			res.Appended++
			continue
		}

		prev, err := scanEvent(tx.QueryRowContext(ctx, existing, ev.LeagueID, ev.Key))
		if err != nil {
			return res, fmt.Errorf("loading event %s: %w", ev.Key, err)
		}
		if normalizer.SamePayload(prev, ev) {
			res.Duplicates++
		} else {
			res.Conflicts = append(res.Conflicts, ev.Key)
		}
	}

	if err := tx.Commit(); err != nil {
		return res, err
	}
	return res, nil
}

func listEvents(ctx context.Context, q querier, leagueID string) (map[int][]league.ScoringEvent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT league_id, event_key, period, player_id, stat_type, count
		FROM scoring_events
		WHERE league_id = $1
		ORDER BY period, player_id, stat_type, event_key
	`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	out := make(map[int][]league.ScoringEvent)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		out[ev.Period] = append(out[ev.Period], ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Database collation may differ from byte order.
	for _, evs := range out {
		normalizer.SortEvents(evs)
	}
	return out, nil
}

func scanEvent(scanner interface {
	Scan(dest ...interface{}) error
}) (league.ScoringEvent, error) {
	var ev league.ScoringEvent
	err := scanner.Scan(&ev.LeagueID, &ev.Key, &ev.Period, &ev.PlayerID, &ev.StatType, &ev.Count)
	return ev, err
}
