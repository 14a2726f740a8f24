package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fortuna/gridiron/internal/calculator"
	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/publisher"
	"github.com/fortuna/gridiron/internal/store"
	"github.com/rs/zerolog"
)

// Runner executes replay specs against a store.
type Runner struct {
	store   store.Store
	scorer  *Scorer
	events  publisher.Sink
	workers int
	logger  zerolog.Logger
}

// NewRunner constructs a runner. events may be nil.
func NewRunner(st store.Store, scorer *Scorer, events publisher.Sink, workers int, logger zerolog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		store:   st,
		scorer:  scorer,
		events:  events,
		workers: workers,
		logger:  logger,
	}
}

// Run scores every period of the season in parallel and then folds the
// standings once, sequentially, over the finalized prefix. Periods are
// independent, so an interrupted run can simply be repeated. Periods before
// spec.FromPeriod reuse scores cached under a matching fingerprint; periods
// from it on are always recomputed. A dry run never writes the cache or
// publishes.
func (r *Runner) Run(ctx context.Context, spec Spec, reporter Reporter) (*Result, error) {
	snap, err := r.store.Snapshot(ctx, spec.LeagueID)
	if err != nil {
		if reporter != nil {
			reporter.OnJobError(err)
		}
		return nil, fmt.Errorf("snapshot league %s: %w", spec.LeagueID, err)
	}

	total := snap.League.Periods
	if k := snap.FinalizedPrefix(); total < k {
		total = k
	}
	from := spec.FromPeriod
	if from == 0 {
		from = 1
	}
	if from < 1 || from > total {
		err := fmt.Errorf("%w: replay from period %d, season has %d", league.ErrPeriodOutOfRange, from, total)
		if reporter != nil {
			reporter.OnJobError(err)
		}
		return nil, err
	}
	if reporter != nil {
		reporter.OnJobStart(spec, total)
	}

	scorer := r.scorer
	if spec.DryRun {
		scorer = scorer.ReadOnly()
	}
	recompute := scorer.Fresh()

	results := make([]calculator.PeriodResult, total)
	periods := make(chan int)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)

	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range periods {
				sc := scorer
				if p >= from {
					sc = recompute
				}
				res, err := sc.Period(ctx, snap, p)
				if err != nil {
					res = calculator.PeriodResult{Period: p}
					for _, teamID := range snap.TeamIDs() {
						res.Errors = append(res.Errors, league.UnitError{TeamID: teamID, Period: p, Err: err})
					}
				}
				results[p-1] = res

				mu.Lock()
				done++
				if reporter != nil {
					reporter.OnPeriodScored(p, done, total)
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for p := 1; p <= total; p++ {
		select {
		case <-ctx.Done():
			break feed
		case periods <- p:
		}
	}
	close(periods)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		if reporter != nil {
			reporter.OnJobError(err)
		}
		return nil, err
	}

	through := snap.FinalizedPrefix()
	table, err := Fold(snap, results, through)
	if err != nil {
		if reporter != nil {
			reporter.OnJobError(err)
		}
		return nil, err
	}

	res := &Result{
		LeagueID:  spec.LeagueID,
		Through:   through,
		Periods:   results,
		Standings: table,
	}

	if !spec.DryRun && r.events != nil {
		ev := publisher.Event{
			Type:      publisher.EventStandingsUpdated,
			LeagueID:  spec.LeagueID,
			Period:    through,
			Standings: table,
			At:        time.Now().UTC(),
		}
		if err := r.events.Publish(ctx, ev); err != nil {
			r.logger.Warn().Err(err).Str("league_id", spec.LeagueID).Msg("publish standings failed")
		}
	}

	if reporter != nil {
		reporter.OnJobComplete(res)
	}
	return res, nil
}
