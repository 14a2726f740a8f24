package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/internal/calculator"
	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/logging"
	"github.com/fortuna/gridiron/internal/publisher"
	"github.com/fortuna/gridiron/internal/standings"
	"github.com/fortuna/gridiron/internal/store/memory"
	"github.com/fortuna/gridiron/internal/testutil"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func seededStore(t *testing.T, finalized ...int) (*memory.Store, *league.Snapshot) {
	t.Helper()
	snap := testutil.Season("l1", 6, 8)
	testutil.Finalize(snap, finalized...)

	st := memory.New()
	if err := testutil.Seed(context.Background(), st, snap); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	return st, snap
}

func sequential(t *testing.T, snap *league.Snapshot, through int) []league.StandingsEntry {
	t.Helper()
	var history []standings.Period
	for _, res := range calculator.Season(snap, through) {
		history = append(history, standings.Period{
			Number:   res.Period,
			Matchups: snap.Schedule[res.Period],
			Totals:   res.Totals(),
		})
	}
	table, err := standings.Compute(snap.League.ID, snap.TeamIDs(), history)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	return table
}

func encode(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

type countingReporter struct {
	started, scored, completed int
	errs                       []error
}

func (r *countingReporter) OnJobStart(Spec, int)          { r.started++ }
func (r *countingReporter) OnPeriodScored(int, int, int) { r.scored++ }
func (r *countingReporter) OnJobComplete(*Result)        { r.completed++ }
func (r *countingReporter) OnJobError(err error)         { r.errs = append(r.errs, err) }

func TestRun_MatchesSequentialFold(t *testing.T) {
	st, snap := seededStore(t, 1, 2, 3, 4, 5)
	scores := cache.NewMemoryCache()
	events := &publisher.Recorder{}
	runner := NewRunner(st, NewScorer(scores, logging.Nop()), events, 4, logging.Nop())

	reporter := &countingReporter{}
	res, err := runner.Run(context.Background(), Spec{LeagueID: "l1", FromPeriod: 1}, reporter)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Through != 5 {
		t.Errorf("Through = %d, want 5", res.Through)
	}
	if len(res.Periods) != 8 {
		t.Errorf("len(Periods) = %d, want 8", len(res.Periods))
	}
	for i, p := range res.Periods {
		if p.Period != i+1 {
			t.Errorf("Periods[%d].Period = %d, want %d", i, p.Period, i+1)
		}
	}

	want := encode(t, sequential(t, snap, 5))
	if got := encode(t, res.Standings); got != want {
		t.Errorf("Standings = %s\nwant %s", got, want)
	}

	if reporter.started != 1 || reporter.scored != 8 || reporter.completed != 1 || len(reporter.errs) != 0 {
		t.Errorf("reporter = %+v, want 1 start, 8 scored, 1 complete", reporter)
	}
	if scores.Len() != 8 {
		t.Errorf("cached periods = %d, want 8", scores.Len())
	}
	if len(events.Events) != 1 || events.Events[0].Type != publisher.EventStandingsUpdated {
		t.Errorf("events = %+v, want one standings.updated", events.Events)
	}
}

func TestRun_CachedRunIsIdentical(t *testing.T) {
	st, _ := seededStore(t, 1, 2, 3)
	scores := cache.NewMemoryCache()
	runner := NewRunner(st, NewScorer(scores, logging.Nop()), nil, 3, logging.Nop())

	first, err := runner.Run(context.Background(), Spec{LeagueID: "l1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := runner.Run(context.Background(), Spec{LeagueID: "l1"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if got, want := encode(t, second), encode(t, first); got != want {
		t.Errorf("cached replay differs:\n%s\n%s", got, want)
	}
}

func TestRun_WorkerCountDoesNotMatter(t *testing.T) {
	st, _ := seededStore(t, 1, 2, 3, 4)

	var want string
	for _, workers := range []int{1, 2, 8} {
		runner := NewRunner(st, NewScorer(nil, logging.Nop()), nil, workers, logging.Nop())
		res, err := runner.Run(context.Background(), Spec{LeagueID: "l1"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		got := encode(t, res)
		if want == "" {
			want = got
			continue
		}
		if got != want {
			t.Errorf("workers=%d result differs", workers)
		}
	}
}

func TestRun_DryRunLeavesCacheEmpty(t *testing.T) {
	st, _ := seededStore(t, 1)
	scores := cache.NewMemoryCache()
	events := &publisher.Recorder{}
	runner := NewRunner(st, NewScorer(scores, logging.Nop()), events, 2, logging.Nop())

	if _, err := runner.Run(context.Background(), Spec{LeagueID: "l1", DryRun: true}, nil); err != nil {
		t.Fatal(err)
	}
	if scores.Len() != 0 {
		t.Errorf("cached periods = %d, want 0", scores.Len())
	}
	if len(events.Events) != 0 {
		t.Errorf("events = %d, want 0", len(events.Events))
	}
}

func TestRun_FromPeriodRecomputes(t *testing.T) {
	ctx := context.Background()
	st, _ := seededStore(t, 1, 2, 3)
	scores := cache.NewMemoryCache()
	runner := NewRunner(st, NewScorer(scores, logging.Nop()), nil, 2, logging.Nop())

	snap, err := st.Snapshot(ctx, "l1")
	if err != nil {
		t.Fatal(err)
	}
	stale := []league.PeriodScore{{TeamID: "stale"}}
	for _, p := range []int{1, 3} {
		fp, err := calculator.Fingerprint(snap, p)
		if err != nil {
			t.Fatal(err)
		}
		if err := scores.Put(ctx, "l1", p, fp, stale); err != nil {
			t.Fatal(err)
		}
	}

	res, err := runner.Run(ctx, Spec{LeagueID: "l1", FromPeriod: 3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Periods[0].Scores; len(got) != 1 || got[0].TeamID != "stale" {
		t.Errorf("period 1 scores = %+v, want the cached entry", got)
	}
	want, err := calculator.LeaguePeriod(snap, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got := encode(t, res.Periods[2].Scores); got != encode(t, want.Scores) {
		t.Errorf("period 3 scores = %s, want recomputed %s", got, encode(t, want.Scores))
	}

	reporter := &countingReporter{}
	if _, err := runner.Run(ctx, Spec{LeagueID: "l1", FromPeriod: 9}, reporter); !errors.Is(err, league.ErrPeriodOutOfRange) {
		t.Errorf("Run(from 9) error = %v, want ErrPeriodOutOfRange", err)
	}
	if reporter.started != 0 || len(reporter.errs) != 1 {
		t.Errorf("reporter = %+v, want one error and no start", reporter)
	}
}

func TestRun_UnknownLeague(t *testing.T) {
	runner := NewRunner(memory.New(), NewScorer(nil, logging.Nop()), nil, 1, logging.Nop())
	reporter := &countingReporter{}

	_, err := runner.Run(context.Background(), Spec{LeagueID: "nope"}, reporter)
	if !errors.Is(err, league.ErrNotFound) {
		t.Errorf("Run() error = %v, want ErrNotFound", err)
	}
	if len(reporter.errs) != 1 {
		t.Errorf("reported errors = %d, want 1", len(reporter.errs))
	}
}

func TestService_ProcessNext(t *testing.T) {
	ctx := context.Background()
	st, _ := seededStore(t, 1, 2)
	jobs := NewMemoryJobs()
	runner := NewRunner(st, NewScorer(cache.NewMemoryCache(), logging.Nop()), nil, 2, logging.Nop())
	svc := NewService(jobs, runner, logging.Nop())

	ok, err := svc.ProcessNext(ctx)
	if err != nil || ok {
		t.Fatalf("ProcessNext() on empty queue = %v, %v", ok, err)
	}

	good, err := svc.Enqueue(ctx, "l1", 2, "reopened")
	if err != nil {
		t.Fatal(err)
	}
	bad, err := svc.Enqueue(ctx, "missing", 0, "test")
	if err != nil {
		t.Fatal(err)
	}
	if bad.FromPeriod != 1 {
		t.Errorf("FromPeriod = %d, want 1", bad.FromPeriod)
	}

	for i := 0; i < 2; i++ {
		if ok, err := svc.ProcessNext(ctx); err != nil || !ok {
			t.Fatalf("ProcessNext() #%d = %v, %v", i, ok, err)
		}
	}

	gotGood, _ := svc.GetJob(ctx, good.JobID)
	if gotGood.Status != JobStatusCompleted || gotGood.ProgressCurrent != 8 || gotGood.ProgressTotal != 8 {
		t.Errorf("good job = %+v, want completed 8/8", gotGood)
	}
	gotBad, _ := svc.GetJob(ctx, bad.JobID)
	if gotBad.Status != JobStatusFailed || gotBad.LastError == "" {
		t.Errorf("bad job = %+v, want failed with error", gotBad)
	}

	summary, err := svc.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.ActiveJob != nil || len(summary.History) != 2 {
		t.Errorf("status = %+v, want no active job and 2 in history", summary)
	}

	if _, err := svc.Enqueue(ctx, "", 1, ""); !errors.Is(err, league.ErrInvalidArgument) {
		t.Errorf("Enqueue(\"\") error = %v, want ErrInvalidArgument", err)
	}
}
