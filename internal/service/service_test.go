package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/internal/ingest"
	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/logging"
	"github.com/fortuna/gridiron/internal/publisher"
	"github.com/fortuna/gridiron/internal/replay"
	"github.com/fortuna/gridiron/internal/store/memory"
	"github.com/fortuna/gridiron/internal/testutil"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type fixture struct {
	svc     *LeagueService
	store   *memory.Store
	cache   *cache.MemoryCache
	events  *publisher.Recorder
	replays *replay.Service
	clock   *clock
}

func newFixture(t *testing.T, snap *league.Snapshot) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.New(),
		cache:  cache.NewMemoryCache(),
		events: &publisher.Recorder{},
		clock:  &clock{t: time.Date(2026, 9, 10, 18, 0, 0, 0, time.UTC)},
	}
	if snap != nil {
		if err := testutil.Seed(context.Background(), f.store, snap); err != nil {
			t.Fatalf("Seed() error = %v", err)
		}
	}

	runner := replay.NewRunner(f.store, replay.NewScorer(f.cache, logging.Nop()), f.events, 2, logging.Nop())
	f.replays = replay.NewService(replay.NewMemoryJobs(), runner, logging.Nop())
	f.svc = New(f.store, Options{
		Cache:   f.cache,
		Events:  f.events,
		Replays: f.replays,
		Now:     f.clock.now,
		Logger:  logging.Nop(),
	})
	return f
}

func oneTeam() *league.Snapshot {
	snap := testutil.NewSnapshot(testutil.NewLeague("l1", 4), testutil.BasicRuleSet())
	testutil.AddTeam(snap, "t1",
		testutil.Player("qb", league.PositionQB),
		testutil.Player("rb", league.PositionRB),
		testutil.Player("wr", league.PositionWR),
	)
	return snap
}

func encode(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestIngestAndScore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, oneTeam())

	records := []ingest.RawStatRecord{
		{LeagueID: "l1", Period: 1, PlayerID: "wr", Stat: "TDs", Count: 2, Key: "k1"},
		{LeagueID: "l1", Period: 1, PlayerID: "wr", Stat: "Receptions", Count: 3, Key: "k2"},
	}
	report := f.svc.Ingest(ctx, records)
	if report.Appended != 2 || len(report.Failed) != 0 || len(report.Warnings) != 0 {
		t.Fatalf("Ingest() = %+v, want 2 appended", report)
	}

	score, err := f.svc.PeriodScore(ctx, "l1", "t1", 1)
	if err != nil {
		t.Fatalf("PeriodScore() error = %v", err)
	}
	if !score.Total.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Total = %s, want 15", score.Total)
	}

	again := f.svc.Ingest(ctx, records)
	if again.Appended != 0 || again.Duplicates != 2 {
		t.Errorf("second Ingest() = %+v, want 0 appended, 2 duplicates", again)
	}
	rescored, _ := f.svc.PeriodScore(ctx, "l1", "t1", 1)
	if !rescored.Total.Equal(score.Total) {
		t.Errorf("Total after re-ingest = %s, want %s", rescored.Total, score.Total)
	}
}

func TestIngest_Problems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, oneTeam())

	report := f.svc.Ingest(ctx, []ingest.RawStatRecord{
		{LeagueID: "l1", Period: 1, Stat: "td", Count: 1},
		{LeagueID: "l1", Period: 1, PlayerID: "wr", Stat: "recepton", Count: 1},
		{LeagueID: "zz", Period: 1, PlayerID: "wr", Stat: "td", Count: 1},
		{LeagueID: "l1", Period: 9, PlayerID: "wr", Stat: "td", Count: 1},
		{LeagueID: "l1", Period: 2, PlayerID: "wr", Stat: "td", Count: 1},
	})

	if report.Received != 5 || report.Appended != 1 {
		t.Errorf("Received, Appended = %d, %d, want 5, 1", report.Received, report.Appended)
	}
	if len(report.Rejected) != 1 || report.Rejected[0].Index != 0 {
		t.Errorf("Rejected = %+v, want record 0", report.Rejected)
	}
	if len(report.Warnings) != 1 || report.Warnings[0].RawType != "recepton" {
		t.Errorf("Warnings = %+v, want recepton", report.Warnings)
	}
	if len(report.Failed) != 2 {
		t.Fatalf("len(Failed) = %d, want 2", len(report.Failed))
	}
	if !errors.Is(report.Failed[0].Err, league.ErrPeriodOutOfRange) {
		t.Errorf("Failed[0] = %v, want ErrPeriodOutOfRange", report.Failed[0].Err)
	}
	if !errors.Is(report.Failed[1].Err, league.ErrNotFound) {
		t.Errorf("Failed[1] = %v, want ErrNotFound", report.Failed[1].Err)
	}
}

func TestIngest_FinalizedPeriod(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, oneTeam())

	if _, err := f.svc.FinalizePeriod(ctx, "l1", 1); err != nil {
		t.Fatal(err)
	}
	report := f.svc.Ingest(ctx, []ingest.RawStatRecord{
		{LeagueID: "l1", Period: 1, PlayerID: "wr", Stat: "td", Count: 1},
	})
	if len(report.Failed) != 1 || !errors.Is(report.Failed[0].Err, league.ErrPeriodFinalized) {
		t.Errorf("Failed = %+v, want ErrPeriodFinalized", report.Failed)
	}
}

func TestSubmitLineup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, oneTeam())
	f.svc.Ingest(ctx, []ingest.RawStatRecord{
		{LeagueID: "l1", Period: 2, PlayerID: "qb", Stat: "td", Count: 1, Key: "a"},
		{LeagueID: "l1", Period: 2, PlayerID: "wr", Stat: "td", Count: 2, Key: "b"},
	})

	lock := f.clock.t.Add(time.Hour)
	if err := f.svc.SetLock(ctx, "l1", 2, &lock); err != nil {
		t.Fatal(err)
	}

	// WR left empty: stored, reported, and scores without the WR.
	res, err := f.svc.SubmitLineup(ctx, league.LineupSubmission{
		LeagueID:    "l1",
		TeamID:      "t1",
		Period:      2,
		Assignments: []league.Assignment{
			{Slot: "QB", PlayerID: "qb"},
			{Slot: "RB", PlayerID: "rb"},
		},
	})
	if !IsValidation(err) {
		t.Fatalf("SubmitLineup() error = %v, want ValidationError", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Kind != league.ViolationSlotUnderfilled {
		t.Errorf("Violations = %+v, want WR underfilled", res.Violations)
	}

	score, err := f.svc.PeriodScore(ctx, "l1", "t1", 2)
	if !IsValidation(err) {
		t.Errorf("PeriodScore() error = %v, want ValidationError", err)
	}
	if !score.Total.Equal(decimal.NewFromInt(6)) {
		t.Errorf("Total = %s, want 6", score.Total)
	}

	f.clock.t = lock
	_, err = f.svc.SubmitLineup(ctx, league.LineupSubmission{
		LeagueID:    "l1",
		TeamID:      "t1",
		Period:      2,
		Assignments: []league.Assignment{{Slot: "WR", PlayerID: "wr"}},
	})
	if !errors.Is(err, league.ErrLineupLocked) {
		t.Errorf("SubmitLineup() after lock error = %v, want ErrLineupLocked", err)
	}

	// Period 3 carries the period-2 lineup forward.
	f.svc.Ingest(ctx, []ingest.RawStatRecord{
		{LeagueID: "l1", Period: 3, PlayerID: "wr", Stat: "td", Count: 1, Key: "c"},
	})
	carried, _ := f.svc.PeriodScore(ctx, "l1", "t1", 3)
	if !carried.Total.IsZero() {
		t.Errorf("period 3 Total = %s, want 0", carried.Total)
	}
}

func TestFinalizePeriod(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.Season("l1", 4, 5))

	_, err := f.svc.FinalizePeriod(ctx, "l1", 2)
	var ooo *league.OutOfOrderPeriod
	if !errors.As(err, &ooo) || ooo.FirstOpen != 1 {
		t.Fatalf("FinalizePeriod(2) error = %v, want OutOfOrderPeriod at 1", err)
	}

	report, err := f.svc.FinalizePeriod(ctx, "l1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if report.Through != 1 || len(report.Entries) != 4 {
		t.Errorf("report = %+v, want 4 entries through 1", report)
	}
	if len(f.events.Events) != 2 ||
		f.events.Events[0].Type != publisher.EventPeriodFinalized ||
		f.events.Events[1].Type != publisher.EventStandingsUpdated {
		t.Errorf("events = %+v, want finalized then standings.updated", f.events.Events)
	}

	if _, err := f.svc.FinalizePeriod(ctx, "l1", 1); !errors.Is(err, league.ErrPeriodFinalized) {
		t.Errorf("FinalizePeriod(1) again error = %v, want ErrPeriodFinalized", err)
	}

	for p := 2; p <= 3; p++ {
		if _, err := f.svc.FinalizePeriod(ctx, "l1", p); err != nil {
			t.Fatal(err)
		}
	}
	got, err := f.svc.Standings(ctx, "l1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Through != 3 {
		t.Errorf("Through = %d, want 3", got.Through)
	}

	fresh := replay.NewRunner(f.store, replay.NewScorer(nil, logging.Nop()), nil, 3, logging.Nop())
	want, err := fresh.Run(ctx, replay.Spec{LeagueID: "l1", DryRun: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if encode(t, got.Entries) != encode(t, want.Standings) {
		t.Errorf("Standings() = %s\nreplay = %s", encode(t, got.Entries), encode(t, want.Standings))
	}
}

func TestFinalizePeriod_Unbound(t *testing.T) {
	ctx := context.Background()
	l := testutil.NewLeague("l1", 4)
	l.RuleSets = nil
	f := newFixture(t, testutil.NewSnapshot(l, testutil.BasicRuleSet()))

	var stale *league.StaleRuleSetReference
	if _, err := f.svc.FinalizePeriod(ctx, "l1", 1); !errors.As(err, &stale) {
		t.Fatalf("FinalizePeriod(1) error = %v, want StaleRuleSetReference", err)
	}
	if st, err := f.svc.GetPeriod(ctx, "l1", 1); err != nil || st.Status != league.PeriodOpen {
		t.Errorf("GetPeriod(1) = %+v, %v, want open", st, err)
	}
	if len(f.events.Events) != 0 {
		t.Errorf("events = %+v, want none", f.events.Events)
	}

	if _, err := f.svc.BindRuleSet(ctx, "l1", "basic", 1, 1); err != nil {
		t.Fatalf("BindRuleSet(from 1) error = %v", err)
	}
	report, err := f.svc.FinalizePeriod(ctx, "l1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if report.Through != 1 {
		t.Errorf("Through = %d, want 1", report.Through)
	}
}

func TestStandings_StaleRuleSetError(t *testing.T) {
	l := testutil.NewLeague("l1", 4)
	l.RuleSets = nil
	snap := testutil.NewSnapshot(l)
	testutil.Finalize(snap, 1)
	f := newFixture(t, nil)

	_, err := f.svc.standings(context.Background(), snap)
	var stale *league.StaleRuleSetReference
	if !errors.As(err, &stale) {
		t.Fatalf("standings() error = %v, want StaleRuleSetReference", err)
	}
	if n := strings.Count(err.Error(), "scoring period"); n != 1 {
		t.Errorf("error %q names the period %d times, want 1", err, n)
	}
}

func TestReopenPeriod(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.Season("l1", 4, 5))
	for p := 1; p <= 3; p++ {
		if _, err := f.svc.FinalizePeriod(ctx, "l1", p); err != nil {
			t.Fatal(err)
		}
	}
	before, _ := f.svc.Standings(ctx, "l1")

	if _, err := f.svc.ReopenPeriod(ctx, "l1", 2, ""); !errors.Is(err, league.ErrInvalidArgument) {
		t.Errorf("ReopenPeriod() without actor error = %v, want ErrInvalidArgument", err)
	}
	if _, err := f.svc.ReopenPeriod(ctx, "l1", 4, "commish"); !errors.Is(err, league.ErrInvalidArgument) {
		t.Errorf("ReopenPeriod(open period) error = %v, want ErrInvalidArgument", err)
	}

	job, err := f.svc.ReopenPeriod(ctx, "l1", 2, "commish")
	if err != nil {
		t.Fatal(err)
	}
	if job == nil || job.FromPeriod != 2 || job.Status != replay.JobStatusQueued {
		t.Fatalf("job = %+v, want queued replay from period 2", job)
	}
	if f.cache.Len() != 1 {
		t.Errorf("cached periods after reopen = %d, want 1", f.cache.Len())
	}

	reopened, _ := f.svc.Standings(ctx, "l1")
	if reopened.Through != 1 {
		t.Errorf("Through after reopen = %d, want 1", reopened.Through)
	}

	// A compensating correction lands in the reopened period only.
	report := f.svc.Ingest(ctx, []ingest.RawStatRecord{
		{LeagueID: "l1", Period: 2, PlayerID: "t04-qb", Stat: "td", Count: 10, Key: "fix-1"},
	})
	if report.Appended != 1 {
		t.Fatalf("correction Ingest() = %+v", report)
	}
	if _, err := f.svc.FinalizePeriod(ctx, "l1", 2); err != nil {
		t.Fatal(err)
	}

	after, err := f.svc.Standings(ctx, "l1")
	if err != nil {
		t.Fatal(err)
	}
	if encode(t, after.Entries) == encode(t, before.Entries) {
		t.Error("standings unchanged by a 60-point correction")
	}

	if ok, err := f.replays.ProcessNext(ctx); !ok || err != nil {
		t.Fatalf("ProcessNext() = %v, %v", ok, err)
	}
	done, _ := f.replays.GetJob(ctx, job.JobID)
	if done.Status != replay.JobStatusCompleted {
		t.Errorf("job status = %s, want completed", done.Status)
	}

	last := f.events.Events[len(f.events.Events)-1]
	if last.Type != publisher.EventStandingsUpdated || encode(t, last.Standings) != encode(t, after.Entries) {
		t.Errorf("replay published %s %s, want standings %s", last.Type, encode(t, last.Standings), encode(t, after.Entries))
	}
}

func TestBindRuleSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, oneTeam())

	v2 := testutil.BasicRuleSet()
	v2.Version = 2
	v2.Points = map[league.StatType]decimal.Decimal{
		league.StatTouchdown: decimal.NewFromInt(4),
		league.StatReception: decimal.NewFromInt(1),
	}
	if _, err := f.svc.PublishRuleSet(ctx, v2); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.PublishRuleSet(ctx, v2); !errors.Is(err, league.ErrRuleSetExists) {
		t.Errorf("PublishRuleSet() again error = %v, want ErrRuleSetExists", err)
	}
	if _, err := f.svc.FinalizePeriod(ctx, "l1", 1); err != nil {
		t.Fatal(err)
	}

	binding, err := f.svc.BindRuleSet(ctx, "l1", "basic", 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if binding.FromPeriod != 2 {
		t.Errorf("FromPeriod = %d, want 2", binding.FromPeriod)
	}

	if _, err := f.svc.BindRuleSet(ctx, "l1", "basic", 2, 1); !errors.Is(err, league.ErrPeriodFinalized) {
		t.Errorf("retroactive BindRuleSet() error = %v, want ErrPeriodFinalized", err)
	}
	var stale *league.StaleRuleSetReference
	if _, err := f.svc.BindRuleSet(ctx, "l1", "nope", 1, 3); !errors.As(err, &stale) {
		t.Errorf("BindRuleSet(unpublished) error = %v, want StaleRuleSetReference", err)
	}

	f.svc.Ingest(ctx, []ingest.RawStatRecord{
		{LeagueID: "l1", Period: 2, PlayerID: "wr", Stat: "td", Count: 2, Key: "p2"},
	})
	score, err := f.svc.PeriodScore(ctx, "l1", "t1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if score.RuleSetVersion != 2 || !score.Total.Equal(decimal.NewFromInt(8)) {
		t.Errorf("score = v%d %s, want v2 8", score.RuleSetVersion, score.Total)
	}
}

func TestCreateLeague_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	tests := []struct {
		name string
		edit func(*league.League)
	}{
		{"no id", func(l *league.League) { l.ID = "" }},
		{"no periods", func(l *league.League) { l.Periods = 0 }},
		{"roster limits", func(l *league.League) { l.RosterMin, l.RosterMax = 5, 2 }},
		{"rounding", func(l *league.League) { l.Rounding = league.RoundingPolicy{Mode: league.RoundHalfUp, Places: 9} }},
		{"empty slot", func(l *league.League) { l.Slots[0].Count = 0 }},
		{"duplicate slot", func(l *league.League) { l.Slots[1].Name = l.Slots[0].Name }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := testutil.NewLeague("bad", 4)
			tt.edit(&l)
			if _, err := f.svc.CreateLeague(ctx, l); !errors.Is(err, league.ErrInvalidArgument) {
				t.Errorf("CreateLeague() error = %v, want ErrInvalidArgument", err)
			}
		})
	}

	var stale *league.StaleRuleSetReference
	if _, err := f.svc.CreateLeague(ctx, testutil.NewLeague("l9", 4)); !errors.As(err, &stale) {
		t.Errorf("CreateLeague() with unpublished binding error = %v, want StaleRuleSetReference", err)
	}
}

func TestSetSchedule_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.Season("l1", 4, 3))

	tests := []struct {
		name     string
		matchups []league.Matchup
		want     error
	}{
		{"self", []league.Matchup{{HomeID: "t01", AwayID: "t01"}}, league.ErrInvalidArgument},
		{"twice", []league.Matchup{{HomeID: "t01", AwayID: "t02"}, {HomeID: "t03", AwayID: "t01"}}, league.ErrInvalidArgument},
		{"unknown team", []league.Matchup{{HomeID: "t01", AwayID: "t99"}}, league.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.svc.SetSchedule(ctx, "l1", 2, tt.matchups); !errors.Is(err, tt.want) {
				t.Errorf("SetSchedule() error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := f.svc.SetSchedule(ctx, "l1", 2, []league.Matchup{{HomeID: "t01", AwayID: "t03"}}); err != nil {
		t.Errorf("SetSchedule() error = %v", err)
	}
}
