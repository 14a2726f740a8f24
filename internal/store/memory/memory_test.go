package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/testutil"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s := New()

	if err := s.PublishRuleSet(ctx, testutil.BasicRuleSet()); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateLeague(ctx, testutil.NewLeague("l1", 4)); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertTeam(ctx, league.Team{ID: "t1", LeagueID: "l1", Name: "One"}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPlayer(ctx, testutil.Player("p1", league.PositionQB)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRoster(ctx, "l1", league.Roster{TeamID: "t1", Period: 1, Players: []league.RosterEntry{{PlayerID: "p1"}}}); err != nil {
		t.Fatal(err)
	}
	return s
}

func event(period int, key string, count int64) league.ScoringEvent {
	return league.ScoringEvent{LeagueID: "l1", Period: period, PlayerID: "p1", StatType: league.StatTouchdown, Count: count, Key: key}
}

func TestAppendEvents_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	batch := []league.ScoringEvent{event(1, "a", 1), event(1, "b", 2)}
	first, err := s.AppendEvents(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	if first.Appended != 2 {
		t.Errorf("Appended = %d, want 2", first.Appended)
	}

	second, err := s.AppendEvents(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	if second.Appended != 0 || second.Duplicates != 2 {
		t.Errorf("second append = %+v, want 0 appended, 2 duplicates", second)
	}

	conflict, err := s.AppendEvents(ctx, []league.ScoringEvent{event(1, "a", 9)})
	if err != nil {
		t.Fatal(err)
	}
	if len(conflict.Conflicts) != 1 || conflict.Conflicts[0] != "a" {
		t.Errorf("Conflicts = %v, want [a]", conflict.Conflicts)
	}

	snap, err := s.Snapshot(ctx, "l1")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Events[1]) != 2 || snap.Events[1][0].Count != 1 {
		t.Errorf("events = %+v", snap.Events[1])
	}
}

func TestAppendEvents_FinalizedPeriod(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	if err := s.FinalizePeriod(ctx, "l1", 1, time.Now()); err != nil {
		t.Fatal(err)
	}
	_, err := s.AppendEvents(ctx, []league.ScoringEvent{event(1, "late", 1)})
	if !errors.Is(err, league.ErrPeriodFinalized) {
		t.Errorf("AppendEvents() error = %v, want ErrPeriodFinalized", err)
	}
}

func TestFinalizePeriod_Order(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	err := s.FinalizePeriod(ctx, "l1", 2, time.Now())
	var ooo *league.OutOfOrderPeriod
	if !errors.As(err, &ooo) {
		t.Fatalf("FinalizePeriod(2) error = %v, want *OutOfOrderPeriod", err)
	}

	if err := s.FinalizePeriod(ctx, "l1", 1, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.FinalizePeriod(ctx, "l1", 1, time.Now()); !errors.Is(err, league.ErrPeriodFinalized) {
		t.Errorf("re-finalize error = %v, want ErrPeriodFinalized", err)
	}
	if err := s.FinalizePeriod(ctx, "l1", 2, time.Now()); err != nil {
		t.Errorf("FinalizePeriod(2) error = %v", err)
	}
	if err := s.FinalizePeriod(ctx, "l1", 5, time.Now()); !errors.Is(err, league.ErrPeriodOutOfRange) {
		t.Errorf("FinalizePeriod(5) error = %v, want ErrPeriodOutOfRange", err)
	}

	if err := s.ReopenPeriod(ctx, "l1", 1); err != nil {
		t.Fatal(err)
	}
	snap, _ := s.Snapshot(ctx, "l1")
	if snap.FinalizedPrefix() != 0 {
		t.Errorf("FinalizedPrefix() = %d after reopening 1, want 0", snap.FinalizedPrefix())
	}
	if err := s.ReopenPeriod(ctx, "l1", 1); !errors.Is(err, league.ErrInvalidArgument) {
		t.Errorf("reopen open period error = %v, want ErrInvalidArgument", err)
	}
}

func TestFinalizePeriod_RequiresRuleSet(t *testing.T) {
	ctx := context.Background()
	s := New()

	unbound := testutil.NewLeague("unbound", 4)
	unbound.RuleSets = nil
	unpublished := testutil.NewLeague("unpublished", 4)
	for _, l := range []league.League{unbound, unpublished} {
		if err := s.CreateLeague(ctx, l); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		leagueID  string
		ruleSetID string
	}{
		{"unbound", ""},
		{"unpublished", "basic"},
	}
	for _, tt := range tests {
		t.Run(tt.leagueID, func(t *testing.T) {
			err := s.FinalizePeriod(ctx, tt.leagueID, 1, time.Now())
			var stale *league.StaleRuleSetReference
			if !errors.As(err, &stale) || stale.RuleSetID != tt.ruleSetID {
				t.Fatalf("FinalizePeriod() error = %v, want StaleRuleSetReference for %q", err, tt.ruleSetID)
			}
			st, _ := s.GetPeriod(ctx, tt.leagueID, 1)
			if st.Status != league.PeriodOpen {
				t.Errorf("status = %s, want open", st.Status)
			}
		})
	}
}

func TestSnapshot_IsPrivateCopy(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	if _, err := s.AppendEvents(ctx, []league.ScoringEvent{event(1, "a", 1)}); err != nil {
		t.Fatal(err)
	}

	snap, _ := s.Snapshot(ctx, "l1")
	snap.Events[1][0].Count = 100
	snap.League.Slots[0].Count = 9
	snap.Players["p1"] = league.Player{ID: "p1"}

	again, _ := s.Snapshot(ctx, "l1")
	if again.Events[1][0].Count != 1 {
		t.Error("snapshot mutation leaked into events")
	}
	if again.League.Slots[0].Count != 1 {
		t.Error("snapshot mutation leaked into league slots")
	}
	if len(again.Players["p1"].Positions) != 1 {
		t.Error("snapshot mutation leaked into players")
	}
	if _, ok := again.RuleSets[league.RuleSetKey{ID: "basic", Version: 1}]; !ok {
		t.Error("bound rule set missing from snapshot")
	}
}

func TestBindRuleSet(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	v2 := testutil.BasicRuleSet()
	v2.Version = 2
	if err := s.PublishRuleSet(ctx, v2); err != nil {
		t.Fatal(err)
	}
	if err := s.PublishRuleSet(ctx, v2); !errors.Is(err, league.ErrRuleSetExists) {
		t.Errorf("republish error = %v, want ErrRuleSetExists", err)
	}

	var stale *league.StaleRuleSetReference
	if err := s.BindRuleSet(ctx, "l1", league.RuleSetBinding{RuleSetID: "basic", Version: 7, FromPeriod: 2}); !errors.As(err, &stale) {
		t.Errorf("bind unpublished error = %v, want *StaleRuleSetReference", err)
	}

	if err := s.FinalizePeriod(ctx, "l1", 1, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.BindRuleSet(ctx, "l1", league.RuleSetBinding{RuleSetID: "basic", Version: 2, FromPeriod: 1}); !errors.Is(err, league.ErrPeriodFinalized) {
		t.Errorf("retroactive bind error = %v, want ErrPeriodFinalized", err)
	}
	if err := s.BindRuleSet(ctx, "l1", league.RuleSetBinding{RuleSetID: "basic", Version: 2, FromPeriod: 2}); err != nil {
		t.Fatalf("future bind error = %v", err)
	}

	l, _ := s.GetLeague(ctx, "l1")
	if b, _ := l.BindingFor(3); b.Version != 2 {
		t.Errorf("BindingFor(3) = %+v, want v2", b)
	}
	if b, _ := l.BindingFor(1); b.Version != 1 {
		t.Errorf("BindingFor(1) = %+v, want v1", b)
	}
}

func TestSaveLineup_LatestWins(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	early := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)

	later := league.LineupSubmission{LeagueID: "l1", TeamID: "t1", Period: 1, SubmittedAt: early.Add(time.Hour),
		Assignments: []league.Assignment{{Slot: "QB", PlayerID: "p1"}}}
	stale := league.LineupSubmission{LeagueID: "l1", TeamID: "t1", Period: 1, SubmittedAt: early}

	if err := s.SaveLineup(ctx, later); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveLineup(ctx, stale); err != nil {
		t.Fatal(err)
	}

	snap, _ := s.Snapshot(ctx, "l1")
	got := snap.Lineups[league.RosterKey{TeamID: "t1", Period: 1}]
	if len(got.Assignments) != 1 {
		t.Errorf("lineup = %+v, want the later submission", got)
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.GetLeague(ctx, "nope"); !errors.Is(err, league.ErrNotFound) {
		t.Errorf("GetLeague() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Snapshot(ctx, "nope"); !errors.Is(err, league.ErrNotFound) {
		t.Errorf("Snapshot() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetRuleSet(ctx, "x", 1); !errors.Is(err, league.ErrNotFound) {
		t.Errorf("GetRuleSet() error = %v, want ErrNotFound", err)
	}
}
