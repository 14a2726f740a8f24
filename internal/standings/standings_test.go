package standings

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func period(n int, games ...[4]any) Period {
	p := Period{Number: n, Totals: make(map[string]decimal.Decimal)}
	for _, g := range games {
		home, away := g[0].(string), g[1].(string)
		p.Matchups = append(p.Matchups, league.Matchup{Period: n, HomeID: home, AwayID: away})
		p.Totals[home] = d(int64(g[2].(int)))
		p.Totals[away] = d(int64(g[3].(int)))
	}
	return p
}

func order(entries []league.StandingsEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.TeamID)
	}
	return out
}

func TestApply_Period3Result(t *testing.T) {
	table := NewTable("l1", []string{"A", "B", "C", "D"})
	history := []Period{
		period(1, [4]any{"A", "C", 100, 90}, [4]any{"B", "D", 110, 80}),
		period(2, [4]any{"A", "D", 95, 105}, [4]any{"B", "C", 99, 101}),
	}
	for _, p := range history {
		if err := table.Apply(p); err != nil {
			t.Fatalf("Apply(%d) error = %v", p.Number, err)
		}
	}

	before := map[string]league.StandingsEntry{}
	for _, e := range table.Entries() {
		before[e.TeamID] = e
	}

	if err := table.Apply(period(3, [4]any{"A", "B", 120, 118}, [4]any{"C", "D", 50, 60})); err != nil {
		t.Fatalf("Apply(3) error = %v", err)
	}

	after := map[string]league.StandingsEntry{}
	for _, e := range table.Entries() {
		after[e.TeamID] = e
	}

	a, b := after["A"], after["B"]
	if a.Wins != before["A"].Wins+1 || a.Losses != before["A"].Losses {
		t.Errorf("A record = %d-%d, want one more win", a.Wins, a.Losses)
	}
	if b.Losses != before["B"].Losses+1 || b.Wins != before["B"].Wins {
		t.Errorf("B record = %d-%d, want one more loss", b.Wins, b.Losses)
	}
	if !a.PointsFor.Equal(before["A"].PointsFor.Add(d(120))) {
		t.Errorf("A points-for = %s, want %s", a.PointsFor, before["A"].PointsFor.Add(d(120)))
	}
	if !b.PointsAgainst.Equal(before["B"].PointsAgainst.Add(d(120))) {
		t.Errorf("B points-against = %s", b.PointsAgainst)
	}

	// A: 2-1 PF 315, B: 1-2 PF 327, D: 2-1 PF 245, C: 1-2 PF 241
	want := []string{"A", "D", "B", "C"}
	if got := order(table.Entries()); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestEntries_TieBreakByTeamID(t *testing.T) {
	table := NewTable("l1", []string{"zeta", "alpha", "mid"})
	err := table.Apply(period(1, [4]any{"zeta", "x", 100, 90}, [4]any{"alpha", "y", 100, 90}))
	if err != nil {
		t.Fatal(err)
	}

	entries := table.Entries()
	got := order(entries)
	want := []string{"alpha", "zeta", "x", "y", "mid"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	for i, e := range entries {
		if e.Rank != i+1 {
			t.Errorf("entries[%d].Rank = %d, want %d", i, e.Rank, i+1)
		}
	}
}

func TestEntries_HeadToHead(t *testing.T) {
	table := NewTable("l1", []string{"a", "b", "c", "d"})
	history := []Period{
		period(1, [4]any{"a", "b", 90, 100}, [4]any{"c", "d", 10, 20}),
		period(2, [4]any{"a", "c", 110, 0}, [4]any{"b", "d", 100, 120}),
	}
	for _, p := range history {
		if err := table.Apply(p); err != nil {
			t.Fatal(err)
		}
	}

	// a and b are 1-1 with 200 points-for; b won the meeting.
	want := []string{"d", "b", "a", "c"}
	if got := order(table.Entries()); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestEntries_HeadToHeadNeedsAllPairs(t *testing.T) {
	table := NewTable("l1", nil)
	history := []Period{
		// c beats b; a and c never meet.
		period(1, [4]any{"c", "b", 50, 40}, [4]any{"a", "x", 50, 0}),
		period(2, [4]any{"b", "y", 50, 0}, [4]any{"x", "c", 60, 40}),
		period(3, [4]any{"a", "y", 40, 45}),
	}
	for _, p := range history {
		if err := table.Apply(p); err != nil {
			t.Fatal(err)
		}
	}

	entries := table.Entries()
	// a, b, c are all 1 win and 90 points-for; c beat b but a never met c.
	got := order(entries)[:3]
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestApply_Bye(t *testing.T) {
	table := NewTable("l1", []string{"a", "b", "c"})
	if err := table.Apply(period(1, [4]any{"a", "b", 10, 20})); err != nil {
		t.Fatal(err)
	}

	for _, e := range table.Entries() {
		if e.TeamID != "c" {
			continue
		}
		if e.Wins+e.Losses+e.Ties != 0 || !e.PointsFor.IsZero() || !e.PointsAgainst.IsZero() {
			t.Errorf("bye team entry = %+v, want empty", e)
		}
	}
}

func TestApply_Tie(t *testing.T) {
	table := NewTable("l1", []string{"a", "b"})
	if err := table.Apply(period(1, [4]any{"a", "b", 101, 101})); err != nil {
		t.Fatal(err)
	}
	for _, e := range table.Entries() {
		if e.Ties != 1 || e.Wins != 0 || e.Losses != 0 {
			t.Errorf("%s = %d-%d-%d, want 0-0-1", e.TeamID, e.Wins, e.Losses, e.Ties)
		}
	}
}

func TestApply_OutOfOrder(t *testing.T) {
	table := NewTable("l1", []string{"a", "b"})
	err := table.Apply(period(2, [4]any{"a", "b", 1, 0}))

	var ooo *league.OutOfOrderPeriod
	if !errors.As(err, &ooo) {
		t.Fatalf("Apply() error = %v, want *OutOfOrderPeriod", err)
	}
	if ooo.FirstOpen != 1 {
		t.Errorf("FirstOpen = %d, want 1", ooo.FirstOpen)
	}
}

func TestIncrementalMatchesCompute(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	teams := []string{"t1", "t2", "t3", "t4", "t5", "t6"}

	for trial := 0; trial < 25; trial++ {
		var history []Period
		for n := 1; n <= 10; n++ {
			perm := rng.Perm(len(teams))
			p := Period{Number: n, Totals: make(map[string]decimal.Decimal)}
			for i := 0; i+1 < len(perm); i += 2 {
				home, away := teams[perm[i]], teams[perm[i+1]]
				p.Matchups = append(p.Matchups, league.Matchup{Period: n, HomeID: home, AwayID: away})
			}
			for _, id := range teams {
				p.Totals[id] = decimal.New(int64(rng.Intn(40)+80), 0).Add(decimal.New(int64(rng.Intn(4)), -1))
			}
			history = append(history, p)
		}

		incremental := NewTable("l1", teams)
		for _, p := range history {
			if err := incremental.Apply(p); err != nil {
				t.Fatal(err)
			}
			// Cloning mid-season must not disturb the fold.
			_ = incremental.Clone()
		}

		fromScratch, err := Compute("l1", teams, history)
		if err != nil {
			t.Fatal(err)
		}

		got, want := incremental.Entries(), fromScratch
		if len(got) != len(want) {
			t.Fatalf("trial %d: len = %d, want %d", trial, len(got), len(want))
		}
		for i := range got {
			if fmt.Sprint(got[i]) != fmt.Sprint(want[i]) {
				t.Errorf("trial %d row %d: %+v, want %+v", trial, i, got[i], want[i])
			}
		}
	}
}

func TestClone_Independent(t *testing.T) {
	table := NewTable("l1", []string{"a", "b"})
	_ = table.Apply(period(1, [4]any{"a", "b", 10, 5}))

	clone := table.Clone()
	_ = clone.Apply(period(2, [4]any{"a", "b", 1, 5}))

	if table.Through() != 1 || clone.Through() != 2 {
		t.Errorf("Through() = %d/%d, want 1/2", table.Through(), clone.Through())
	}
	if table.Entries()[0].Wins != 1 || table.Entries()[0].Losses != 0 {
		t.Errorf("original table changed: %+v", table.Entries()[0])
	}
}
