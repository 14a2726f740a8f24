// Package standings folds finalized period results into a ranked table.
package standings

import (
	"sort"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/shopspring/decimal"
)

// Period is one finalized period's input to the fold.
type Period struct {
	Number   int
	Matchups []league.Matchup
	Totals   map[string]decimal.Decimal
}

type record struct {
	wins, losses, ties int
	pointsFor          decimal.Decimal
	pointsAgainst      decimal.Decimal
}

type pair struct{ a, b string }

// Table accumulates results period by period. Periods must be applied in
// order starting at 1.
type Table struct {
	leagueID string
	through  int
	records  map[string]*record
	beat     map[pair]int
	met      map[pair]bool
}

// NewTable creates an empty table for the given teams.
func NewTable(leagueID string, teamIDs []string) *Table {
	t := &Table{
		leagueID: leagueID,
		records:  make(map[string]*record, len(teamIDs)),
		beat:     make(map[pair]int),
		met:      make(map[pair]bool),
	}
	for _, id := range teamIDs {
		t.team(id)
	}
	return t
}

// Through returns the last applied period, 0 when none.
func (t *Table) Through() int {
	return t.through
}

// Apply folds one period into the table. Higher total wins; equal totals
// tie. Teams without a matchup are on bye and gain nothing. A missing total
// counts as zero.
func (t *Table) Apply(p Period) error {
	if p.Number != t.through+1 {
		return &league.OutOfOrderPeriod{LeagueID: t.leagueID, Period: p.Number, FirstOpen: t.through + 1}
	}

	for _, m := range p.Matchups {
		home, away := t.team(m.HomeID), t.team(m.AwayID)
		hs, as := total(p.Totals, m.HomeID), total(p.Totals, m.AwayID)

		home.pointsFor = home.pointsFor.Add(hs)
		home.pointsAgainst = home.pointsAgainst.Add(as)
		away.pointsFor = away.pointsFor.Add(as)
		away.pointsAgainst = away.pointsAgainst.Add(hs)

		t.met[pair{m.HomeID, m.AwayID}] = true
		t.met[pair{m.AwayID, m.HomeID}] = true

		switch hs.Cmp(as) {
		case 1:
			home.wins++
			away.losses++
			t.beat[pair{m.HomeID, m.AwayID}]++
		case -1:
			away.wins++
			home.losses++
			t.beat[pair{m.AwayID, m.HomeID}]++
		default:
			home.ties++
			away.ties++
		}
	}

	t.through = p.Number
	return nil
}

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	c := &Table{
		leagueID: t.leagueID,
		through:  t.through,
		records:  make(map[string]*record, len(t.records)),
		beat:     make(map[pair]int, len(t.beat)),
		met:      make(map[pair]bool, len(t.met)),
	}
	for id, r := range t.records {
		cp := *r
		c.records[id] = &cp
	}
	for k, v := range t.beat {
		c.beat[k] = v
	}
	for k, v := range t.met {
		c.met[k] = v
	}
	return c
}

// Entries returns the ranked table. Order: wins desc, points-for desc,
// head-to-head within the tied group (only when every pair in the group
// met), then team id asc. Ranks are 1..n and unique.
func (t *Table) Entries() []league.StandingsEntry {
	ids := make([]string, 0, len(t.records))
	for id := range t.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := t.records[ids[i]], t.records[ids[j]]
		if a.wins != b.wins {
			return a.wins > b.wins
		}
		if c := a.pointsFor.Cmp(b.pointsFor); c != 0 {
			return c > 0
		}
		return ids[i] < ids[j]
	})

	for start := 0; start < len(ids); {
		end := start + 1
		for end < len(ids) && t.tied(ids[start], ids[end]) {
			end++
		}
		if end-start > 1 {
			t.breakTie(ids[start:end])
		}
		start = end
	}

	out := make([]league.StandingsEntry, 0, len(ids))
	for i, id := range ids {
		r := t.records[id]
		out = append(out, league.StandingsEntry{
			Rank:          i + 1,
			TeamID:        id,
			Wins:          r.wins,
			Losses:        r.losses,
			Ties:          r.ties,
			PointsFor:     r.pointsFor,
			PointsAgainst: r.pointsAgainst,
		})
	}
	return out
}

func (t *Table) tied(a, b string) bool {
	ra, rb := t.records[a], t.records[b]
	return ra.wins == rb.wins && ra.pointsFor.Equal(rb.pointsFor)
}

// breakTie orders a group tied on wins and points-for. The group arrives
// sorted by id.
func (t *Table) breakTie(group []string) {
	for i := range group {
		for j := i + 1; j < len(group); j++ {
			if !t.met[pair{group[i], group[j]}] {
				return
			}
		}
	}

	net := make(map[string]int, len(group))
	for _, a := range group {
		for _, b := range group {
			if a == b {
				continue
			}
			net[a] += t.beat[pair{a, b}] - t.beat[pair{b, a}]
		}
	}
	sort.SliceStable(group, func(i, j int) bool {
		if net[group[i]] != net[group[j]] {
			return net[group[i]] > net[group[j]]
		}
		return group[i] < group[j]
	})
}

func (t *Table) team(id string) *record {
	r, ok := t.records[id]
	if !ok {
		r = &record{pointsFor: decimal.Zero, pointsAgainst: decimal.Zero}
		t.records[id] = r
	}
	return r
}

func total(totals map[string]decimal.Decimal, teamID string) decimal.Decimal {
	if v, ok := totals[teamID]; ok {
		return v
	}
	return decimal.Zero
}

// Compute folds a full history from scratch.
func Compute(leagueID string, teamIDs []string, history []Period) ([]league.StandingsEntry, error) {
	t := NewTable(leagueID, teamIDs)
	for _, p := range history {
		if err := t.Apply(p); err != nil {
			return nil, err
		}
	}
	return t.Entries(), nil
}
