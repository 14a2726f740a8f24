package lineup

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/fortuna/gridiron/internal/league"
)

func testLeague() league.League {
	return league.League{
		ID:        "l1",
		RosterMin: 3,
		RosterMax: 6,
		Slots: []league.Slot{
			{Name: "QB", Count: 1, Allowed: []league.Position{league.PositionQB}},
			{Name: "RB", Count: 2, Allowed: []league.Position{league.PositionRB}},
			{Name: "FLEX", Count: 1, Allowed: []league.Position{league.PositionRB, league.PositionWR, league.PositionTE}},
		},
	}
}

func testPlayers() map[string]league.Player {
	return map[string]league.Player{
		"qb1": {ID: "qb1", Positions: []league.Position{league.PositionQB}},
		"rb1": {ID: "rb1", Positions: []league.Position{league.PositionRB}},
		"rb2": {ID: "rb2", Positions: []league.Position{league.PositionRB}},
		"rb3": {ID: "rb3", Positions: []league.Position{league.PositionRB}},
		"wr1": {ID: "wr1", Positions: []league.Position{league.PositionWR}},
	}
}

func roster(ids ...string) league.Roster {
	r := league.Roster{TeamID: "t1", Period: 1}
	for _, id := range ids {
		r.Players = append(r.Players, league.RosterEntry{PlayerID: id})
	}
	return r
}

func kinds(vs []league.Violation) []league.ViolationKind {
	out := make([]league.ViolationKind, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Kind)
	}
	return out
}

func TestValidate_Legal(t *testing.T) {
	res := Validate(Input{
		League:  testLeague(),
		Roster:  roster("qb1", "rb1", "rb2", "wr1"),
		Players: testPlayers(),
		Lineup: []league.Assignment{
			{Slot: "FLEX", PlayerID: "wr1"},
			{Slot: "RB", PlayerID: "rb2"},
			{Slot: "RB", PlayerID: "rb1"},
			{Slot: "QB", PlayerID: "qb1"},
		},
	})

	if !res.Valid() {
		t.Fatalf("Violations = %v, want none", res.Violations)
	}
	if err := res.Err("t1", 1); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}

	want := []league.Assignment{
		{Slot: "QB", PlayerID: "qb1"},
		{Slot: "RB", PlayerID: "rb1"},
		{Slot: "RB", PlayerID: "rb2"},
		{Slot: "FLEX", PlayerID: "wr1"},
	}
	if !reflect.DeepEqual(res.Scoring, want) {
		t.Errorf("Scoring = %v, want %v", res.Scoring, want)
	}
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name        string
		roster      league.Roster
		lineup      []league.Assignment
		inactive    map[string]bool
		wantKinds   []league.ViolationKind
		wantScoring int
	}{
		{
			name:   "missing slot",
			roster: roster("qb1", "rb1", "rb2"),
			lineup: []league.Assignment{
				{Slot: "QB", PlayerID: "qb1"},
				{Slot: "RB", PlayerID: "rb1"},
				{Slot: "RB", PlayerID: "rb2"},
			},
			wantKinds:   []league.ViolationKind{league.ViolationSlotUnderfilled},
			wantScoring: 3,
		},
		{
			name:   "overfilled keeps lowest ids",
			roster: roster("qb1", "rb1", "rb2", "rb3", "wr1"),
			lineup: []league.Assignment{
				{Slot: "QB", PlayerID: "qb1"},
				{Slot: "RB", PlayerID: "rb3"},
				{Slot: "RB", PlayerID: "rb1"},
				{Slot: "RB", PlayerID: "rb2"},
				{Slot: "FLEX", PlayerID: "wr1"},
			},
			wantKinds:   []league.ViolationKind{league.ViolationSlotOverfilled},
			wantScoring: 4,
		},
		{
			name:   "not rostered",
			roster: roster("qb1", "rb1", "rb2"),
			lineup: []league.Assignment{
				{Slot: "QB", PlayerID: "qb1"},
				{Slot: "RB", PlayerID: "rb1"},
				{Slot: "RB", PlayerID: "rb2"},
				{Slot: "FLEX", PlayerID: "wr1"},
			},
			wantKinds:   []league.ViolationKind{league.ViolationNotRostered},
			wantScoring: 3,
		},
		{
			name:     "inactive",
			roster:   roster("qb1", "rb1", "rb2", "wr1"),
			inactive: map[string]bool{"qb1": true},
			lineup: []league.Assignment{
				{Slot: "QB", PlayerID: "qb1"},
				{Slot: "RB", PlayerID: "rb1"},
				{Slot: "RB", PlayerID: "rb2"},
				{Slot: "FLEX", PlayerID: "wr1"},
			},
			wantKinds:   []league.ViolationKind{league.ViolationInactive},
			wantScoring: 3,
		},
		{
			name:   "ineligible and unknown slot",
			roster: roster("qb1", "rb1", "rb2", "wr1"),
			lineup: []league.Assignment{
				{Slot: "QB", PlayerID: "rb1"},
				{Slot: "K", PlayerID: "qb1"},
				{Slot: "RB", PlayerID: "rb2"},
				{Slot: "FLEX", PlayerID: "wr1"},
			},
			wantKinds: []league.ViolationKind{
				league.ViolationIneligible,
				league.ViolationUnknownSlot,
				league.ViolationSlotUnderfilled,
			},
			wantScoring: 2,
		},
		{
			name:   "duplicate player",
			roster: roster("qb1", "rb1", "rb2"),
			lineup: []league.Assignment{
				{Slot: "QB", PlayerID: "qb1"},
				{Slot: "RB", PlayerID: "rb1"},
				{Slot: "RB", PlayerID: "rb2"},
				{Slot: "FLEX", PlayerID: "rb1"},
			},
			wantKinds:   []league.ViolationKind{league.ViolationDuplicatePlayer},
			wantScoring: 3,
		},
		{
			name:   "roster too small",
			roster: roster("qb1", "rb1"),
			lineup: []league.Assignment{
				{Slot: "QB", PlayerID: "qb1"},
				{Slot: "RB", PlayerID: "rb1"},
			},
			wantKinds: []league.ViolationKind{
				league.ViolationRosterTooSmall,
				league.ViolationSlotUnderfilled,
				league.ViolationSlotUnderfilled,
			},
			wantScoring: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(Input{
				League:   testLeague(),
				Roster:   tt.roster,
				Lineup:   tt.lineup,
				Players:  testPlayers(),
				Inactive: tt.inactive,
			})

			if got := kinds(res.Violations); !reflect.DeepEqual(got, tt.wantKinds) {
				t.Errorf("violation kinds = %v, want %v", got, tt.wantKinds)
			}
			if len(res.Scoring) != tt.wantScoring {
				t.Errorf("len(Scoring) = %d, want %d", len(res.Scoring), tt.wantScoring)
			}

			var verr *league.ValidationError
			if !errors.As(res.Err("t1", 1), &verr) {
				t.Fatal("Err() should return a *ValidationError")
			}
			if verr.TeamID != "t1" || verr.Period != 1 {
				t.Errorf("ValidationError = %+v", verr)
			}
		})
	}
}

func TestValidate_OverfilledDropsHighestIDs(t *testing.T) {
	res := Validate(Input{
		League:  testLeague(),
		Roster:  roster("qb1", "rb1", "rb2", "rb3"),
		Players: testPlayers(),
		Lineup: []league.Assignment{
			{Slot: "RB", PlayerID: "rb3"},
			{Slot: "RB", PlayerID: "rb2"},
			{Slot: "RB", PlayerID: "rb1"},
		},
	})

	var rbs []string
	for _, a := range res.Scoring {
		if a.Slot == "RB" {
			rbs = append(rbs, a.PlayerID)
		}
	}
	if !reflect.DeepEqual(rbs, []string{"rb1", "rb2"}) {
		t.Errorf("RB scoring = %v, want [rb1 rb2]", rbs)
	}
}

func TestCheckLock(t *testing.T) {
	lock := time.Date(2026, 9, 13, 17, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		state   league.PeriodState
		at      time.Time
		wantErr error
	}{
		{"no lock", league.PeriodState{Period: 1, Status: league.PeriodOpen}, lock, nil},
		{"before lock", league.PeriodState{Period: 1, Status: league.PeriodOpen, LockAt: &lock}, lock.Add(-time.Minute), nil},
		{"at lock", league.PeriodState{Period: 1, Status: league.PeriodOpen, LockAt: &lock}, lock, league.ErrLineupLocked},
		{"final", league.PeriodState{Period: 1, Status: league.PeriodFinal}, lock.Add(-time.Hour), league.ErrPeriodFinalized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckLock(tt.state, tt.at)
			if tt.wantErr == nil && err != nil {
				t.Errorf("CheckLock() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckLock() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
