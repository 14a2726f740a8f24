// Package lineup checks proposed lineups against a league's slot rules.
package lineup

import (
	"fmt"
	"sort"
	"time"

	"github.com/fortuna/gridiron/internal/league"
)

// Input is everything the validator looks at for one team-period.
type Input struct {
	League   league.League
	Roster   league.Roster
	Lineup   []league.Assignment
	Players  map[string]league.Player
	Inactive map[string]bool
}

// Result lists the problems found and the assignments that may score.
// Scoring is ordered by slot configuration order, then player id.
type Result struct {
	Violations []league.Violation
	Scoring    []league.Assignment
}

// Valid reports whether the lineup had no violations.
func (r Result) Valid() bool {
	return len(r.Violations) == 0
}

// Err returns a *league.ValidationError when there are violations.
func (r Result) Err(teamID string, period int) error {
	if r.Valid() {
		return nil
	}
	return &league.ValidationError{TeamID: teamID, Period: period, Violations: r.Violations}
}

// Validate never corrects a lineup. Illegal assignments are reported and
// left out of Scoring; when a slot holds more players than it allows, the
// lowest player ids are kept.
func Validate(in Input) Result {
	var res Result
	res.Violations = append(res.Violations, rosterSize(in.League, in.Roster)...)

	slotIndex := make(map[string]int, len(in.League.Slots))
	for i, s := range in.League.Slots {
		slotIndex[s.Name] = i
	}

	assignments := append([]league.Assignment(nil), in.Lineup...)
	sort.SliceStable(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		ai, aok := slotIndex[a.Slot]
		bi, bok := slotIndex[b.Slot]
		if aok != bok {
			return aok
		}
		if aok && ai != bi {
			return ai < bi
		}
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		return a.PlayerID < b.PlayerID
	})

	assigned := make(map[string]int, len(in.League.Slots))
	legal := make(map[string][]string, len(in.League.Slots))
	seen := make(map[string]bool, len(assignments))

	for _, a := range assignments {
		slot, ok := in.League.SlotByName(a.Slot)
		if !ok {
			res.Violations = append(res.Violations, league.Violation{
				Kind:     league.ViolationUnknownSlot,
				Slot:     a.Slot,
				PlayerID: a.PlayerID,
				Detail:   "slot is not part of the league configuration",
			})
			continue
		}
		assigned[slot.Name]++

		if v, bad := checkAssignment(in, slot, a, seen); bad {
			res.Violations = append(res.Violations, v)
			continue
		}
		seen[a.PlayerID] = true
		legal[slot.Name] = append(legal[slot.Name], a.PlayerID)
	}

	for _, slot := range in.League.Slots {
		if n := assigned[slot.Name]; n > slot.Count {
			res.Violations = append(res.Violations, league.Violation{
				Kind:   league.ViolationSlotOverfilled,
				Slot:   slot.Name,
				Detail: fmt.Sprintf("%d assigned, %d allowed", n, slot.Count),
			})
		} else if n < slot.Count {
			res.Violations = append(res.Violations, league.Violation{
				Kind:   league.ViolationSlotUnderfilled,
				Slot:   slot.Name,
				Detail: fmt.Sprintf("%d assigned, %d required", n, slot.Count),
			})
		}

		players := legal[slot.Name]
		if len(players) > slot.Count {
			players = players[:slot.Count]
		}
		for _, id := range players {
			res.Scoring = append(res.Scoring, league.Assignment{Slot: slot.Name, PlayerID: id})
		}
	}

	return res
}

func checkAssignment(in Input, slot league.Slot, a league.Assignment, seen map[string]bool) (league.Violation, bool) {
	v := league.Violation{Slot: slot.Name, PlayerID: a.PlayerID}
	switch {
	case seen[a.PlayerID]:
		v.Kind = league.ViolationDuplicatePlayer
		v.Detail = "player already fills another slot"
	case !in.Roster.Contains(a.PlayerID):
		v.Kind = league.ViolationNotRostered
		v.Detail = "player is not on the roster for this period"
	case !known(in.Players, a.PlayerID):
		v.Kind = league.ViolationUnknownPlayer
		v.Detail = "player does not exist"
	case in.Inactive[a.PlayerID]:
		v.Kind = league.ViolationInactive
		v.Detail = "player is on bye or inactive"
	case !slot.Accepts(in.Players[a.PlayerID].Positions):
		v.Kind = league.ViolationIneligible
		v.Detail = fmt.Sprintf("positions %v not allowed in %s", in.Players[a.PlayerID].Positions, slot.Name)
	default:
		return league.Violation{}, false
	}
	return v, true
}

func known(players map[string]league.Player, id string) bool {
	_, ok := players[id]
	return ok
}

func rosterSize(l league.League, r league.Roster) []league.Violation {
	unique := make(map[string]struct{}, len(r.Players))
	for _, e := range r.Players {
		unique[e.PlayerID] = struct{}{}
	}
	n := len(unique)

	switch {
	case l.RosterMax > 0 && n > l.RosterMax:
		return []league.Violation{{
			Kind:   league.ViolationRosterTooLarge,
			Detail: fmt.Sprintf("%d players, max %d", n, l.RosterMax),
		}}
	case n < l.RosterMin:
		return []league.Violation{{
			Kind:   league.ViolationRosterTooSmall,
			Detail: fmt.Sprintf("%d players, min %d", n, l.RosterMin),
		}}
	}
	return nil
}

// CheckLock rejects lineup changes for a finalized period or after the
// period's lock time.
func CheckLock(state league.PeriodState, at time.Time) error {
	if state.Status == league.PeriodFinal {
		return league.ErrPeriodFinalized
	}
	if state.LockAt != nil && !at.Before(*state.LockAt) {
		return fmt.Errorf("%w: period %d locked at %s", league.ErrLineupLocked,
			state.Period, state.LockAt.UTC().Format(time.RFC3339))
	}
	return nil
}
