package testutil

import (
	"fmt"

	"github.com/fortuna/gridiron/internal/league"
)

// Season builds a league with the given number of teams (t01, t02, ...),
// each rostering a QB, RB and WR, paired off every period in a rotating
// schedule. Every player gets events in every period, varied by team and
// period so totals differ. No period is finalized.
func Season(leagueID string, teams, periods int) *league.Snapshot {
	s := NewSnapshot(NewLeague(leagueID, periods), BasicRuleSet())

	ids := make([]string, teams)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%02d", i+1)
		AddTeam(s, ids[i],
			Player(ids[i]+"-qb", league.PositionQB),
			Player(ids[i]+"-rb", league.PositionRB),
			Player(ids[i]+"-wr", league.PositionWR),
		)
	}

	for p := 1; p <= periods; p++ {
		for i, id := range ids {
			AddEvent(s, p, id+"-qb", league.StatTouchdown, int64((i+p)%4))
			AddEvent(s, p, id+"-wr", league.StatReception, int64((i*3+p*5)%9))
			AddEvent(s, p, id+"-rb", league.StatTouchdown, int64((i*p)%3))
		}

		// Circle method: the first team stays put, the rest rotate.
		order := append([]string{ids[0]}, rotate(ids[1:], p-1)...)
		for i := 0; i < len(order)/2; i++ {
			AddMatchup(s, p, order[i], order[len(order)-1-i])
		}
	}
	return s
}

func rotate(ids []string, n int) []string {
	if len(ids) == 0 {
		return nil
	}
	n %= len(ids)
	out := make([]string, 0, len(ids))
	out = append(out, ids[len(ids)-n:]...)
	return append(out, ids[:len(ids)-n]...)
}
