package league

import "sort"

// Snapshot is an immutable, consistent view of everything needed to score a
// league. Stores hand out deep copies; nothing downstream mutates them.
type Snapshot struct {
	League   League
	Teams    []Team
	Players  map[string]Player
	Rosters  map[RosterKey]Roster
	Lineups  map[RosterKey]LineupSubmission
	Events   map[int][]ScoringEvent
	Schedule map[int][]Matchup
	Periods  map[int]PeriodState
	Inactive map[int]map[string]bool
	RuleSets map[RuleSetKey]RuleSet
}

// RosterKey identifies a team's roster or lineup for a period.
type RosterKey struct {
	TeamID string
	Period int
}

// RuleSetKey identifies a published rule set version.
type RuleSetKey struct {
	ID      string
	Version int
}

// PeriodStatus returns the status of a period; unknown periods are open.
func (s *Snapshot) PeriodStatus(period int) PeriodStatus {
	if st, ok := s.Periods[period]; ok && st.Status == PeriodFinal {
		return PeriodFinal
	}
	return PeriodOpen
}

// FinalizedPrefix returns the highest k such that periods 1..k are all
// final. Standings only ever fold this prefix.
func (s *Snapshot) FinalizedPrefix() int {
	return FinalizedPrefix(s.Periods)
}

// TeamIDs returns team ids in ascending order.
func (s *Snapshot) TeamIDs() []string {
	ids := make([]string, 0, len(s.Teams))
	for _, t := range s.Teams {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids
}

// RosterFor returns the team's roster in effect for a period: the latest
// roster recorded at or before it.
func (s *Snapshot) RosterFor(teamID string, period int) (Roster, bool) {
	for p := period; p >= 1; p-- {
		if r, ok := s.Rosters[RosterKey{TeamID: teamID, Period: p}]; ok {
			return r, true
		}
	}
	return Roster{TeamID: teamID, Period: period}, false
}

// LineupFor returns the lineup in effect for a period. A lineup carries
// forward until the owner submits a new one.
func (s *Snapshot) LineupFor(teamID string, period int) (LineupSubmission, bool) {
	for p := period; p >= 1; p-- {
		if l, ok := s.Lineups[RosterKey{TeamID: teamID, Period: p}]; ok {
			return l, true
		}
	}
	return LineupSubmission{LeagueID: s.League.ID, TeamID: teamID, Period: period}, false
}

// CheckPeriod reports ErrPeriodOutOfRange for periods outside the season.
func (s *Snapshot) CheckPeriod(period int) error {
	return s.League.CheckPeriod(period)
}

// RuleSetFor resolves the rule set bound to a period.
func (s *Snapshot) RuleSetFor(period int) (RuleSet, error) {
	key, err := s.League.RuleSetKeyFor(period)
	if err != nil {
		return RuleSet{}, err
	}
	rs, ok := s.RuleSets[key]
	if !ok {
		return RuleSet{}, &StaleRuleSetReference{
			LeagueID:  s.League.ID,
			RuleSetID: key.ID,
			Version:   key.Version,
		}
	}
	return rs, nil
}

// FinalizedPrefix returns the length of the contiguous run of final periods
// starting at period 1.
func FinalizedPrefix(periods map[int]PeriodState) int {
	k := 0
	for {
		st, ok := periods[k+1]
		if !ok || st.Status != PeriodFinal {
			return k
		}
		k++
	}
}

// CheckFinalize enforces in-order finalization: every period before the
// target must already be final.
func CheckFinalize(leagueID string, periods map[int]PeriodState, period int) error {
	if st, ok := periods[period]; ok && st.Status == PeriodFinal {
		return ErrPeriodFinalized
	}
	for p := 1; p < period; p++ {
		st, ok := periods[p]
		if !ok || st.Status != PeriodFinal {
			return &OutOfOrderPeriod{LeagueID: leagueID, Period: period, FirstOpen: p}
		}
	}
	return nil
}
