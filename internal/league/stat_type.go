package league

import "sort"

// StatType is the closed vocabulary of scoring events. Anything outside it is
// rejected or dropped before it reaches scoring.
type StatType string

const (
	StatTouchdown      StatType = "touchdown"
	StatReception      StatType = "reception"
	StatPassYards      StatType = "pass_yd"
	StatPassTouchdown  StatType = "pass_td"
	StatInterception   StatType = "pass_int"
	StatRushYards      StatType = "rush_yd"
	StatRushTouchdown  StatType = "rush_td"
	StatRecYards       StatType = "rec_yd"
	StatRecTouchdown   StatType = "rec_td"
	StatFumbleLost     StatType = "fumble_lost"
	StatTwoPoint       StatType = "two_pt"
	StatFieldGoalMade  StatType = "fg_made"
	StatFieldGoalMiss  StatType = "fg_miss"
	StatExtraPointMade StatType = "xp_made"
	StatSack           StatType = "def_sack"
	StatDefInt         StatType = "def_int"
	StatFumbleRecovery StatType = "def_fum_rec"
	StatDefTouchdown   StatType = "def_td"
	StatSafety         StatType = "def_safety"
)

var knownStatTypes = map[StatType]struct{}{
	StatTouchdown:      {},
	StatReception:      {},
	StatPassYards:      {},
	StatPassTouchdown:  {},
	StatInterception:   {},
	StatRushYards:      {},
	StatRushTouchdown:  {},
	StatRecYards:       {},
	StatRecTouchdown:   {},
	StatFumbleLost:     {},
	StatTwoPoint:       {},
	StatFieldGoalMade:  {},
	StatFieldGoalMiss:  {},
	StatExtraPointMade: {},
	StatSack:           {},
	StatDefInt:         {},
	StatFumbleRecovery: {},
	StatDefTouchdown:   {},
	StatSafety:         {},
}

// Valid reports whether s is part of the vocabulary.
func (s StatType) Valid() bool {
	_, ok := knownStatTypes[s]
	return ok
}

// ParseStatType returns the StatType for a canonical name.
func ParseStatType(name string) (StatType, bool) {
	st := StatType(name)
	return st, st.Valid()
}

// StatTypes returns the vocabulary in sorted order.
func StatTypes() []StatType {
	out := make([]StatType, 0, len(knownStatTypes))
	for st := range knownStatTypes {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
