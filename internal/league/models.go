package league

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Position is a player position tag (QB, RB, ...).
type Position string

const (
	PositionQB  Position = "QB"
	PositionRB  Position = "RB"
	PositionWR  Position = "WR"
	PositionTE  Position = "TE"
	PositionK   Position = "K"
	PositionDEF Position = "DEF"
)

// Cadence is how often a league scores.
type Cadence string

const (
	CadenceWeekly Cadence = "weekly"
	CadenceDaily  Cadence = "daily"
)

// Slot describes one lineup slot type, e.g. two RB slots or one FLEX slot
// accepting RB/WR/TE.
type Slot struct {
	Name    string     `json:"name"`
	Count   int        `json:"count"`
	Allowed []Position `json:"allowed"`
}

// Accepts reports whether a player with any of the given positions may
// fill this slot.
func (s Slot) Accepts(positions []Position) bool {
	for _, allowed := range s.Allowed {
		for _, p := range positions {
			if p == allowed {
				return true
			}
		}
	}
	return false
}

// RuleSetBinding ties a league to a published RuleSet version starting
// from a period.
type RuleSetBinding struct {
	RuleSetID  string `json:"rule_set_id"`
	Version    int    `json:"version"`
	FromPeriod int    `json:"from_period"`
}

// League is the top-level competitive grouping.
type League struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Cadence   Cadence          `json:"cadence"`
	Periods   int              `json:"periods"`
	RosterMin int              `json:"roster_min"`
	RosterMax int              `json:"roster_max"`
	Slots     []Slot           `json:"slots"`
	Rounding  RoundingPolicy   `json:"rounding"`
	RuleSets  []RuleSetBinding `json:"rule_sets"`
	CreatedAt time.Time        `json:"created_at"`
}

// SlotByName returns the slot definition with the given name.
func (l *League) SlotByName(name string) (Slot, bool) {
	for _, s := range l.Slots {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}

// LineupSize is the number of active slots a full lineup fills.
func (l *League) LineupSize() int {
	n := 0
	for _, s := range l.Slots {
		n += s.Count
	}
	return n
}

// BindingFor returns the RuleSet binding in effect for a period: the
// binding with the greatest FromPeriod not after the period.
func (l *League) BindingFor(period int) (RuleSetBinding, bool) {
	var (
		best  RuleSetBinding
		found bool
	)
	for _, b := range l.RuleSets {
		if b.FromPeriod > period {
			continue
		}
		if !found || b.FromPeriod > best.FromPeriod {
			best = b
			found = true
		}
	}
	return best, found
}

// RuleSetKeyFor returns the rule set version bound to a period, or a
// StaleRuleSetReference when none is bound.
func (l *League) RuleSetKeyFor(period int) (RuleSetKey, error) {
	b, ok := l.BindingFor(period)
	if !ok {
		return RuleSetKey{}, &StaleRuleSetReference{LeagueID: l.ID}
	}
	return RuleSetKey{ID: b.RuleSetID, Version: b.Version}, nil
}

// CheckPeriod reports ErrPeriodOutOfRange for periods outside the season.
func (l *League) CheckPeriod(period int) error {
	if period < 1 || (l.Periods > 0 && period > l.Periods) {
		return fmt.Errorf("%w: period %d, season has %d", ErrPeriodOutOfRange, period, l.Periods)
	}
	return nil
}

// Team belongs to exactly one league.
type Team struct {
	ID       string `json:"id"`
	LeagueID string `json:"league_id"`
	OwnerID  string `json:"owner_id"`
	Name     string `json:"name"`
}

// Player is a professional athlete that may be rostered.
type Player struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Positions []Position `json:"positions"`
	ProTeam   string     `json:"pro_team"`
}

// RosterEntry references a rostered player by id.
type RosterEntry struct {
	PlayerID string `json:"player_id"`
}

// Roster is the set of players a team controls for a period.
type Roster struct {
	TeamID  string        `json:"team_id"`
	Period  int           `json:"period"`
	Players []RosterEntry `json:"players"`
}

// Contains reports whether the player is on the roster.
func (r *Roster) Contains(playerID string) bool {
	for _, e := range r.Players {
		if e.PlayerID == playerID {
			return true
		}
	}
	return false
}

// Assignment places a player in a lineup slot.
type Assignment struct {
	Slot     string `json:"slot"`
	PlayerID string `json:"player_id"`
}

// LineupSubmission is an owner-submitted lineup for a period.
type LineupSubmission struct {
	LeagueID    string       `json:"league_id"`
	TeamID      string       `json:"team_id"`
	Period      int          `json:"period"`
	Assignments []Assignment `json:"assignments"`
	SubmittedAt time.Time    `json:"submitted_at"`
}

// ScoringEvent is a (stat-type, count) pair for a player in a period.
// Key is the producer-supplied de-duplication key.
type ScoringEvent struct {
	LeagueID string   `json:"league_id"`
	Period   int      `json:"period"`
	PlayerID string   `json:"player_id"`
	StatType StatType `json:"stat_type"`
	Count    int64    `json:"count"`
	Key      string   `json:"key"`
}

// Matchup is one scheduled meeting between two teams.
type Matchup struct {
	Period int    `json:"period"`
	HomeID string `json:"home_id"`
	AwayID string `json:"away_id"`
}

// PeriodStatus is the finalization state of a period.
type PeriodStatus string

const (
	PeriodOpen  PeriodStatus = "open"
	PeriodFinal PeriodStatus = "final"
)

// PeriodState tracks finalization and the lineup-lock deadline.
type PeriodState struct {
	Period      int          `json:"period"`
	Status      PeriodStatus `json:"status"`
	LockAt      *time.Time   `json:"lock_at,omitempty"`
	FinalizedAt *time.Time   `json:"finalized_at,omitempty"`
}

// PlayerScore is one lineup slot's contribution.
type PlayerScore struct {
	PlayerID  string          `json:"player_id"`
	Slot      string          `json:"slot"`
	Points    decimal.Decimal `json:"points"`
	Breakdown []StatLine      `json:"breakdown"`
}

// StatLine is the contribution of a single stat type.
type StatLine struct {
	StatType StatType        `json:"stat_type"`
	Count    int64           `json:"count"`
	Value    decimal.Decimal `json:"value"`
	Points   decimal.Decimal `json:"points"`
}

// PeriodScore is a derived team total for a period.
type PeriodScore struct {
	LeagueID       string          `json:"league_id"`
	TeamID         string          `json:"team_id"`
	Period         int             `json:"period"`
	RuleSetID      string          `json:"rule_set_id"`
	RuleSetVersion int             `json:"rule_set_version"`
	Total          decimal.Decimal `json:"total"`
	Players        []PlayerScore   `json:"players"`
	Violations     []Violation     `json:"violations,omitempty"`
	Final          bool            `json:"final"`
}

// StandingsEntry is one team's row in the standings table.
type StandingsEntry struct {
	Rank          int             `json:"rank"`
	TeamID        string          `json:"team_id"`
	Wins          int             `json:"wins"`
	Losses        int             `json:"losses"`
	Ties          int             `json:"ties"`
	PointsFor     decimal.Decimal `json:"points_for"`
	PointsAgainst decimal.Decimal `json:"points_against"`
}
