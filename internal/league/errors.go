package league

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPeriodFinalized  = errors.New("period is finalized")
	ErrLineupLocked     = errors.New("lineup is locked for period")
	ErrRuleSetExists    = errors.New("rule set version already published")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPeriodOutOfRange = errors.New("period out of range")
)

// ViolationKind classifies a lineup or roster problem.
type ViolationKind string

const (
	ViolationSlotOverfilled  ViolationKind = "slot_overfilled"
	ViolationSlotUnderfilled ViolationKind = "slot_underfilled"
	ViolationUnknownSlot     ViolationKind = "unknown_slot"
	ViolationNotRostered     ViolationKind = "player_not_rostered"
	ViolationInactive        ViolationKind = "player_inactive"
	ViolationIneligible      ViolationKind = "position_ineligible"
	ViolationDuplicatePlayer ViolationKind = "duplicate_player"
	ViolationRosterTooLarge  ViolationKind = "roster_too_large"
	ViolationRosterTooSmall  ViolationKind = "roster_too_small"
	ViolationUnknownPlayer   ViolationKind = "unknown_player"
)

// Violation is a single lineup/roster problem.
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	Slot     string        `json:"slot,omitempty"`
	PlayerID string        `json:"player_id,omitempty"`
	Detail   string        `json:"detail"`
}

func (v Violation) String() string {
	var b strings.Builder
	b.WriteString(string(v.Kind))
	if v.Slot != "" {
		b.WriteString(" slot=" + v.Slot)
	}
	if v.PlayerID != "" {
		b.WriteString(" player=" + v.PlayerID)
	}
	if v.Detail != "" {
		b.WriteString(": " + v.Detail)
	}
	return b.String()
}

// ValidationError reports lineup violations for one team-period. It never
// stops the team from scoring; illegal slots just contribute zero.
type ValidationError struct {
	TeamID     string
	Period     int
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("lineup for team %s period %d has %d violation(s): %s",
		e.TeamID, e.Period, len(e.Violations), strings.Join(parts, "; "))
}

// UnrecognizedStatType is a warning raised when a raw stat cannot be priced
// by the active rule set. The record is dropped.
type UnrecognizedStatType struct {
	PlayerID    string   `json:"player_id"`
	RawType     string   `json:"raw_type"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (e *UnrecognizedStatType) Error() string {
	msg := fmt.Sprintf("unrecognized stat type %q for player %s", e.RawType, e.PlayerID)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// SchemaViolation is a malformed raw record rejected at the ingestion
// boundary.
type SchemaViolation struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("record %d rejected: %s", e.Index, e.Reason)
}

// OutOfOrderPeriod is returned when finalizing a period while an earlier
// one is still open.
type OutOfOrderPeriod struct {
	LeagueID  string
	Period    int
	FirstOpen int
}

func (e *OutOfOrderPeriod) Error() string {
	return fmt.Sprintf("league %s: cannot finalize period %d before period %d",
		e.LeagueID, e.Period, e.FirstOpen)
}

// StaleRuleSetReference means a league points at a rule set version that was
// never published. This is a configuration error for administrators.
type StaleRuleSetReference struct {
	LeagueID  string
	RuleSetID string
	Version   int
}

func (e *StaleRuleSetReference) Error() string {
	if e.RuleSetID == "" {
		return fmt.Sprintf("league %s has no rule set bound", e.LeagueID)
	}
	return fmt.Sprintf("league %s references unpublished rule set %s v%d",
		e.LeagueID, e.RuleSetID, e.Version)
}

// UnitError is a failure scoped to one team-period.
type UnitError struct {
	TeamID string `json:"team_id"`
	Period int    `json:"period"`
	Err    error  `json:"-"`
}

func (e UnitError) Error() string {
	return fmt.Sprintf("team %s period %d: %v", e.TeamID, e.Period, e.Err)
}

func (e UnitError) Unwrap() error { return e.Err }
