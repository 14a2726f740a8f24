package calculator

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/rules"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type teamInput struct {
	TeamID string               `json:"team_id"`
	Roster []league.RosterEntry `json:"roster"`
	Lineup []league.Assignment  `json:"lineup"`
}

type periodInput struct {
	LeagueID  string                `json:"league_id"`
	Period    int                   `json:"period"`
	RuleSet   string                `json:"rule_set"`
	Slots     []league.Slot         `json:"slots"`
	Rounding  league.RoundingPolicy `json:"rounding"`
	RosterMin int                   `json:"roster_min"`
	RosterMax int                   `json:"roster_max"`
	Teams     []teamInput           `json:"teams"`
	Players   []league.Player       `json:"players"`
	Inactive  []string              `json:"inactive"`
	Events    []league.ScoringEvent `json:"events"`
	Final     bool                  `json:"final"`
}

// Fingerprint digests every input that feeds a period's scores. Two
// snapshots with the same fingerprint for a period produce identical
// LeaguePeriod results, so the digest is safe to use as a cache key.
func Fingerprint(snap *league.Snapshot, period int) (string, error) {
	if err := snap.CheckPeriod(period); err != nil {
		return "", err
	}
	rs, err := snap.RuleSetFor(period)
	if err != nil {
		return "", err
	}

	in := periodInput{
		LeagueID:  snap.League.ID,
		Period:    period,
		RuleSet:   rules.Fingerprint(rs),
		Slots:     snap.League.Slots,
		Rounding:  snap.League.Rounding,
		RosterMin: snap.League.RosterMin,
		RosterMax: snap.League.RosterMax,
		Final:     snap.PeriodStatus(period) == league.PeriodFinal,
	}

	rostered := make(map[string]bool)
	for _, teamID := range snap.TeamIDs() {
		roster, _ := snap.RosterFor(teamID, period)
		lineup, _ := snap.LineupFor(teamID, period)
		in.Teams = append(in.Teams, teamInput{
			TeamID: teamID,
			Roster: roster.Players,
			Lineup: lineup.Assignments,
		})
		for _, e := range roster.Players {
			rostered[e.PlayerID] = true
		}
	}

	for id := range rostered {
		if p, ok := snap.Players[id]; ok {
			in.Players = append(in.Players, p)
		}
	}
	sort.Slice(in.Players, func(i, j int) bool { return in.Players[i].ID < in.Players[j].ID })

	for id, out := range snap.Inactive[period] {
		if out {
			in.Inactive = append(in.Inactive, id)
		}
	}
	sort.Strings(in.Inactive)

	in.Events = append(in.Events, snap.Events[period]...)
	sort.Slice(in.Events, func(i, j int) bool { return in.Events[i].Key < in.Events[j].Key })

	data, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
