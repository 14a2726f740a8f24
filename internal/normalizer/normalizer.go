// Package normalizer turns raw provider stat records into scoring events.
package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	maxSuggestions      = 3
	similarityThreshold = 0.6
)

// Record is a raw per-player stat for one period, already past schema
// validation.
type Record struct {
	PlayerID string
	Stat     string
	Count    int64
	Key      string
}

// Result is the output of a normalization pass.
type Result struct {
	Events    []league.ScoringEvent
	Warnings  []*league.UnrecognizedStatType
	Conflicts []string
}

// Normalizer resolves provider stat names through an alias table.
type Normalizer struct {
	aliases map[string]league.StatType
	names   []string
}

// New creates a Normalizer with DefaultAliases plus any extra aliases.
// Extra aliases override defaults.
func New(extra map[string]league.StatType) *Normalizer {
	aliases := make(map[string]league.StatType, len(DefaultAliases)+len(extra))
	for k, v := range DefaultAliases {
		aliases[canonicalName(k)] = v
	}
	for k, v := range extra {
		aliases[canonicalName(k)] = v
	}

	names := make([]string, 0, len(aliases)+len(league.StatTypes()))
	for k := range aliases {
		names = append(names, k)
	}
	for _, st := range league.StatTypes() {
		if _, ok := aliases[string(st)]; !ok {
			names = append(names, string(st))
		}
	}
	sort.Strings(names)

	return &Normalizer{aliases: aliases, names: names}
}

// Resolve maps a provider stat name to a StatType.
func (n *Normalizer) Resolve(raw string) (league.StatType, bool) {
	name := canonicalName(raw)
	if st, ok := league.ParseStatType(name); ok {
		return st, true
	}
	st, ok := n.aliases[name]
	return st, ok
}

// Normalize converts records for one league-period into scoring events
// priced by rs. Unknown or unpriced stats are dropped with a warning.
// Records sharing a key collapse to one event; when their payloads differ the
// smallest payload wins and the key is reported in Conflicts. The output is
// sorted by (player, stat type, key) and does not depend on input order.
func (n *Normalizer) Normalize(leagueID string, period int, rs league.RuleSet, records []Record) Result {
	var res Result
	byKey := make(map[string]league.ScoringEvent, len(records))
	conflicted := make(map[string]bool)

	for _, r := range records {
		st, ok := n.Resolve(r.Stat)
		if !ok {
			res.Warnings = append(res.Warnings, &league.UnrecognizedStatType{
				PlayerID:    r.PlayerID,
				RawType:     r.Stat,
				Suggestions: n.Suggest(r.Stat),
			})
			continue
		}
		if !rs.Prices(st) {
			res.Warnings = append(res.Warnings, &league.UnrecognizedStatType{
				PlayerID: r.PlayerID,
				RawType:  r.Stat,
			})
			continue
		}

		ev := league.ScoringEvent{
			LeagueID: leagueID,
			Period:   period,
			PlayerID: r.PlayerID,
			StatType: st,
			Count:    r.Count,
			Key:      r.Key,
		}
		if ev.Key == "" {
			ev.Key = DeriveKey(ev)
		}

		prev, seen := byKey[ev.Key]
		switch {
		case !seen:
			byKey[ev.Key] = ev
		case SamePayload(prev, ev):
		default:
			conflicted[ev.Key] = true
			if lessPayload(ev, prev) {
				byKey[ev.Key] = ev
			}
		}
	}

	res.Events = make([]league.ScoringEvent, 0, len(byKey))
	for _, ev := range byKey {
		res.Events = append(res.Events, ev)
	}
	SortEvents(res.Events)

	for k := range conflicted {
		res.Conflicts = append(res.Conflicts, k)
	}
	sort.Strings(res.Conflicts)

	sort.SliceStable(res.Warnings, func(i, j int) bool {
		a, b := res.Warnings[i], res.Warnings[j]
		if a.PlayerID != b.PlayerID {
			return a.PlayerID < b.PlayerID
		}
		return a.RawType < b.RawType
	})
	return res
}

// Suggest returns up to three known stat names close to raw, best first.
func (n *Normalizer) Suggest(raw string) []string {
	name := canonicalName(raw)
	if name == "" {
		return nil
	}

	type candidate struct {
		stat     string
		distance int
	}
	best := make(map[string]int)

	for _, rank := range fuzzy.RankFindNormalizedFold(name, n.names) {
		st := n.statFor(rank.Target)
		if d, ok := best[st]; !ok || rank.Distance < d {
			best[st] = rank.Distance
		}
	}
	for _, target := range n.names {
		distance := fuzzy.LevenshteinDistance(name, target)
		maxLen := float64(max(len(name), len(target)))
		similarity := 1 - float64(distance)/maxLen
		if similarity < similarityThreshold {
			continue
		}
		st := n.statFor(target)
		if d, ok := best[st]; !ok || distance < d {
			best[st] = distance
		}
	}

	candidates := make([]candidate, 0, len(best))
	for st, d := range best {
		candidates = append(candidates, candidate{stat: st, distance: d})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].stat < candidates[j].stat
	})

	var out []string
	for _, c := range candidates {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, c.stat)
	}
	return out
}

func (n *Normalizer) statFor(name string) string {
	if st, ok := n.aliases[name]; ok {
		return string(st)
	}
	return name
}

// DeriveKey builds a content key for events that arrive without one.
func DeriveKey(ev league.ScoringEvent) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%s\x00%s\x00%d",
		ev.LeagueID, ev.Period, ev.PlayerID, ev.StatType, ev.Count)))
	return "auto:" + hex.EncodeToString(sum[:8])
}

// SamePayload reports whether two events with the same key carry the same
// data.
func SamePayload(a, b league.ScoringEvent) bool {
	return a.LeagueID == b.LeagueID &&
		a.Period == b.Period &&
		a.PlayerID == b.PlayerID &&
		a.StatType == b.StatType &&
		a.Count == b.Count
}

func lessPayload(a, b league.ScoringEvent) bool {
	if a.PlayerID != b.PlayerID {
		return a.PlayerID < b.PlayerID
	}
	if a.StatType != b.StatType {
		return a.StatType < b.StatType
	}
	return a.Count < b.Count
}

// SortEvents orders events by (player, stat type, key).
func SortEvents(events []league.ScoringEvent) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.PlayerID != b.PlayerID {
			return a.PlayerID < b.PlayerID
		}
		if a.StatType != b.StatType {
			return a.StatType < b.StatType
		}
		return a.Key < b.Key
	})
}
