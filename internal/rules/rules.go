// Package rules builds and checks scoring rule sets.
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/shopspring/decimal"
)

// Document is the declarative form of a rule set as submitted by an
// administrator: stat type name to point value, values as decimal strings
// ("6", "0.04", "-2").
type Document struct {
	ID      string            `json:"id" validate:"required,max=64"`
	Version int               `json:"version" validate:"required,gt=0"`
	Points  map[string]string `json:"points" validate:"required,min=1"`
}

// Build parses a document into a RuleSet.
func Build(doc Document, publishedAt time.Time) (league.RuleSet, error) {
	if strings.TrimSpace(doc.ID) == "" {
		return league.RuleSet{}, fmt.Errorf("%w: rule set id is required", league.ErrInvalidArgument)
	}
	if doc.Version <= 0 {
		return league.RuleSet{}, fmt.Errorf("%w: rule set version must be positive", league.ErrInvalidArgument)
	}

	points := make(map[league.StatType]decimal.Decimal, len(doc.Points))
	for name, raw := range doc.Points {
		st, ok := league.ParseStatType(name)
		if !ok {
			return league.RuleSet{}, fmt.Errorf("%w: unknown stat type %q", league.ErrInvalidArgument, name)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return league.RuleSet{}, fmt.Errorf("%w: value for %s: %v", league.ErrInvalidArgument, name, err)
		}
		points[st] = v
	}

	rs := league.RuleSet{
		ID:          doc.ID,
		Version:     doc.Version,
		Points:      points,
		PublishedAt: publishedAt.UTC(),
	}
	return rs, Validate(rs)
}

// Validate checks that a rule set is publishable.
func Validate(rs league.RuleSet) error {
	if rs.ID == "" || rs.Version <= 0 {
		return fmt.Errorf("%w: rule set needs id and positive version", league.ErrInvalidArgument)
	}
	if len(rs.Points) == 0 {
		return fmt.Errorf("%w: rule set %s v%d prices no stats", league.ErrInvalidArgument, rs.ID, rs.Version)
	}
	for st := range rs.Points {
		if !st.Valid() {
			return fmt.Errorf("%w: unknown stat type %q", league.ErrInvalidArgument, st)
		}
	}
	return nil
}

// Price returns count × value for a stat type. ok is false when the rule set
// does not price the stat.
func Price(rs league.RuleSet, st league.StatType, count int64) (points decimal.Decimal, ok bool) {
	v, ok := rs.Value(st)
	if !ok {
		return decimal.Zero, false
	}
	return v.Mul(decimal.NewFromInt(count)), true
}

// Fingerprint returns a stable digest of the rule set's identity and
// values. Two rule sets with equal fingerprints score identically.
func Fingerprint(rs league.RuleSet) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00", rs.ID, rs.Version)
	for _, st := range sortedStats(rs) {
		fmt.Fprintf(h, "%s=%s\x00", st, rs.Points[st].String())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Change describes a value that differs between two rule set versions.
type Change struct {
	StatType league.StatType  `json:"stat_type"`
	From     *decimal.Decimal `json:"from,omitempty"`
	To       *decimal.Decimal `json:"to,omitempty"`
}

// Diff lists stat values added, removed or changed from a to b.
func Diff(a, b league.RuleSet) []Change {
	seen := make(map[league.StatType]struct{})
	var changes []Change
	for _, st := range sortedStats(a) {
		seen[st] = struct{}{}
		av := a.Points[st]
		bv, ok := b.Points[st]
		switch {
		case !ok:
			changes = append(changes, Change{StatType: st, From: &av})
		case !av.Equal(bv):
			changes = append(changes, Change{StatType: st, From: &av, To: &bv})
		}
	}
	for _, st := range sortedStats(b) {
		if _, ok := seen[st]; ok {
			continue
		}
		bv := b.Points[st]
		changes = append(changes, Change{StatType: st, To: &bv})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].StatType < changes[j].StatType })
	return changes
}

// StandardPPR is the default full-PPR rule set used to seed new leagues.
func StandardPPR(id string, version int) league.RuleSet {
	d := decimal.RequireFromString
	return league.RuleSet{
		ID:      id,
		Version: version,
		Points: map[league.StatType]decimal.Decimal{
			league.StatReception:      d("1"),
			league.StatPassYards:      d("0.04"),
			league.StatPassTouchdown:  d("4"),
			league.StatInterception:   d("-2"),
			league.StatRushYards:      d("0.1"),
			league.StatRushTouchdown:  d("6"),
			league.StatRecYards:       d("0.1"),
			league.StatRecTouchdown:   d("6"),
			league.StatFumbleLost:     d("-2"),
			league.StatTwoPoint:       d("2"),
			league.StatFieldGoalMade:  d("3"),
			league.StatFieldGoalMiss:  d("-1"),
			league.StatExtraPointMade: d("1"),
			league.StatSack:           d("1"),
			league.StatDefInt:         d("2"),
			league.StatFumbleRecovery: d("2"),
			league.StatDefTouchdown:   d("6"),
			league.StatSafety:         d("2"),
		},
	}
}

func sortedStats(rs league.RuleSet) []league.StatType {
	out := make([]league.StatType, 0, len(rs.Points))
	for st := range rs.Points {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
