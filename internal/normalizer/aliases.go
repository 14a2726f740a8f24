package normalizer

import (
	"strings"

	"github.com/fortuna/gridiron/internal/league"
)

// DefaultAliases maps provider stat names to the scoring vocabulary. Keys are
// stored in canonical form (see canonicalName).
var DefaultAliases = map[string]league.StatType{
	"td":                      league.StatTouchdown,
	"tds":                     league.StatTouchdown,
	"touchdowns":              league.StatTouchdown,
	"rec":                     league.StatReception,
	"receptions":              league.StatReception,
	"catches":                 league.StatReception,
	"passing_yards":           league.StatPassYards,
	"pass_yds":                league.StatPassYards,
	"passyds":                 league.StatPassYards,
	"passing_touchdowns":      league.StatPassTouchdown,
	"passing_tds":             league.StatPassTouchdown,
	"passtd":                  league.StatPassTouchdown,
	"interceptions":           league.StatInterception,
	"int":                     league.StatInterception,
	"ints_thrown":             league.StatInterception,
	"rushing_yards":           league.StatRushYards,
	"rush_yds":                league.StatRushYards,
	"rushyds":                 league.StatRushYards,
	"rushing_touchdowns":      league.StatRushTouchdown,
	"rushing_tds":             league.StatRushTouchdown,
	"receiving_yards":         league.StatRecYards,
	"rec_yds":                 league.StatRecYards,
	"recyds":                  league.StatRecYards,
	"receiving_tds":           league.StatRecTouchdown,
	"receiving_touchdowns":    league.StatRecTouchdown,
	"fumbles_lost":            league.StatFumbleLost,
	"fum_lost":                league.StatFumbleLost,
	"two_point_conversions":   league.StatTwoPoint,
	"2pt":                     league.StatTwoPoint,
	"field_goals_made":        league.StatFieldGoalMade,
	"fgm":                     league.StatFieldGoalMade,
	"field_goals_missed":      league.StatFieldGoalMiss,
	"fg_missed":               league.StatFieldGoalMiss,
	"extra_points_made":       league.StatExtraPointMade,
	"xpm":                     league.StatExtraPointMade,
	"pat":                     league.StatExtraPointMade,
	"sacks":                   league.StatSack,
	"sack":                    league.StatSack,
	"defensive_interceptions": league.StatDefInt,
	"fumble_recoveries":       league.StatFumbleRecovery,
	"fum_rec":                 league.StatFumbleRecovery,
	"defensive_touchdowns":    league.StatDefTouchdown,
	"safeties":                league.StatSafety,
	"safety":                  league.StatSafety,
}

// canonicalName folds a provider stat name: lower case, trimmed, with
// spaces, dashes and dots collapsed to underscores.
func canonicalName(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}
