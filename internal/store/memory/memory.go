// Package memory is an in-process store.Store used by tests and by the
// service when STORAGE_BACKEND=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/normalizer"
	"github.com/fortuna/gridiron/internal/store"
	"github.com/shopspring/decimal"
)

type leagueData struct {
	league   league.League
	teams    map[string]league.Team
	rosters  map[league.RosterKey]league.Roster
	lineups  map[league.RosterKey]league.LineupSubmission
	events   map[string]league.ScoringEvent
	schedule map[int][]league.Matchup
	periods  map[int]league.PeriodState
	inactive map[int]map[string]bool
}

// Store keeps everything in maps behind a single RWMutex. Snapshot takes
// the read lock and deep-copies, so readers never see a half-applied write.
type Store struct {
	mu       sync.RWMutex
	leagues  map[string]*leagueData
	players  map[string]league.Player
	ruleSets map[league.RuleSetKey]league.RuleSet
}

var _ store.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		leagues:  make(map[string]*leagueData),
		players:  make(map[string]league.Player),
		ruleSets: make(map[league.RuleSetKey]league.RuleSet),
	}
}

func (s *Store) get(leagueID string) (*leagueData, error) {
	d, ok := s.leagues[leagueID]
	if !ok {
		return nil, fmt.Errorf("league %s: %w", leagueID, league.ErrNotFound)
	}
	return d, nil
}

// CreateLeague stores a new league.
func (s *Store) CreateLeague(_ context.Context, l league.League) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.leagues[l.ID]; exists {
		return fmt.Errorf("%w: league %s already exists", league.ErrInvalidArgument, l.ID)
	}
	s.leagues[l.ID] = &leagueData{
		league:   copyLeague(l),
		teams:    make(map[string]league.Team),
		rosters:  make(map[league.RosterKey]league.Roster),
		lineups:  make(map[league.RosterKey]league.LineupSubmission),
		events:   make(map[string]league.ScoringEvent),
		schedule: make(map[int][]league.Matchup),
		periods:  make(map[int]league.PeriodState),
		inactive: make(map[int]map[string]bool),
	}
	return nil
}

// GetLeague returns a league by id.
func (s *Store) GetLeague(_ context.Context, leagueID string) (league.League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, err := s.get(leagueID)
	if err != nil {
		return league.League{}, err
	}
	return copyLeague(d.league), nil
}

// ListLeagues returns all leagues ordered by id.
func (s *Store) ListLeagues(_ context.Context) ([]league.League, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]league.League, 0, len(s.leagues))
	for _, d := range s.leagues {
		out = append(out, copyLeague(d.league))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// BindRuleSet adds or replaces the binding starting at binding.FromPeriod.
func (s *Store) BindRuleSet(_ context.Context, leagueID string, binding league.RuleSetBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(leagueID)
	if err != nil {
		return err
	}
	if _, ok := s.ruleSets[league.RuleSetKey{ID: binding.RuleSetID, Version: binding.Version}]; !ok {
		return &league.StaleRuleSetReference{LeagueID: leagueID, RuleSetID: binding.RuleSetID, Version: binding.Version}
	}
	for p, st := range d.periods {
		if p >= binding.FromPeriod && st.Status == league.PeriodFinal {
			return fmt.Errorf("binding from period %d: period %d: %w", binding.FromPeriod, p, league.ErrPeriodFinalized)
		}
	}

	kept := d.league.RuleSets[:0:0]
	for _, b := range d.league.RuleSets {
		if b.FromPeriod != binding.FromPeriod {
			kept = append(kept, b)
		}
	}
	kept = append(kept, binding)
	sort.Slice(kept, func(i, j int) bool { return kept[i].FromPeriod < kept[j].FromPeriod })
	d.league.RuleSets = kept
	return nil
}

// UpsertTeam creates or replaces a team.
func (s *Store) UpsertTeam(_ context.Context, t league.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(t.LeagueID)
	if err != nil {
		return err
	}
	d.teams[t.ID] = t
	return nil
}

// ListTeams returns a league's teams ordered by id.
func (s *Store) ListTeams(_ context.Context, leagueID string) ([]league.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, err := s.get(leagueID)
	if err != nil {
		return nil, err
	}
	return sortedTeams(d.teams), nil
}

// UpsertPlayer creates or replaces a player.
func (s *Store) UpsertPlayer(_ context.Context, p league.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Positions = append([]league.Position(nil), p.Positions...)
	s.players[p.ID] = p
	return nil
}

// GetPlayer returns a player by id.
func (s *Store) GetPlayer(_ context.Context, playerID string) (league.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[playerID]
	if !ok {
		return league.Player{}, fmt.Errorf("player %s: %w", playerID, league.ErrNotFound)
	}
	p.Positions = append([]league.Position(nil), p.Positions...)
	return p, nil
}

// SetRoster replaces a team's roster for a period.
func (s *Store) SetRoster(_ context.Context, leagueID string, r league.Roster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(leagueID)
	if err != nil {
		return err
	}
	if _, ok := d.teams[r.TeamID]; !ok {
		return fmt.Errorf("team %s: %w", r.TeamID, league.ErrNotFound)
	}
	if d.periods[r.Period].Status == league.PeriodFinal {
		return fmt.Errorf("roster for period %d: %w", r.Period, league.ErrPeriodFinalized)
	}
	r.Players = append([]league.RosterEntry(nil), r.Players...)
	d.rosters[league.RosterKey{TeamID: r.TeamID, Period: r.Period}] = r
	return nil
}

// SaveLineup stores a lineup unless a later submission already exists.
func (s *Store) SaveLineup(_ context.Context, sub league.LineupSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(sub.LeagueID)
	if err != nil {
		return err
	}
	if _, ok := d.teams[sub.TeamID]; !ok {
		return fmt.Errorf("team %s: %w", sub.TeamID, league.ErrNotFound)
	}
	if d.periods[sub.Period].Status == league.PeriodFinal {
		return fmt.Errorf("lineup for period %d: %w", sub.Period, league.ErrPeriodFinalized)
	}
	key := league.RosterKey{TeamID: sub.TeamID, Period: sub.Period}
	if prev, ok := d.lineups[key]; ok && prev.SubmittedAt.After(sub.SubmittedAt) {
		return nil
	}
	sub.Assignments = append([]league.Assignment(nil), sub.Assignments...)
	d.lineups[key] = sub
	return nil
}

// SetSchedule replaces the matchups of a period.
func (s *Store) SetSchedule(_ context.Context, leagueID string, period int, matchups []league.Matchup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(leagueID)
	if err != nil {
		return err
	}
	if d.periods[period].Status == league.PeriodFinal {
		return fmt.Errorf("schedule for period %d: %w", period, league.ErrPeriodFinalized)
	}
	d.schedule[period] = append([]league.Matchup(nil), matchups...)
	return nil
}

// SetInactive replaces the bye/inactive set of a period.
func (s *Store) SetInactive(_ context.Context, leagueID string, period int, playerIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(leagueID)
	if err != nil {
		return err
	}
	if d.periods[period].Status == league.PeriodFinal {
		return fmt.Errorf("availability for period %d: %w", period, league.ErrPeriodFinalized)
	}
	set := make(map[string]bool, len(playerIDs))
	for _, id := range playerIDs {
		set[id] = true
	}
	d.inactive[period] = set
	return nil
}

// PublishRuleSet stores an immutable rule set version.
func (s *Store) PublishRuleSet(_ context.Context, rs league.RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ruleSets[rs.Key()]; exists {
		return fmt.Errorf("rule set %s v%d: %w", rs.ID, rs.Version, league.ErrRuleSetExists)
	}
	s.ruleSets[rs.Key()] = copyRuleSet(rs)
	return nil
}

// GetRuleSet returns a published rule set version.
func (s *Store) GetRuleSet(_ context.Context, id string, version int) (league.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, ok := s.ruleSets[league.RuleSetKey{ID: id, Version: version}]
	if !ok {
		return league.RuleSet{}, fmt.Errorf("rule set %s v%d: %w", id, version, league.ErrNotFound)
	}
	return copyRuleSet(rs), nil
}

// ListRuleSets returns every published version ordered by id and version.
func (s *Store) ListRuleSets(_ context.Context) ([]league.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]league.RuleSet, 0, len(s.ruleSets))
	for _, rs := range s.ruleSets {
		out = append(out, copyRuleSet(rs))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// AppendEvents appends events, skipping exact replays of known keys.
func (s *Store) AppendEvents(_ context.Context, events []league.ScoringEvent) (store.AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res store.AppendResult
	for _, ev := range events {
		d, err := s.get(ev.LeagueID)
		if err != nil {
			return res, err
		}
		if d.periods[ev.Period].Status == league.PeriodFinal {
			return res, fmt.Errorf("append to period %d: %w", ev.Period, league.ErrPeriodFinalized)
		}
	}

	for _, ev := range events {
		d := s.leagues[ev.LeagueID]
		prev, seen := d.events[ev.Key]
		switch {
		case !seen:
			d.events[ev.Key] = ev
			res.Appended++
		case normalizer.SamePayload(prev, ev):
			res.Duplicates++
		default:
			res.Conflicts = append(res.Conflicts, ev.Key)
		}
	}
	return res, nil
}

// GetPeriod returns the state of a period; unknown periods are open.
func (s *Store) GetPeriod(_ context.Context, leagueID string, period int) (league.PeriodState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, err := s.get(leagueID)
	if err != nil {
		return league.PeriodState{}, err
	}
	return periodState(d.periods, period), nil
}

// SetLock sets or clears the lineup lock time of a period.
func (s *Store) SetLock(_ context.Context, leagueID string, period int, lockAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(leagueID)
	if err != nil {
		return err
	}
	st := periodState(d.periods, period)
	st.LockAt = copyTime(lockAt)
	d.periods[period] = st
	return nil
}

// FinalizePeriod marks a period final when every earlier period is final.
func (s *Store) FinalizePeriod(_ context.Context, leagueID string, period int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(leagueID)
	if err != nil {
		return err
	}
	if err := d.league.CheckPeriod(period); err != nil {
		return err
	}
	if err := league.CheckFinalize(leagueID, d.periods, period); err != nil {
		return err
	}
	key, err := d.league.RuleSetKeyFor(period)
	if err != nil {
		return err
	}
	if _, ok := s.ruleSets[key]; !ok {
		return &league.StaleRuleSetReference{LeagueID: leagueID, RuleSetID: key.ID, Version: key.Version}
	}
	st := periodState(d.periods, period)
	st.Status = league.PeriodFinal
	st.FinalizedAt = copyTime(&at)
	d.periods[period] = st
	return nil
}

// ReopenPeriod moves a final period back to open.
func (s *Store) ReopenPeriod(_ context.Context, leagueID string, period int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(leagueID)
	if err != nil {
		return err
	}
	st := periodState(d.periods, period)
	if st.Status != league.PeriodFinal {
		return fmt.Errorf("%w: period %d is not final", league.ErrInvalidArgument, period)
	}
	st.Status = league.PeriodOpen
	st.FinalizedAt = nil
	d.periods[period] = st
	return nil
}

// Snapshot deep-copies the league under the read lock.
func (s *Store) Snapshot(_ context.Context, leagueID string) (*league.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, err := s.get(leagueID)
	if err != nil {
		return nil, err
	}

	snap := &league.Snapshot{
		League:   copyLeague(d.league),
		Teams:    sortedTeams(d.teams),
		Players:  make(map[string]league.Player),
		Rosters:  make(map[league.RosterKey]league.Roster, len(d.rosters)),
		Lineups:  make(map[league.RosterKey]league.LineupSubmission, len(d.lineups)),
		Events:   make(map[int][]league.ScoringEvent),
		Schedule: make(map[int][]league.Matchup, len(d.schedule)),
		Periods:  make(map[int]league.PeriodState, len(d.periods)),
		Inactive: make(map[int]map[string]bool, len(d.inactive)),
		RuleSets: make(map[league.RuleSetKey]league.RuleSet),
	}

	for k, r := range d.rosters {
		r.Players = append([]league.RosterEntry(nil), r.Players...)
		snap.Rosters[k] = r
		for _, e := range r.Players {
			if p, ok := s.players[e.PlayerID]; ok {
				p.Positions = append([]league.Position(nil), p.Positions...)
				snap.Players[p.ID] = p
			}
		}
	}
	for k, l := range d.lineups {
		l.Assignments = append([]league.Assignment(nil), l.Assignments...)
		snap.Lineups[k] = l
	}
	for _, ev := range d.events {
		snap.Events[ev.Period] = append(snap.Events[ev.Period], ev)
	}
	for _, evs := range snap.Events {
		normalizer.SortEvents(evs)
	}
	for p, m := range d.schedule {
		snap.Schedule[p] = append([]league.Matchup(nil), m...)
	}
	for p, st := range d.periods {
		st.LockAt = copyTime(st.LockAt)
		st.FinalizedAt = copyTime(st.FinalizedAt)
		snap.Periods[p] = st
	}
	for p, set := range d.inactive {
		cp := make(map[string]bool, len(set))
		for id, v := range set {
			cp[id] = v
		}
		snap.Inactive[p] = cp
	}
	for _, b := range d.league.RuleSets {
		key := league.RuleSetKey{ID: b.RuleSetID, Version: b.Version}
		if rs, ok := s.ruleSets[key]; ok {
			snap.RuleSets[key] = copyRuleSet(rs)
		}
	}
	return snap, nil
}

func periodState(periods map[int]league.PeriodState, period int) league.PeriodState {
	if st, ok := periods[period]; ok {
		return st
	}
	return league.PeriodState{Period: period, Status: league.PeriodOpen}
}

func sortedTeams(teams map[string]league.Team) []league.Team {
	out := make([]league.Team, 0, len(teams))
	for _, t := range teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyLeague(l league.League) league.League {
	l.Slots = append([]league.Slot(nil), l.Slots...)
	for i := range l.Slots {
		l.Slots[i].Allowed = append([]league.Position(nil), l.Slots[i].Allowed...)
	}
	l.RuleSets = append([]league.RuleSetBinding(nil), l.RuleSets...)
	return l
}

func copyRuleSet(rs league.RuleSet) league.RuleSet {
	points := make(map[league.StatType]decimal.Decimal, len(rs.Points))
	for k, v := range rs.Points {
		points[k] = v
	}
	rs.Points = points
	return rs
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
