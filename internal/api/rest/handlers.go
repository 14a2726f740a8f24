package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fortuna/gridiron/internal/ingest"
	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/rules"
	"github.com/fortuna/gridiron/internal/service"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler contains dependencies for HTTP handlers
type Handler struct {
	leagues *service.LeagueService
	checker *ingest.Checker
	checks  map[string]func(context.Context) error
	status  map[string]func() map[string]interface{}
	logger  zerolog.Logger
}

// NewHandler creates a new handler
func NewHandler(leagues *service.LeagueService, logger zerolog.Logger) *Handler {
	return &Handler{
		leagues: leagues,
		checker: leagues.Checker(),
		logger:  logger,
	}
}

// HealthCheck handles health check requests. Any failing dependency check
// turns the answer into a 503.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			h.logger.Warn().Err(err).Str("dependency", name).Msg("health check failed")
			deps[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	respondJSON(w, code, map[string]interface{}{
		"status":       status,
		"service":      "gridiron",
		"dependencies": deps,
	})
}

// Status handles GET /api/v1/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]interface{}, len(h.status))
	for name, fn := range h.status {
		out[name] = fn()
	}
	respondJSON(w, http.StatusOK, out)
}

type teamRequest struct {
	OwnerID string `json:"owner_id" validate:"max=64"`
	Name    string `json:"name" validate:"required,max=128"`
}

type playerRequest struct {
	Name      string            `json:"name" validate:"required,max=128"`
	Positions []league.Position `json:"positions" validate:"required,min=1,dive,oneof=QB RB WR TE K DEF"`
	ProTeam   string            `json:"pro_team" validate:"max=8"`
}

type rosterRequest struct {
	PlayerIDs []string `json:"player_ids" validate:"dive,required"`
}

type matchupRequest struct {
	HomeID string `json:"home_id" validate:"required"`
	AwayID string `json:"away_id" validate:"required"`
}

type scheduleRequest struct {
	Matchups []matchupRequest `json:"matchups" validate:"dive"`
}

type inactiveRequest struct {
	PlayerIDs []string `json:"player_ids" validate:"dive,required"`
}

type lockRequest struct {
	// Null clears the lock.
	LockAt *time.Time `json:"lock_at"`
}

type lineupRequest struct {
	Assignments []league.Assignment `json:"assignments"`
}

type bindRequest struct {
	RuleSetID  string `json:"rule_set_id" validate:"required,max=64"`
	Version    int    `json:"version" validate:"required,gt=0"`
	FromPeriod int    `json:"from_period" validate:"gte=0"`
}

type reopenRequest struct {
	Actor string `json:"actor" validate:"required,max=64"`
}

// CreateLeague handles POST /api/v1/leagues
func (h *Handler) CreateLeague(w http.ResponseWriter, r *http.Request) {
	var l league.League
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := h.leagues.CreateLeague(r.Context(), l)
	if err != nil {
		respondServiceError(w, "Failed to create league", err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// ListLeagues handles GET /api/v1/leagues
func (h *Handler) ListLeagues(w http.ResponseWriter, r *http.Request) {
	leagues, err := h.leagues.ListLeagues(r.Context())
	if err != nil {
		respondServiceError(w, "Failed to fetch leagues", err)
		return
	}
	respondJSON(w, http.StatusOK, leagues)
}

// GetLeague handles GET /api/v1/leagues/{leagueID}
func (h *Handler) GetLeague(w http.ResponseWriter, r *http.Request) {
	l, err := h.leagues.GetLeague(r.Context(), mux.Vars(r)["leagueID"])
	if err != nil {
		respondServiceError(w, "Failed to fetch league", err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

// ListTeams handles GET /api/v1/leagues/{leagueID}/teams
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.leagues.ListTeams(r.Context(), mux.Vars(r)["leagueID"])
	if err != nil {
		respondServiceError(w, "Failed to fetch teams", err)
		return
	}
	respondJSON(w, http.StatusOK, teams)
}

// UpsertTeam handles PUT /api/v1/leagues/{leagueID}/teams/{teamID}
func (h *Handler) UpsertTeam(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if !h.decode(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	team := league.Team{ID: vars["teamID"], LeagueID: vars["leagueID"], OwnerID: req.OwnerID, Name: req.Name}
	if err := h.leagues.UpsertTeam(r.Context(), team); err != nil {
		respondServiceError(w, "Failed to save team", err)
		return
	}
	respondJSON(w, http.StatusOK, team)
}

// UpsertPlayer handles PUT /api/v1/players/{playerID}
func (h *Handler) UpsertPlayer(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !h.decode(w, r, &req) {
		return
	}
	p := league.Player{ID: mux.Vars(r)["playerID"], Name: req.Name, Positions: req.Positions, ProTeam: req.ProTeam}
	if err := h.leagues.UpsertPlayer(r.Context(), p); err != nil {
		respondServiceError(w, "Failed to save player", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// GetPlayer handles GET /api/v1/players/{playerID}
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := h.leagues.GetPlayer(r.Context(), mux.Vars(r)["playerID"])
	if err != nil {
		respondServiceError(w, "Failed to fetch player", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// SetRoster handles PUT /api/v1/leagues/{leagueID}/teams/{teamID}/periods/{period}/roster
func (h *Handler) SetRoster(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	var req rosterRequest
	if !h.decode(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	roster := league.Roster{TeamID: vars["teamID"], Period: period}
	for _, id := range req.PlayerIDs {
		roster.Players = append(roster.Players, league.RosterEntry{PlayerID: id})
	}
	if err := h.leagues.SetRoster(r.Context(), vars["leagueID"], roster); err != nil {
		respondServiceError(w, "Failed to save roster", err)
		return
	}
	respondJSON(w, http.StatusOK, roster)
}

// GetPeriod handles GET /api/v1/leagues/{leagueID}/periods/{period}
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	state, err := h.leagues.GetPeriod(r.Context(), mux.Vars(r)["leagueID"], period)
	if err != nil {
		respondServiceError(w, "Failed to fetch period", err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// SetSchedule handles PUT /api/v1/leagues/{leagueID}/periods/{period}/schedule
func (h *Handler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !h.decode(w, r, &req) {
		return
	}

	matchups := make([]league.Matchup, 0, len(req.Matchups))
	for _, m := range req.Matchups {
		matchups = append(matchups, league.Matchup{Period: period, HomeID: m.HomeID, AwayID: m.AwayID})
	}
	if err := h.leagues.SetSchedule(r.Context(), mux.Vars(r)["leagueID"], period, matchups); err != nil {
		respondServiceError(w, "Failed to save schedule", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"period": period, "matchups": matchups})
}

// SetInactive handles PUT /api/v1/leagues/{leagueID}/periods/{period}/inactive
func (h *Handler) SetInactive(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	var req inactiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.leagues.SetInactive(r.Context(), mux.Vars(r)["leagueID"], period, req.PlayerIDs); err != nil {
		respondServiceError(w, "Failed to save availability", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"period": period, "player_ids": req.PlayerIDs})
}

// SetLock handles PUT /api/v1/leagues/{leagueID}/periods/{period}/lock
func (h *Handler) SetLock(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	var req lockRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.leagues.SetLock(r.Context(), mux.Vars(r)["leagueID"], period, req.LockAt); err != nil {
		respondServiceError(w, "Failed to set lock", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"period": period, "lock_at": req.LockAt})
}

// PublishRuleSet handles POST /api/v1/rule-sets
func (h *Handler) PublishRuleSet(w http.ResponseWriter, r *http.Request) {
	var doc rules.Document
	if !h.decode(w, r, &doc) {
		return
	}
	rs, err := h.leagues.PublishRuleSetDocument(r.Context(), doc)
	if err != nil {
		respondServiceError(w, "Failed to publish rule set", err)
		return
	}
	respondJSON(w, http.StatusCreated, rs)
}

// ListRuleSets handles GET /api/v1/rule-sets
func (h *Handler) ListRuleSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.leagues.ListRuleSets(r.Context())
	if err != nil {
		respondServiceError(w, "Failed to fetch rule sets", err)
		return
	}
	respondJSON(w, http.StatusOK, sets)
}

// GetRuleSet handles GET /api/v1/rule-sets/{ruleSetID}/versions/{version}
func (h *Handler) GetRuleSet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	version, err := strconv.Atoi(vars["version"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid version", err)
		return
	}
	rs, err := h.leagues.GetRuleSet(r.Context(), vars["ruleSetID"], version)
	if err != nil {
		respondServiceError(w, "Failed to fetch rule set", err)
		return
	}
	respondJSON(w, http.StatusOK, rs)
}

// DiffRuleSets handles GET /api/v1/rule-sets/{ruleSetID}/diff?from=1&to=2
func (h *Handler) DiffRuleSets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := strconv.Atoi(q.Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid from version", err)
		return
	}
	to, err := strconv.Atoi(q.Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid to version", err)
		return
	}
	changes, err := h.leagues.DiffRuleSets(r.Context(), mux.Vars(r)["ruleSetID"], from, to)
	if err != nil {
		respondServiceError(w, "Failed to diff rule sets", err)
		return
	}
	if changes == nil {
		changes = []rules.Change{}
	}
	respondJSON(w, http.StatusOK, changes)
}

// BindRuleSet handles POST /api/v1/leagues/{leagueID}/rule-set
func (h *Handler) BindRuleSet(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if !h.decode(w, r, &req) {
		return
	}
	binding, err := h.leagues.BindRuleSet(r.Context(), mux.Vars(r)["leagueID"], req.RuleSetID, req.Version, req.FromPeriod)
	if err != nil {
		respondServiceError(w, "Failed to bind rule set", err)
		return
	}
	respondJSON(w, http.StatusOK, binding)
}

// IngestStats handles POST /api/v1/stats. The body is an array of raw
// records; per-record problems are reported in the body, never as a
// request failure.
func (h *Handler) IngestStats(w http.ResponseWriter, r *http.Request) {
	var records []ingest.RawStatRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	report := h.leagues.Ingest(r.Context(), records)
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.checker.Struct(r.Context(), dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

func periodParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	period, err := strconv.Atoi(mux.Vars(r)["period"])
	if err != nil || period < 1 {
		respondError(w, http.StatusBadRequest, "Invalid period", err)
		return 0, false
	}
	return period, true
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

// respondServiceError maps the league error taxonomy to a status code.
func respondServiceError(w http.ResponseWriter, message string, err error) {
	respondError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	var (
		verr   *league.ValidationError
		schema *league.SchemaViolation
		order  *league.OutOfOrderPeriod
		stale  *league.StaleRuleSetReference
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &schema),
		errors.Is(err, league.ErrInvalidArgument),
		errors.Is(err, league.ErrPeriodOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, league.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &order),
		errors.As(err, &stale),
		errors.Is(err, league.ErrPeriodFinalized),
		errors.Is(err, league.ErrLineupLocked),
		errors.Is(err, league.ErrRuleSetExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
