package rest

import (
	"net/http"

	"github.com/fortuna/gridiron/internal/calculator"
	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/lineup"
	"github.com/fortuna/gridiron/internal/service"
	"github.com/gorilla/mux"
)

type unitErrorPayload struct {
	TeamID string `json:"team_id"`
	Period int    `json:"period"`
	Error  string `json:"error"`
}

type lineupPayload struct {
	Valid      bool                `json:"valid"`
	Violations []league.Violation  `json:"violations"`
	Scoring    []league.Assignment `json:"scoring"`
}

func newLineupPayload(res lineup.Result) lineupPayload {
	violations := res.Violations
	if violations == nil {
		violations = []league.Violation{}
	}
	return lineupPayload{Valid: res.Valid(), Violations: violations, Scoring: res.Scoring}
}

func newPeriodPayload(res calculator.PeriodResult) map[string]interface{} {
	errs := make([]unitErrorPayload, 0, len(res.Errors))
	for _, ue := range res.Errors {
		errs = append(errs, unitErrorPayload{TeamID: ue.TeamID, Period: ue.Period, Error: ue.Err.Error()})
	}
	return map[string]interface{}{
		"period": res.Period,
		"scores": res.Scores,
		"errors": errs,
	}
}

// GetPeriodScore handles GET /api/v1/leagues/{leagueID}/teams/{teamID}/periods/{period}/score.
// Lineup violations do not fail the request; they are listed on the score.
func (h *Handler) GetPeriodScore(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	score, err := h.leagues.PeriodScore(r.Context(), vars["leagueID"], vars["teamID"], period)
	if err != nil && !service.IsValidation(err) {
		respondServiceError(w, "Failed to score team", err)
		return
	}
	respondJSON(w, http.StatusOK, score)
}

// GetLeaguePeriod handles GET /api/v1/leagues/{leagueID}/periods/{period}/scores
func (h *Handler) GetLeaguePeriod(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	res, err := h.leagues.LeaguePeriod(r.Context(), mux.Vars(r)["leagueID"], period)
	if err != nil {
		respondServiceError(w, "Failed to score period", err)
		return
	}
	respondJSON(w, http.StatusOK, newPeriodPayload(res))
}

// GetStandings handles GET /api/v1/leagues/{leagueID}/standings
func (h *Handler) GetStandings(w http.ResponseWriter, r *http.Request) {
	report, err := h.leagues.Standings(r.Context(), mux.Vars(r)["leagueID"])
	if err != nil {
		respondServiceError(w, "Failed to compute standings", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// SubmitLineup handles POST /api/v1/leagues/{leagueID}/teams/{teamID}/periods/{period}/lineup.
// A lineup with violations is still stored and answered with 202 so the
// owner can correct it before the lock.
func (h *Handler) SubmitLineup(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	var req lineupRequest
	if !h.decode(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	res, err := h.leagues.SubmitLineup(r.Context(), league.LineupSubmission{
		LeagueID:    vars["leagueID"],
		TeamID:      vars["teamID"],
		Period:      period,
		Assignments: req.Assignments,
	})
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, newLineupPayload(res))
	case service.IsValidation(err):
		respondJSON(w, http.StatusAccepted, newLineupPayload(res))
	default:
		respondServiceError(w, "Failed to submit lineup", err)
	}
}

// ValidateLineup handles POST .../periods/{period}/lineup/validate
func (h *Handler) ValidateLineup(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	var req lineupRequest
	if !h.decode(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	res, err := h.leagues.ValidateLineup(r.Context(), vars["leagueID"], vars["teamID"], period, req.Assignments)
	if err != nil {
		respondServiceError(w, "Failed to validate lineup", err)
		return
	}
	respondJSON(w, http.StatusOK, newLineupPayload(res))
}

// FinalizePeriod handles POST /api/v1/leagues/{leagueID}/periods/{period}/finalize
func (h *Handler) FinalizePeriod(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	report, err := h.leagues.FinalizePeriod(r.Context(), mux.Vars(r)["leagueID"], period)
	if err != nil {
		respondServiceError(w, "Failed to finalize period", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// ReopenPeriod handles POST /api/v1/leagues/{leagueID}/periods/{period}/reopen
func (h *Handler) ReopenPeriod(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	var req reopenRequest
	if !h.decode(w, r, &req) {
		return
	}

	job, err := h.leagues.ReopenPeriod(r.Context(), mux.Vars(r)["leagueID"], period, req.Actor)
	if err != nil {
		respondServiceError(w, "Failed to reopen period", err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"period": period,
		"status": league.PeriodOpen,
		"job":    jobPayload(job),
	})
}
