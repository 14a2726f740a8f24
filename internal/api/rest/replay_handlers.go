package rest

import (
	"net/http"

	"github.com/fortuna/gridiron/internal/replay"
	"github.com/gorilla/mux"
)

// ReplayHandler proxies API calls to the replay service.
type ReplayHandler struct {
	service *replay.Service
}

// NewReplayHandler wires the REST layer to the replay service.
func NewReplayHandler(service *replay.Service) *ReplayHandler {
	return &ReplayHandler{service: service}
}

type apiReplayRequest struct {
	LeagueID   string `json:"league_id"`
	FromPeriod int    `json:"from_period"`
	Reason     string `json:"reason"`
}

// HandleReplayRequest handles POST /api/v1/replays
func (h *ReplayHandler) HandleReplayRequest(w http.ResponseWriter, r *http.Request) {
	var req apiReplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual replay"
	}
	job, err := h.service.Enqueue(r.Context(), req.LeagueID, req.FromPeriod, reason)
	if err != nil {
		respondServiceError(w, "Failed to enqueue replay job", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job": jobPayload(job),
	})
}

// HandleReplayStatus handles GET /api/v1/replays/status
func (h *ReplayHandler) HandleReplayStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

// HandleReplayJob handles GET /api/v1/replays/{jobID}
func (h *ReplayHandler) HandleReplayJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(r.Context(), mux.Vars(r)["jobID"])
	if err != nil {
		respondServiceError(w, "Failed to fetch replay job", err)
		return
	}
	respondJSON(w, http.StatusOK, jobPayload(job))
}

func buildStatusPayload(summary *replay.StatusSummary) map[string]interface{} {
	response := map[string]interface{}{
		"status":  "idle",
		"message": "No active jobs",
		"history": []map[string]interface{}{},
	}

	if summary.ActiveJob != nil {
		response["status"] = summary.ActiveJob.Status
		if summary.ActiveJob.StatusMessage != "" {
			response["message"] = summary.ActiveJob.StatusMessage
		}
		response["active_job"] = jobPayload(summary.ActiveJob)
	}

	history := make([]map[string]interface{}, 0, len(summary.History))
	for _, job := range summary.History {
		history = append(history, jobPayload(job))
	}

	response["history"] = history
	return response
}

func jobPayload(job *replay.Job) map[string]interface{} {
	if job == nil {
		return nil
	}

	payload := map[string]interface{}{
		"job_id":           job.JobID,
		"league_id":        job.LeagueID,
		"from_period":      job.FromPeriod,
		"status":           job.Status,
		"progress_current": job.ProgressCurrent,
		"progress_total":   job.ProgressTotal,
		"created_at":       job.CreatedAt,
		"updated_at":       job.UpdatedAt,
	}

	if job.Reason != "" {
		payload["reason"] = job.Reason
	}
	if job.StatusMessage != "" {
		payload["status_message"] = job.StatusMessage
	}
	if job.StartedAt != nil {
		payload["started_at"] = *job.StartedAt
	}
	if job.CompletedAt != nil {
		payload["completed_at"] = *job.CompletedAt
	}
	if job.LastError != "" {
		payload["last_error"] = job.LastError
	}

	return payload
}
