package replay

import (
	"context"
	"time"

	"github.com/fortuna/gridiron/internal/calculator"
	"github.com/fortuna/gridiron/internal/league"
)

// JobStatus represents the lifecycle state for a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a queued recomputation of one league from a period forward.
type Job struct {
	JobID           string     `json:"job_id"`
	LeagueID        string     `json:"league_id"`
	FromPeriod      int        `json:"from_period"`
	Reason          string     `json:"reason,omitempty"`
	Status          JobStatus  `json:"status"`
	StatusMessage   string     `json:"status_message,omitempty"`
	ProgressCurrent int        `json:"progress_current"`
	ProgressTotal   int        `json:"progress_total"`
	LastError       string     `json:"last_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Copy returns a shallow copy to prevent external mutation.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	cpy := *j
	return &cpy
}

// Spec describes the work to be performed by the runner.
type Spec struct {
	LeagueID   string
	FromPeriod int
	DryRun     bool
}

// Result is the outcome of a replay: every period's scores plus the
// standings folded over the finalized prefix.
type Result struct {
	LeagueID  string                    `json:"league_id"`
	Through   int                       `json:"through"`
	Periods   []calculator.PeriodResult `json:"periods"`
	Standings []league.StandingsEntry   `json:"standings"`
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnJobStart(spec Spec, total int)
	OnPeriodScored(period int, done int, total int)
	OnJobComplete(res *Result)
	OnJobError(err error)
}

// JobStore persists replay jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error
	UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error
	ResetStuckJobs(ctx context.Context) error
	MarkNextJobRunning(ctx context.Context) (*Job, error)
	GetJob(ctx context.Context, jobID string) (*Job, error)
	GetActiveJob(ctx context.Context) (*Job, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*Job, error)
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveJob *Job   `json:"active_job,omitempty"`
	History   []*Job `json:"recent_jobs,omitempty"`
}
