package replay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/store"
	"github.com/google/uuid"
)

const jobColumns = `job_id, league_id, from_period, reason, status, status_message,
	progress_current, progress_total, last_error,
	created_at, updated_at, started_at, completed_at`

// Repository handles persistence for replay jobs.
type Repository struct {
	db *store.Database
}

// NewRepository constructs a Repository.
func NewRepository(db *store.Database) *Repository {
	return &Repository{db: db}
}

// CreateJob stores a queued replay job.
func (r *Repository) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}

	query := `
		INSERT INTO replay_jobs (
			job_id, league_id, from_period, reason,
			status, status_message, progress_current, progress_total
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING ` + jobColumns

	row := r.db.DB().QueryRowContext(ctx, query,
		job.JobID, job.LeagueID, job.FromPeriod, job.Reason,
		string(job.Status), job.StatusMessage, job.ProgressCurrent, job.ProgressTotal,
	)

	return scanJob(row)
}

// UpdateStatus moves a job to status, recording lastErr when non-nil.
func (r *Repository) UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error {
	query := `
		UPDATE replay_jobs
		SET status = $2::varchar,
			status_message = $3,
			last_error = $4,
			updated_at = NOW(),
			completed_at = CASE WHEN $2::varchar IN ('completed','failed') THEN NOW() ELSE completed_at END
		WHERE job_id = $1
	`

	var errText sql.NullString
	if lastErr != nil {
		errText = sql.NullString{String: lastErr.Error(), Valid: true}
	}

	if _, err := r.db.DB().ExecContext(ctx, query, jobID, string(status), message, errText); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}

	return nil
}

// UpdateProgress records how many periods have been scored.
func (r *Repository) UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error {
	query := `
		UPDATE replay_jobs
		SET progress_current = $2,
			progress_total = $3,
			status_message = $4,
			updated_at = NOW()
		WHERE job_id = $1
	`

	if _, err := r.db.DB().ExecContext(ctx, query, jobID, current, total, message); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}

	return nil
}

// ResetStuckJobs requeues replays left running by a previous process.
func (r *Repository) ResetStuckJobs(ctx context.Context) error {
	_, err := r.db.DB().ExecContext(ctx, `
		UPDATE replay_jobs
		SET status = 'queued',
			status_message = 'Requeued after restart',
			updated_at = NOW()
		WHERE status = 'running'
	`)
	if err != nil {
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	return nil
}

// MarkNextJobRunning claims the oldest queued replay. Concurrent workers
// never claim the same row.
func (r *Repository) MarkNextJobRunning(ctx context.Context) (*Job, error) {
	query := `
		WITH next_job AS (
			SELECT job_id
			FROM replay_jobs
			WHERE status = 'queued'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE replay_jobs
		SET status = 'running',
			status_message = 'Replaying periods',
			started_at = COALESCE(started_at, NOW()),
			updated_at = NOW()
		FROM next_job
		WHERE replay_jobs.job_id = next_job.job_id
		RETURNING replay_jobs.job_id, replay_jobs.league_id, replay_jobs.from_period,
			replay_jobs.reason, replay_jobs.status, replay_jobs.status_message,
			replay_jobs.progress_current, replay_jobs.progress_total, replay_jobs.last_error,
			replay_jobs.created_at, replay_jobs.updated_at,
			replay_jobs.started_at, replay_jobs.completed_at
	`

	row := r.db.DB().QueryRowContext(ctx, query)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob returns one job by id.
func (r *Repository) GetJob(ctx context.Context, jobID string) (*Job, error) {
	row := r.db.DB().QueryRowContext(ctx, `SELECT `+jobColumns+` FROM replay_jobs WHERE job_id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("replay job %s: %w", jobID, league.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetActiveJob returns the running replay, or nil.
func (r *Repository) GetActiveJob(ctx context.Context) (*Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM replay_jobs
		WHERE status = 'running'
		ORDER BY started_at DESC
		LIMIT 1
	`

	row := r.db.DB().QueryRowContext(ctx, query)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return job, nil
}

// ListRecentJobs returns the most recent jobs.
func (r *Repository) ListRecentJobs(ctx context.Context, limit int) ([]*Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM replay_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func scanJob(scanner interface {
	Scan(dest ...interface{}) error
}) (*Job, error) {
	var (
		job                Job
		message, lastErr   sql.NullString
		started, completed sql.NullTime
	)
	err := scanner.Scan(
		&job.JobID,
		&job.LeagueID,
		&job.FromPeriod,
		&job.Reason,
		&job.Status,
		&message,
		&job.ProgressCurrent,
		&job.ProgressTotal,
		&lastErr,
		&job.CreatedAt,
		&job.UpdatedAt,
		&started,
		&completed,
	)
	if err != nil {
		return nil, err
	}
	job.StatusMessage = message.String
	job.LastError = lastErr.String
	if started.Valid {
		t := started.Time
		job.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		job.CompletedAt = &t
	}
	return &job, nil
}
