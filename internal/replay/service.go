package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/rs/zerolog"
)

// Service coordinates job persistence, execution, and status reporting.
type Service struct {
	jobs   JobStore
	runner *Runner

	historyLimit int
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger zerolog.Logger
}

// NewService constructs a Service. Call Start to launch the worker.
func NewService(jobs JobStore, runner *Runner, logger zerolog.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		jobs:         jobs,
		runner:       runner,
		historyLimit: 10,
		pollInterval: 3 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
	}
}

// Start launches the background worker loop.
func (s *Service) Start() {
	if err := s.jobs.ResetStuckJobs(s.ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to reset jobs")
	}

	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops workers and waits for completion.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue queues a replay of a league from a period forward.
func (s *Service) Enqueue(ctx context.Context, leagueID string, fromPeriod int, reason string) (*Job, error) {
	if leagueID == "" {
		return nil, fmt.Errorf("%w: replay requires a league id", league.ErrInvalidArgument)
	}
	if fromPeriod < 1 {
		fromPeriod = 1
	}

	job := &Job{
		LeagueID:      leagueID,
		FromPeriod:    fromPeriod,
		Reason:        reason,
		Status:        JobStatusQueued,
		StatusMessage: "Queued",
	}

	stored, err := s.jobs.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", stored.JobID).
		Str("league_id", leagueID).
		Int("from_period", fromPeriod).
		Str("reason", reason).
		Msg("replay queued")
	return stored, nil
}

// GetJob returns one job.
func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// GetStatus returns the currently running job plus recent history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	active, err := s.jobs.GetActiveJob(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.jobs.ListRecentJobs(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	return &StatusSummary{
		ActiveJob: active,
		History:   history,
	}, nil
}

// ProcessNext claims and runs one queued job. It reports false when the
// queue is empty.
func (s *Service) ProcessNext(ctx context.Context) (bool, error) {
	job, err := s.jobs.MarkNextJobRunning(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	s.executeJob(ctx, job)
	return true, nil
}

func (s *Service) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		ran, err := s.ProcessNext(s.ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("claim job error")
			time.Sleep(time.Second)
			continue
		}
		if ran {
			continue
		}

		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) executeJob(ctx context.Context, job *Job) {
	reporter := &jobReporter{ctx: ctx, jobs: s.jobs, jobID: job.JobID, logger: s.logger}
	spec := Spec{LeagueID: job.LeagueID, FromPeriod: job.FromPeriod}

	res, err := s.runner.Run(ctx, spec, reporter)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.JobID).Msg("replay failed")
		_ = s.jobs.UpdateStatus(ctx, job.JobID, JobStatusFailed, "Job failed", err)
		return
	}

	msg := fmt.Sprintf("Standings through period %d", res.Through)
	_ = s.jobs.UpdateStatus(ctx, job.JobID, JobStatusCompleted, msg, nil)
	s.logger.Info().Str("job_id", job.JobID).Str("league_id", job.LeagueID).Int("through", res.Through).Msg("✓ Replay complete")
}

type jobReporter struct {
	ctx    context.Context
	jobs   JobStore
	jobID  string
	total  int
	logger zerolog.Logger
}

func (r *jobReporter) OnJobStart(spec Spec, total int) {
	r.total = total
	_ = r.jobs.UpdateProgress(r.ctx, r.jobID, 0, total, fmt.Sprintf("Replaying league %s", spec.LeagueID))
}

func (r *jobReporter) OnPeriodScored(period int, done int, total int) {
	_ = r.jobs.UpdateProgress(r.ctx, r.jobID, done, total, fmt.Sprintf("Scored period %d (%d/%d)", period, done, total))
}

func (r *jobReporter) OnJobComplete(res *Result) {
	_ = r.jobs.UpdateProgress(r.ctx, r.jobID, r.total, r.total, "Job complete")
}

func (r *jobReporter) OnJobError(err error) {
	r.logger.Warn().Err(err).Str("job_id", r.jobID).Msg("replay error")
}
