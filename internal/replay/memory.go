package replay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/google/uuid"
)

// MemoryJobs is a JobStore for the in-memory backend and tests.
type MemoryJobs struct {
	mu   sync.Mutex
	jobs map[string]*Job
	seq  []string
	now  func() time.Time
}

// NewMemoryJobs creates an empty job store.
func NewMemoryJobs() *MemoryJobs {
	return &MemoryJobs{
		jobs: make(map[string]*Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryJobs) CreateJob(_ context.Context, job *Job) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := job.Copy()
	if stored.JobID == "" {
		stored.JobID = uuid.NewString()
	}
	now := m.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.jobs[stored.JobID] = stored
	m.seq = append(m.seq, stored.JobID)
	return stored.Copy(), nil
}

func (m *MemoryJobs) UpdateStatus(_ context.Context, jobID string, status JobStatus, message string, lastErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("replay job %s: %w", jobID, league.ErrNotFound)
	}
	now := m.now()
	job.Status = status
	job.StatusMessage = message
	job.LastError = ""
	if lastErr != nil {
		job.LastError = lastErr.Error()
	}
	job.UpdatedAt = now
	if status == JobStatusCompleted || status == JobStatusFailed {
		job.CompletedAt = &now
	}
	return nil
}

func (m *MemoryJobs) UpdateProgress(_ context.Context, jobID string, current, total int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("replay job %s: %w", jobID, league.ErrNotFound)
	}
	job.ProgressCurrent = current
	job.ProgressTotal = total
	job.StatusMessage = message
	job.UpdatedAt = m.now()
	return nil
}

func (m *MemoryJobs) ResetStuckJobs(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.Status == JobStatusRunning {
			job.Status = JobStatusQueued
			job.StatusMessage = "Requeued after restart"
		}
	}
	return nil
}

func (m *MemoryJobs) MarkNextJobRunning(_ context.Context) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.seq {
		job := m.jobs[id]
		if job.Status != JobStatusQueued {
			continue
		}
		now := m.now()
		job.Status = JobStatusRunning
		job.StatusMessage = "Replaying periods"
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
		job.UpdatedAt = now
		return job.Copy(), nil
	}
	return nil, nil
}

func (m *MemoryJobs) GetJob(_ context.Context, jobID string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("replay job %s: %w", jobID, league.ErrNotFound)
	}
	return job.Copy(), nil
}

func (m *MemoryJobs) GetActiveJob(_ context.Context) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.seq {
		if job := m.jobs[id]; job.Status == JobStatusRunning {
			return job.Copy(), nil
		}
	}
	return nil, nil
}

func (m *MemoryJobs) ListRecentJobs(_ context.Context, limit int) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Job, 0, len(m.seq))
	for i := len(m.seq) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.jobs[m.seq[i]].Copy())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

var (
	_ JobStore = (*MemoryJobs)(nil)
	_ JobStore = (*Repository)(nil)
)
