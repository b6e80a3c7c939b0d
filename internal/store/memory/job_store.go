// Package memory provides an in-memory JobStore for development and the
// standalone CLI mode.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xvc323/omnidocs/internal/crawler"
)

// JobStore keeps job metadata and cancellation flags in memory.
type JobStore struct {
	mu       sync.RWMutex
	jobs     map[string]crawler.Job
	canceled map[string]bool
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:     make(map[string]crawler.Job),
		canceled: make(map[string]bool),
	}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job crawler.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus updates status, error text and counters, stamping the
// start and finish times on the matching transitions.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status crawler.JobStatus,
	errText string,
	counters crawler.JobCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("update %s: %w", jobID, crawler.ErrJobNotFound)
	}
	job.Status = status
	job.ErrorText = errText
	job.Counters = counters
	now := time.Now().UTC()
	if status == crawler.JobStatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if isTerminal(status) && job.Finished == nil {
		job.Finished = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

// SetResult attaches the terminal result to a job.
func (s *JobStore) SetResult(_ context.Context, jobID string, result crawler.JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("set result %s: %w", jobID, crawler.ErrJobNotFound)
	}
	job.Result = &result
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (crawler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.Job{}, fmt.Errorf("get %s: %w", jobID, crawler.ErrJobNotFound)
	}
	return job, nil
}

// Cancel raises the job's cooperative cancellation flag.
func (s *JobStore) Cancel(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return fmt.Errorf("cancel %s: %w", jobID, crawler.ErrJobNotFound)
	}
	s.canceled[jobID] = true
	return nil
}

// IsCanceled reports the cancellation flag; the engine polls this at the
// top of every crawl iteration.
func (s *JobStore) IsCanceled(_ context.Context, jobID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.jobs[jobID]; !ok {
		return false, fmt.Errorf("is canceled %s: %w", jobID, crawler.ErrJobNotFound)
	}
	return s.canceled[jobID], nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status crawler.JobStatus) bool {
	switch status {
	case crawler.JobStatusSucceeded, crawler.JobStatusFailed, crawler.JobStatusCanceled:
		return true
	default:
		return false
	}
}
