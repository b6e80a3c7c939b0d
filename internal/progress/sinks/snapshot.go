package sinks

import (
	"context"
	"sync"

	"github.com/xvc323/omnidocs/internal/progress"
)

// SnapshotSink keeps the event history of each job in memory. The SSE
// handler polls it for events past a cursor; the status endpoint reads the
// latest event. Safe for concurrent use.
type SnapshotSink struct {
	mu     sync.RWMutex
	events map[string][]progress.Event
}

// NewSnapshotSink returns an empty snapshot store.
func NewSnapshotSink() *SnapshotSink {
	return &SnapshotSink{events: make(map[string][]progress.Event)}
}

// Consume appends the batch to each job's history.
func (s *SnapshotSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.events[evt.JobID] = append(s.events[evt.JobID], evt)
	}
	return nil
}

// Since returns the job's events past the cursor, plus the new cursor.
func (s *SnapshotSink) Since(jobID string, cursor int) ([]progress.Event, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.events[jobID]
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(history) {
		return nil, cursor
	}
	out := append([]progress.Event(nil), history[cursor:]...)
	return out, len(history)
}

// Latest returns the most recent event for the job.
func (s *SnapshotSink) Latest(jobID string) (progress.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.events[jobID]
	if len(history) == 0 {
		return progress.Event{}, false
	}
	return history[len(history)-1], true
}

// Forget drops a job's history, used once a terminal event has been served
// and the retention window passed.
func (s *SnapshotSink) Forget(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, jobID)
}

// Close implements the Sink interface; it performs no action.
func (s *SnapshotSink) Close(context.Context) error {
	return nil
}
