package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xvc323/omnidocs/internal/crawler"
)

type recordEmitter struct {
	events []Event
}

func (r *recordEmitter) Emit(evt Event) {
	r.events = append(r.events, evt)
}

func (r *recordEmitter) states() []State {
	out := make([]State, len(r.events))
	for i, e := range r.events {
		out[i] = e.State
	}
	return out
}

func TestReporterHappyPath(t *testing.T) {
	rec := &recordEmitter{}
	r := NewReporter("job-1", rec)
	r.Started("queued to worker")
	r.Progress("fetching", "https://d.example.com/a", 1, 10, 750*time.Millisecond)
	r.Progress("fetching", "https://d.example.com/b", 2, 10, 750*time.Millisecond)
	r.Success(crawler.JobResult{JobID: "job-1", PagesCrawled: 2})

	require.Equal(t, []State{StatePending, StateStarted, StateProgress, StateProgress, StateSuccess}, rec.states())
	require.Equal(t, "job-1", rec.events[0].JobID)
	require.NotNil(t, rec.events[4].Payload.Result)
	require.Equal(t, 2, rec.events[4].Payload.Result.PagesCrawled)
}

func TestReporterDeduplicatesIdenticalProgress(t *testing.T) {
	rec := &recordEmitter{}
	r := NewReporter("job-1", rec)
	r.Started("")
	for i := 0; i < 3; i++ {
		r.Progress("fetching", "https://d.example.com/a", 1, 10, time.Second)
	}
	r.Progress("fetching", "https://d.example.com/a", 2, 10, time.Second)

	require.Equal(t, []State{StatePending, StateStarted, StateProgress, StateProgress}, rec.states())
}

func TestReporterTerminalEmittedOnce(t *testing.T) {
	rec := &recordEmitter{}
	r := NewReporter("job-1", rec)
	r.Started("")
	r.Failure("seed unreachable")
	r.Failure("seed unreachable again")
	r.Success(crawler.JobResult{})
	r.Progress("late", "", 0, 0, 0)

	states := rec.states()
	require.Equal(t, []State{StatePending, StateStarted, StateFailure}, states)
	require.Equal(t, "seed unreachable", rec.events[2].Payload.Error)
}

func TestReporterForwardOnly(t *testing.T) {
	rec := &recordEmitter{}
	r := NewReporter("job-1", rec)
	r.Started("")
	r.Progress("working", "", 1, 5, 0)
	r.Started("again")

	require.Equal(t, []State{StatePending, StateStarted, StateProgress}, rec.states(),
		"a STARTED after PROGRESS must be swallowed")
}
