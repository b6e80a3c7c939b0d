// Package progress defines the job progress event stream: a forward-only
// state machine per job, fanned out to pluggable sinks.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/xvc323/omnidocs/internal/crawler"
)

// State is a job lifecycle state as seen by clients.
type State string

// Lifecycle states, in order. SUCCESS and FAILURE are terminal.
const (
	StatePending  State = "PENDING"
	StateStarted  State = "STARTED"
	StateProgress State = "PROGRESS"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"
)

// Terminal reports whether the state ends the job's stream.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

func (s State) rank() int {
	switch s {
	case StatePending:
		return 0
	case StateStarted:
		return 1
	case StateProgress:
		return 2
	case StateSuccess, StateFailure:
		return 3
	default:
		return -1
	}
}

// Payload carries the client-visible fields of a progress update.
type Payload struct {
	Status     string             `json:"status"`
	Message    string             `json:"message,omitempty"`
	CurrentURL string             `json:"current_url,omitempty"`
	Crawled    int                `json:"crawled,omitempty"`
	MaxPages   int                `json:"max_pages,omitempty"`
	DelayMS    int64              `json:"delay_ms,omitempty"`
	Result     *crawler.JobResult `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Event is one state change for one job.
type Event struct {
	JobID   string
	TS      time.Time
	State   State
	Payload Payload
}

// Validate performs coarse validation before an event enters the hub.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.State.rank() < 0 {
		return fmt.Errorf("unknown state %q", e.State)
	}
	return nil
}
