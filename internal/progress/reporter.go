package progress

import (
	"sync"
	"time"

	"github.com/xvc323/omnidocs/internal/crawler"
)

// Reporter is the per-job progress state machine. Transitions move strictly
// forward (PENDING, STARTED, PROGRESS*, then SUCCESS or FAILURE), a
// terminal event is emitted at most once, and consecutive PROGRESS updates
// with identical payloads are swallowed. Safe for concurrent use.
//
// Reporter implements crawler.ProgressNotifier.
type Reporter struct {
	jobID   string
	emitter Emitter
	now     func() time.Time

	mu           sync.Mutex
	state        State
	lastProgress Payload
	hasProgress  bool
}

// NewReporter creates a reporter and emits the initial PENDING event.
func NewReporter(jobID string, emitter Emitter) *Reporter {
	r := &Reporter{
		jobID:   jobID,
		emitter: emitter,
		now:     time.Now,
		state:   StatePending,
	}
	r.emit(StatePending, Payload{Status: string(StatePending)})
	return r
}

// Started marks the job as picked up by a worker.
func (r *Reporter) Started(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.allow(StateStarted) {
		return
	}
	r.state = StateStarted
	r.emit(StateStarted, Payload{Status: string(StateStarted), Message: message})
}

// Progress emits a PROGRESS update. Implements crawler.ProgressNotifier.
func (r *Reporter) Progress(message, currentURL string, crawled, maxPages int, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.allow(StateProgress) {
		return
	}
	payload := Payload{
		Status:     string(StateProgress),
		Message:    message,
		CurrentURL: currentURL,
		Crawled:    crawled,
		MaxPages:   maxPages,
		DelayMS:    delay.Milliseconds(),
	}
	if r.hasProgress && payload == r.lastProgress {
		return
	}
	r.state = StateProgress
	r.lastProgress = payload
	r.hasProgress = true
	r.emit(StateProgress, payload)
}

// Success emits the terminal SUCCESS event carrying the job result.
func (r *Reporter) Success(result crawler.JobResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.allow(StateSuccess) {
		return
	}
	r.state = StateSuccess
	r.emit(StateSuccess, Payload{Status: string(StateSuccess), Result: &result})
}

// Failure emits the terminal FAILURE event with the error text verbatim.
func (r *Reporter) Failure(errText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.allow(StateFailure) {
		return
	}
	r.state = StateFailure
	r.emit(StateFailure, Payload{Status: string(StateFailure), Error: errText})
}

// allow enforces forward-only transitions and a single terminal event.
func (r *Reporter) allow(to State) bool {
	if r.state.Terminal() {
		return false
	}
	return to.rank() >= r.state.rank()
}

func (r *Reporter) emit(state State, payload Payload) {
	if r.emitter == nil {
		return
	}
	r.emitter.Emit(Event{
		JobID:   r.jobID,
		TS:      r.now().UTC(),
		State:   state,
		Payload: payload,
	})
}
