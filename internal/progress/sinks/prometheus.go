package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xvc323/omnidocs/internal/progress"
)

// PrometheusSink exports job progress metrics. It owns all collectors for
// jobs started/completed/running and page throughput.
type PrometheusSink struct {
	jobsStarted   prometheus.Counter
	jobsCompleted *prometheus.CounterVec
	jobsRunning   prometheus.Gauge
	pagesCrawled  prometheus.Counter

	tracker *jobTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "omnidocs_jobs_started_total",
			Help: "Total crawl jobs that have started.",
		}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omnidocs_jobs_completed_total",
			Help: "Total crawl jobs completed partitioned by result.",
		}, []string{"result"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "omnidocs_jobs_running",
			Help: "Current number of running crawl jobs.",
		}),
		pagesCrawled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "omnidocs_pages_crawled_total",
			Help: "Total pages converted across all jobs.",
		}),
		tracker: newJobTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.jobsStarted,
		s.jobsCompleted,
		s.jobsRunning,
		s.pagesCrawled,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.State {
	case progress.StateStarted:
		s.jobsStarted.Inc()
		if s.tracker.start(evt.JobID) {
			s.jobsRunning.Inc()
		}
	case progress.StateProgress:
		if delta := s.tracker.pageDelta(evt.JobID, evt.Payload.Crawled); delta > 0 {
			s.pagesCrawled.Add(float64(delta))
		}
	case progress.StateSuccess:
		s.jobsCompleted.WithLabelValues("success").Inc()
		if s.tracker.complete(evt.JobID) {
			s.jobsRunning.Dec()
		}
	case progress.StateFailure:
		s.jobsCompleted.WithLabelValues("failure").Inc()
		if s.tracker.complete(evt.JobID) {
			s.jobsRunning.Dec()
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

// jobTracker keeps per-job state so the gauge and the page counter stay
// correct when events arrive more than once.
type jobTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
	crawled map[string]int
}

func newJobTracker() *jobTracker {
	return &jobTracker{
		running: make(map[string]struct{}),
		crawled: make(map[string]int),
	}
}

func (t *jobTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *jobTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.crawled, id)
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}

// pageDelta returns how many pages were crawled since the last PROGRESS
// event for this job.
func (t *jobTracker) pageDelta(id string, crawled int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.crawled[id]
	if crawled <= prev {
		return 0
	}
	t.crawled[id] = crawled
	return crawled - prev
}
