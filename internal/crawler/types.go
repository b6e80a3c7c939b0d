// Package crawler defines the core types and interfaces for the docs
// crawling engine: jobs, scope rules, politeness pacing, the frontier and
// the two-phase traversal loop.
package crawler

import (
	"net/http"
	"time"
)

// OutputFormat selects how a finished job is packaged.
type OutputFormat string

// Supported artifact formats.
const (
	FormatZip      OutputFormat = "zip"
	FormatSingleMD OutputFormat = "single_md"
)

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// JobParameters captures the per-job configuration requested by the client.
// Immutable for the job's lifetime.
type JobParameters struct {
	SeedURL         string       `json:"seed_url"`
	IncludePrefixes []string     `json:"include_prefixes,omitempty"`
	ExcludePatterns []string     `json:"exclude_patterns,omitempty"`
	MaxPages        int          `json:"max_pages"`
	StrictBudget    bool         `json:"strict_budget"`
	OutputFormat    OutputFormat `json:"output_format"`
}

// Job is the metadata persisted for each submitted crawl request.
type Job struct {
	ID         string        `json:"id"`
	Status     JobStatus     `json:"status"`
	Submitted  time.Time     `json:"submitted_at"`
	Started    *time.Time    `json:"started_at,omitempty"`
	Finished   *time.Time    `json:"finished_at,omitempty"`
	ErrorText  string        `json:"error_text,omitempty"`
	Parameters JobParameters `json:"parameters"`
	Counters   JobCounters   `json:"counters"`
	Result     *JobResult    `json:"result,omitempty"`
}

// JobCounters tracks per-job fetch accounting.
type JobCounters struct {
	PagesCrawled int `json:"pages_crawled"`
	TotalFetched int `json:"total_pages_fetched"`
	PagesFailed  int `json:"pages_failed"`
}

// PageRecord holds one successfully converted page. Never mutated after
// creation; consumed by the assembler in order.
type PageRecord struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
	Filename string `json:"filename"`
	Index    int    `json:"index"`
}

// JobResult is the terminal record for a finished job.
type JobResult struct {
	JobID             string       `json:"job_id"`
	PagesCrawled      int          `json:"pages_crawled"`
	TotalPagesFetched int          `json:"total_pages_fetched"`
	OutputFormat      OutputFormat `json:"output_format"`
	ArtifactKey       string       `json:"artifact_key"`
	ArtifactURI       string       `json:"artifact_uri"`
	ExpiresAt         time.Time    `json:"expires_at"`
}

// FetchRequest captures everything needed to fetch a URL once.
type FetchRequest struct {
	JobID string
	URL   string
}

// FetchResponse is the result returned by a Fetcher implementation. A
// non-2xx status is still a response, not an error; errors are reserved for
// transport failures.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// QueueItem wraps a job ready to run on a worker.
type QueueItem struct {
	JobID     string        `json:"job_id"`
	Params    JobParameters `json:"params"`
	Attempt   int           `json:"attempt"`
	Submitted int64         `json:"submitted"`
}
