package crawler

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned by BlobStore implementations for missing keys.
var ErrObjectNotFound = errors.New("object not found")

// ErrJobNotFound is returned by JobStore implementations for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// Fetcher fetches a single URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Queue provides enqueue/dequeue semantics for whole crawl jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// PutOptions carries per-object metadata for blob writes.
type PutOptions struct {
	ContentType string
	Disposition string
	ExpiresAt   time.Time
}

// ObjectInfo describes a stored blob, including its expiry metadata.
type ObjectInfo struct {
	Key         string
	ContentType string
	ExpiresAt   time.Time
}

// BlobStore persists artifacts under job-scoped keys and exposes enough of
// the object listing for the expiry sweeper.
type BlobStore interface {
	PutObject(ctx context.Context, key string, data []byte, opts PutOptions) (string, error)
	GetObject(ctx context.Context, key string) ([]byte, ObjectInfo, error)
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DeleteObject(ctx context.Context, key string) error
}

// JobStore persists job metadata and the cooperative cancellation flag.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string, counters JobCounters) error
	SetResult(ctx context.Context, jobID string, result JobResult) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	Cancel(ctx context.Context, jobID string) error
	IsCanceled(ctx context.Context, jobID string) (bool, error)
}

// PageConverter turns raw page HTML into Markdown. Implementations never
// fail: unconvertible input yields a visible stub instead of an error.
type PageConverter interface {
	Convert(ctx context.Context, pageURL string, html []byte) string
}

// ProgressNotifier receives per-iteration crawl progress from the engine.
type ProgressNotifier interface {
	Progress(message, currentURL string, crawled, maxPages int, delay time.Duration)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
