// Package worker implements the crawl job execution loop: dequeue, crawl,
// assemble, package and persist the artifact.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xvc323/omnidocs/internal/archive"
	"github.com/xvc323/omnidocs/internal/assemble"
	"github.com/xvc323/omnidocs/internal/crawler"
	"github.com/xvc323/omnidocs/internal/progress"
)

// DefaultArtifactTTL is how long finished artifacts stay downloadable.
const DefaultArtifactTTL = time.Hour

// Config controls Worker behavior.
type Config struct {
	ArtifactTTL time.Duration
}

// Runner executes one crawl job. Satisfied by *crawler.Engine.
type Runner interface {
	Run(ctx context.Context, jobID string, params crawler.JobParameters) ([]crawler.PageRecord, crawler.JobCounters, error)
}

// RunnerFactory builds a Runner bound to a per-job progress notifier.
type RunnerFactory func(notifier crawler.ProgressNotifier) Runner

// Worker consumes queue items and drives each job to a terminal state.
type Worker struct {
	queue   crawler.Queue
	jobs    crawler.JobStore
	blobs   crawler.BlobStore
	emitter progress.Emitter
	clock   crawler.Clock
	engines RunnerFactory
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Worker.
func New(
	queue crawler.Queue,
	jobs crawler.JobStore,
	blobs crawler.BlobStore,
	emitter progress.Emitter,
	clock crawler.Clock,
	engines RunnerFactory,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.ArtifactTTL <= 0 {
		cfg.ArtifactTTL = DefaultArtifactTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:   queue,
		jobs:    jobs,
		blobs:   blobs,
		emitter: emitter,
		clock:   clock,
		engines: engines,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

// ProcessOne drives a single job to a terminal state, used by the
// standalone CLI mode where no queue loop runs.
func (w *Worker) ProcessOne(ctx context.Context, item crawler.QueueItem) {
	w.processJob(ctx, item)
}

func (w *Worker) processJob(ctx context.Context, item crawler.QueueItem) {
	reporter := progress.NewReporter(item.JobID, w.emitter)

	if err := w.jobs.UpdateJobStatus(ctx, item.JobID, crawler.JobStatusRunning, "", crawler.JobCounters{}); err != nil {
		w.logger.Error("mark job running failed", zap.String("job_id", item.JobID), zap.Error(err))
		reporter.Failure("job could not be started")
		return
	}
	reporter.Started(fmt.Sprintf("crawling %s", item.Params.SeedURL))

	records, counters, err := w.engines(reporter).Run(ctx, item.JobID, item.Params)
	switch {
	case errors.Is(err, crawler.ErrCanceled):
		w.logger.Info("job canceled", zap.String("job_id", item.JobID))
		w.finish(ctx, item.JobID, reporter, crawler.JobStatusCanceled, "job canceled", counters)
		return
	case err != nil:
		w.logger.Error("crawl failed", zap.String("job_id", item.JobID), zap.Error(err))
		w.finish(ctx, item.JobID, reporter, crawler.JobStatusFailed, err.Error(), counters)
		return
	case len(records) == 0:
		w.logger.Warn("crawl produced no pages", zap.String("job_id", item.JobID),
			zap.String("seed_url", item.Params.SeedURL))
		w.finish(ctx, item.JobID, reporter, crawler.JobStatusFailed, emptyCrawlError(item.Params.OutputFormat), counters)
		return
	}

	result, err := w.packageArtifact(ctx, item, records, counters)
	if err != nil {
		w.logger.Error("package artifact failed", zap.String("job_id", item.JobID), zap.Error(err))
		w.finish(ctx, item.JobID, reporter, crawler.JobStatusFailed, err.Error(), counters)
		return
	}

	if err := w.jobs.SetResult(ctx, item.JobID, result); err != nil {
		w.logger.Error("persist result failed", zap.String("job_id", item.JobID), zap.Error(err))
		w.finish(ctx, item.JobID, reporter, crawler.JobStatusFailed, "failed to persist job result", counters)
		return
	}
	if err := w.jobs.UpdateJobStatus(ctx, item.JobID, crawler.JobStatusSucceeded, "", counters); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", item.JobID), zap.Error(err))
	}
	reporter.Success(result)
	w.logger.Info("job succeeded",
		zap.String("job_id", item.JobID),
		zap.Int("pages", counters.PagesCrawled),
		zap.String("artifact", result.ArtifactKey))
}

// emptyCrawlError names the missing artifact for a crawl that converted
// nothing.
func emptyCrawlError(format crawler.OutputFormat) string {
	if format == crawler.FormatSingleMD {
		return "no combined document was produced: zero pages were converted"
	}
	return "no pages were converted"
}

// packageArtifact assembles the combined document and writes the artifact in
// the requested format, returning the terminal result.
func (w *Worker) packageArtifact(
	ctx context.Context,
	item crawler.QueueItem,
	records []crawler.PageRecord,
	counters crawler.JobCounters,
) (crawler.JobResult, error) {
	doc := assemble.New().Build(records)
	now := w.clock.Now()

	format := item.Params.OutputFormat
	if format == "" {
		format = crawler.FormatZip
	}

	var (
		key         string
		filename    string
		contentType string
		data        []byte
	)
	switch format {
	case crawler.FormatSingleMD:
		filename = "all_docs.md"
		key = item.JobID + "/" + filename
		contentType = "text/markdown; charset=utf-8"
		data = []byte(doc.Combined())
	case crawler.FormatZip:
		filename = archive.ZipName(now)
		key = item.JobID + "/" + filename
		contentType = "application/zip"
		var err error
		data, err = archive.BuildZip(records, doc.Combined(), now)
		if err != nil {
			return crawler.JobResult{}, fmt.Errorf("build zip: %w", err)
		}
	default:
		return crawler.JobResult{}, fmt.Errorf("unsupported output format %q", format)
	}

	expires := now.Add(w.cfg.ArtifactTTL)
	uri, err := w.blobs.PutObject(ctx, key, data, crawler.PutOptions{
		ContentType: contentType,
		Disposition: fmt.Sprintf("attachment; filename=%q", filename),
		ExpiresAt:   expires,
	})
	if err != nil {
		return crawler.JobResult{}, fmt.Errorf("store artifact: %w", err)
	}

	return crawler.JobResult{
		JobID:             item.JobID,
		PagesCrawled:      counters.PagesCrawled,
		TotalPagesFetched: counters.TotalFetched,
		OutputFormat:      format,
		ArtifactKey:       key,
		ArtifactURI:       uri,
		ExpiresAt:         expires,
	}, nil
}

// finish records the terminal status and emits the FAILURE event. Canceled
// jobs surface through the progress stream as failures with the cancel text.
func (w *Worker) finish(
	ctx context.Context,
	jobID string,
	reporter *progress.Reporter,
	status crawler.JobStatus,
	errText string,
	counters crawler.JobCounters,
) {
	if err := w.jobs.UpdateJobStatus(ctx, jobID, status, errText, counters); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", jobID), zap.Error(err))
	}
	reporter.Failure(errText)
}
