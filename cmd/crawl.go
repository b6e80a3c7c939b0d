package cmd

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xvc323/omnidocs/internal/clock/system"
	"github.com/xvc323/omnidocs/internal/convert"
	"github.com/xvc323/omnidocs/internal/crawler"
	collyfetcher "github.com/xvc323/omnidocs/internal/fetcher/colly"
	"github.com/xvc323/omnidocs/internal/id/uuid"
	"github.com/xvc323/omnidocs/internal/logging"
	"github.com/xvc323/omnidocs/internal/progress"
	"github.com/xvc323/omnidocs/internal/progress/sinks"
	"github.com/xvc323/omnidocs/internal/storage/local"
	storememory "github.com/xvc323/omnidocs/internal/store/memory"
	"github.com/xvc323/omnidocs/internal/worker"
)

type crawlFlags struct {
	maxPages        int
	includePrefixes []string
	excludePatterns []string
	format          string
	outDir          string
	strict          bool
	userAgent       string
	respectRobots   bool
}

func newCrawlCmd() *cobra.Command {
	flags := &crawlFlags{}
	cmd := &cobra.Command{
		Use:   "crawl <seed_url>",
		Short: "Crawl a documentation site and write the artifact locally",
		Long: `Runs a single conversion job in-process, without the API or a queue,
and writes the artifact into a local directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, args[0], flags)
		},
	}
	cmd.Flags().IntVar(&flags.maxPages, "max-pages", 100, "page budget for the crawl")
	cmd.Flags().StringArrayVar(&flags.includePrefixes, "include-prefix", nil, "in-scope path prefix (repeatable)")
	cmd.Flags().StringArrayVar(&flags.excludePatterns, "exclude-regex", nil, "exclusion pattern (repeatable)")
	cmd.Flags().StringVar(&flags.format, "format", "zip", "output format: zip or single_md")
	cmd.Flags().StringVar(&flags.outDir, "out", "./output", "local output directory")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "count every fetch attempt against the budget")
	cmd.Flags().StringVar(&flags.userAgent, "user-agent", "omnidocs-bot/0.1", "User-Agent header")
	cmd.Flags().BoolVar(&flags.respectRobots, "respect-robots", true, "honor robots.txt")
	return cmd
}

func runCrawl(cmd *cobra.Command, seedURL string, flags *crawlFlags) error {
	params, err := crawlParameters(seedURL, flags)
	if err != nil {
		return err
	}
	logger, err := logging.New(true)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blobs, err := local.New(local.Config{BaseDir: flags.outDir})
	if err != nil {
		return fmt.Errorf("init output directory: %w", err)
	}
	jobs := storememory.NewJobStore()
	snapshots := sinks.NewSnapshotSink()
	hub := progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger), snapshots)
	defer func() { _ = hub.Close(ctx) }()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     flags.userAgent,
		RespectRobots: flags.respectRobots,
	})
	converter := convert.New(logger)
	engines := func(notifier crawler.ProgressNotifier) worker.Runner {
		return crawler.NewEngine(fetcher, converter, jobs, notifier, logger)
	}

	jobID, err := uuid.NewUUIDGenerator().NewID()
	if err != nil {
		return fmt.Errorf("generate job id: %w", err)
	}
	clock := system.New()
	if err := jobs.CreateJob(ctx, crawler.Job{
		ID:         jobID,
		Status:     crawler.JobStatusQueued,
		Submitted:  clock.Now(),
		Parameters: params,
	}); err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	w := worker.New(nil, jobs, blobs, hub, clock, engines,
		worker.Config{ArtifactTTL: 24 * time.Hour}, logger)
	w.ProcessOne(ctx, crawler.QueueItem{JobID: jobID, Params: params, Attempt: 1, Submitted: clock.Now().Unix()})

	job, err := jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("read job outcome: %w", err)
	}
	switch job.Status {
	case crawler.JobStatusSucceeded:
		logger.Info("crawl finished",
			zap.Int("pages_crawled", job.Counters.PagesCrawled),
			zap.Int("total_fetched", job.Counters.TotalFetched),
			zap.Int("pages_failed", job.Counters.PagesFailed),
			zap.String("artifact", job.Result.ArtifactURI))
		fmt.Fprintln(cmd.OutOrStdout(), job.Result.ArtifactURI)
		return nil
	case crawler.JobStatusCanceled:
		return fmt.Errorf("crawl canceled")
	default:
		return fmt.Errorf("crawl failed: %s", job.ErrorText)
	}
}

func crawlParameters(seedURL string, flags *crawlFlags) (crawler.JobParameters, error) {
	u, err := url.Parse(seedURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return crawler.JobParameters{}, fmt.Errorf("seed URL must be an absolute http(s) URL")
	}
	format := crawler.OutputFormat(flags.format)
	if format != crawler.FormatZip && format != crawler.FormatSingleMD {
		return crawler.JobParameters{}, fmt.Errorf("unsupported format %q", flags.format)
	}
	for _, pattern := range flags.excludePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return crawler.JobParameters{}, fmt.Errorf("invalid exclude pattern %q: %v", pattern, err)
		}
	}
	return crawler.JobParameters{
		SeedURL:         seedURL,
		IncludePrefixes: flags.includePrefixes,
		ExcludePatterns: flags.excludePatterns,
		MaxPages:        flags.maxPages,
		StrictBudget:    flags.strict,
		OutputFormat:    format,
	}, nil
}
