package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xvc323/omnidocs/internal/api"
	"github.com/xvc323/omnidocs/internal/clock/system"
	"github.com/xvc323/omnidocs/internal/config"
	"github.com/xvc323/omnidocs/internal/convert"
	"github.com/xvc323/omnidocs/internal/crawler"
	collyfetcher "github.com/xvc323/omnidocs/internal/fetcher/colly"
	"github.com/xvc323/omnidocs/internal/id/uuid"
	"github.com/xvc323/omnidocs/internal/logging"
	"github.com/xvc323/omnidocs/internal/progress"
	"github.com/xvc323/omnidocs/internal/progress/sinks"
	queuememory "github.com/xvc323/omnidocs/internal/queue/memory"
	queuepubsub "github.com/xvc323/omnidocs/internal/queue/pubsub"
	"github.com/xvc323/omnidocs/internal/storage"
	"github.com/xvc323/omnidocs/internal/storage/gcs"
	"github.com/xvc323/omnidocs/internal/storage/local"
	blobmemory "github.com/xvc323/omnidocs/internal/storage/memory"
	storememory "github.com/xvc323/omnidocs/internal/store/memory"
	"github.com/xvc323/omnidocs/internal/store/postgres"
	"github.com/xvc323/omnidocs/internal/worker"
)

const shutdownGrace = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion API service with embedded workers",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.NewUUIDGenerator()

	blobs, err := buildBlobStore(runCtx, cfg, logger)
	if err != nil {
		return err
	}
	jobs, closeJobs, err := buildJobStore(runCtx, cfg)
	if err != nil {
		return err
	}
	defer closeJobs()
	queue, closeQueue, err := buildQueue(runCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeQueue()

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return fmt.Errorf("init metrics sink: %w", err)
	}
	snapshots := sinks.NewSnapshotSink()
	hub := progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger), snapshots, promSink)

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: cfg.Crawler.RespectRobots,
		Timeout:       cfg.FetchTimeout(),
	})
	converter := convert.New(logger)
	engines := func(notifier crawler.ProgressNotifier) worker.Runner {
		return crawler.NewEngine(fetcher, converter, jobs, notifier, logger)
	}

	w := worker.New(queue, jobs, blobs, hub, clock, engines,
		worker.Config{ArtifactTTL: cfg.ArtifactTTL()}, logger)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Crawler.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(runCtx)
		}()
	}

	sweeper := storage.NewSweeper(blobs, clock, cfg.SweepInterval(), logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(runCtx)
	}()

	metrics := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	server := api.NewServer(jobs, blobs, queue, snapshots, idGen, clock, cfg, metrics, logger)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	logger.Info("server listening",
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("queue", cfg.Queue.Backend),
		zap.Int("workers", cfg.Crawler.Workers))

	select {
	case <-runCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	stop()
	wg.Wait()
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
	return nil
}

func buildBlobStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return blobmemory.NewBlobStore(), nil
	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local blob store: %w", err)
		}
		return store, nil
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		logger.Info("using gcs artifact storage", zap.String("bucket", cfg.Storage.GCSBucket))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func buildJobStore(ctx context.Context, cfg config.Config) (crawler.JobStore, func(), error) {
	if cfg.DB.DSN == "" {
		return storememory.NewJobStore(), func() {}, nil
	}
	store, err := postgres.NewJobStore(ctx, postgres.JobStoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init postgres job store: %w", err)
	}
	return store, store.Close, nil
}

func buildQueue(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.Queue, func(), error) {
	switch cfg.Queue.Backend {
	case "memory":
		q := queuememory.NewQueue(cfg.Crawler.QueueDepth)
		return q, q.Close, nil
	case "pubsub":
		q, err := queuepubsub.New(ctx, queuepubsub.Config{
			ProjectID:      cfg.Queue.ProjectID,
			TopicID:        cfg.Queue.TopicID,
			SubscriptionID: cfg.Queue.SubscriptionID,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init pubsub queue: %w", err)
		}
		return q, func() { _ = q.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}
