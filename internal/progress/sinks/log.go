// Package sinks provides the progress sink implementations: structured
// logs, the in-memory snapshot store behind the SSE endpoint, and
// Prometheus metrics.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/xvc323/omnidocs/internal/progress"
)

// LogSink emits structured logs for every progress event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.logger.Info("progress event",
			zap.String("job_id", evt.JobID),
			zap.String("state", string(evt.State)),
			zap.String("message", evt.Payload.Message),
			zap.String("current_url", evt.Payload.CurrentURL),
			zap.Int("crawled", evt.Payload.Crawled),
			zap.Int("max_pages", evt.Payload.MaxPages),
			zap.String("error", evt.Payload.Error),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
