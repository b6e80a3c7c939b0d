package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xvc323/omnidocs/internal/crawler"
	"github.com/xvc323/omnidocs/internal/progress"
)

const enqueueTimeout = 5 * time.Second

type conversionRequest struct {
	SiteURL      string `json:"site_url"`
	OutputFormat string `json:"output_format"`
	PathPrefix   string `json:"path_prefix"`
	UseRegex     bool   `json:"use_regex"`
	CustomRegex  string `json:"custom_regex"`
	MaxPages     int    `json:"max_pages"`
}

// startConversion handles POST /api/convert. It validates the request,
// persists the job and enqueues it, replying 202 with the job ID.
func (s *Server) startConversion(w http.ResponseWriter, r *http.Request) {
	var req conversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	params, err := s.toJobParameters(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate job id")
		return
	}
	now := s.clock.Now()
	job := crawler.Job{
		ID:         jobID,
		Status:     crawler.JobStatusQueued,
		Submitted:  now,
		Parameters: params,
	}
	if err := s.jobs.CreateJob(r.Context(), job); err != nil {
		s.logger.Error("create job failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	queueCtx, cancel := context.WithTimeout(r.Context(), enqueueTimeout)
	defer cancel()
	item := crawler.QueueItem{
		JobID:     jobID,
		Params:    params,
		Attempt:   1,
		Submitted: now.Unix(),
	}
	if err := s.queue.Enqueue(queueCtx, item); err != nil {
		s.logger.Error("enqueue job failed", zap.String("job_id", jobID), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		writeError(w, status, "failed to enqueue job")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) toJobParameters(req conversionRequest) (crawler.JobParameters, error) {
	seed := strings.TrimSpace(req.SiteURL)
	if seed == "" {
		return crawler.JobParameters{}, errors.New("site_url is required")
	}
	u, err := url.Parse(seed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return crawler.JobParameters{}, errors.New("site_url must be an absolute http(s) URL")
	}

	format := crawler.OutputFormat(req.OutputFormat)
	if format == "" {
		format = crawler.FormatZip
	}
	if format != crawler.FormatZip && format != crawler.FormatSingleMD {
		return crawler.JobParameters{}, fmt.Errorf("unsupported output_format %q", req.OutputFormat)
	}

	var includes []string
	for _, p := range strings.Split(req.PathPrefix, ",") {
		if p = strings.TrimSpace(p); p != "" {
			includes = append(includes, p)
		}
	}

	var excludes []string
	if req.UseRegex && strings.TrimSpace(req.CustomRegex) != "" {
		for _, line := range strings.Split(req.CustomRegex, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if _, err := regexp.Compile(line); err != nil {
				return crawler.JobParameters{}, fmt.Errorf("invalid exclude pattern %q: %v", line, err)
			}
			excludes = append(excludes, line)
		}
	}

	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = s.cfg.Crawler.MaxPagesDefault
	}

	return crawler.JobParameters{
		SeedURL:         seed,
		IncludePrefixes: includes,
		ExcludePatterns: excludes,
		MaxPages:        maxPages,
		StrictBudget:    s.cfg.Crawler.StrictBudget,
		OutputFormat:    format,
	}, nil
}

// getJobStatus handles GET /api/job/{job_id}/status.
func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	response := map[string]any{
		"job_id": jobID,
		"state":  stateForJob(job),
	}
	if s.snapshots != nil {
		if latest, ok := s.snapshots.Latest(jobID); ok {
			response["state"] = string(latest.State)
			response["info"] = latest.Payload
		}
	}
	if job.Result != nil {
		response["result"] = job.Result
	}
	if job.ErrorText != "" {
		response["error"] = job.ErrorText
	}
	writeJSON(w, http.StatusOK, response)
}

// stateForJob maps the persisted status onto the progress state names, used
// when no snapshot events exist (for example after a restart).
func stateForJob(job crawler.Job) string {
	switch job.Status {
	case crawler.JobStatusQueued:
		return string(progress.StatePending)
	case crawler.JobStatusRunning:
		return string(progress.StateStarted)
	case crawler.JobStatusSucceeded:
		return string(progress.StateSuccess)
	default:
		return string(progress.StateFailure)
	}
}

type sseFrame struct {
	State string           `json:"state"`
	Meta  progress.Payload `json:"meta"`
}

// streamProgress handles GET /api/job/{job_id}/progress as Server-Sent
// Events. It polls the snapshot store past a cursor and ends the stream on
// the job's terminal event.
func (s *Server) streamProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	if s.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "progress stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	cursor := 0
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		var events []progress.Event
		events, cursor = s.snapshots.Since(jobID, cursor)
		for _, evt := range events {
			if err := writeSSE(w, sseFrame{State: string(evt.State), Meta: evt.Payload}); err != nil {
				return
			}
			flusher.Flush()
			if evt.State.Terminal() {
				return
			}
		}
		// No events recorded for an already finished job: report the stored
		// terminal state once and end the stream.
		if len(events) == 0 && cursor == 0 && isTerminalStatus(job.Status) {
			frame := sseFrame{State: stateForJob(job), Meta: progress.Payload{
				Status: stateForJob(job),
				Result: job.Result,
				Error:  job.ErrorText,
			}}
			if err := writeSSE(w, frame); err == nil {
				flusher.Flush()
			}
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writeSSE(w http.ResponseWriter, frame sseFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode sse frame: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	return nil
}

func isTerminalStatus(status crawler.JobStatus) bool {
	switch status {
	case crawler.JobStatusSucceeded, crawler.JobStatusFailed, crawler.JobStatusCanceled:
		return true
	default:
		return false
	}
}

// downloadArtifact handles GET /api/download/{job_id}, serving the stored
// artifact with attachment headers.
func (s *Server) downloadArtifact(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if !isTerminalStatus(job.Status) {
		writeError(w, http.StatusNotFound, "job not completed")
		return
	}
	if job.Status != crawler.JobStatusSucceeded || job.Result == nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("job failed: %s", job.ErrorText))
		return
	}

	data, info, err := s.blobs.GetObject(r.Context(), job.Result.ArtifactKey)
	if err != nil {
		if errors.Is(err, crawler.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "artifact expired or missing")
			return
		}
		s.logger.Error("artifact read failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read artifact")
		return
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	filename := path.Base(job.Result.ArtifactKey)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		s.logger.Error("artifact write failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// cancelJob handles POST /api/job/{job_id}/cancel, raising the cooperative
// cancellation flag. The engine observes it at the next loop iteration.
func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := s.jobs.Cancel(r.Context(), jobID); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": "canceling"})
}
