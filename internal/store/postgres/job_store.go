// Package postgres provides the Postgres-backed job store used when the
// service runs with shared persistence.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xvc323/omnidocs/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// JobStoreConfig controls the Postgres connection pool used for job rows.
type JobStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// JobStore persists jobs in Postgres. Parameters, counters and results are
// stored as JSONB so the schema does not chase every field change.
type JobStore struct {
	pool  pgxPool
	table string
}

// NewJobStore creates a Postgres-backed JobStore using the provided config.
func NewJobStore(ctx context.Context, cfg JobStoreConfig) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobStore{pool: pool, table: table}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewJobStoreWithPool(pool pgxPool, table string) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &JobStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob inserts a new job row.
func (s *JobStore) CreateJob(ctx context.Context, job crawler.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	params, err := json.Marshal(job.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	counters, err := json.Marshal(job.Counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	status,
	submitted_at,
	error_text,
	parameters,
	counters,
	canceled
) VALUES (
	$1,$2,$3,$4,$5,$6,false
)`, s.table)

	args := []any{
		job.ID,
		string(job.Status),
		job.Submitted,
		job.ErrorText,
		params,
		counters,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus updates status, error text and counters. The start time is
// stamped on the first transition to running and the finish time on any
// terminal transition.
func (s *JobStore) UpdateJobStatus(
	ctx context.Context,
	jobID string,
	status crawler.JobStatus,
	errText string,
	counters crawler.JobCounters,
) error {
	countersJSON, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}
	query := fmt.Sprintf(`
UPDATE %s SET
	status = $2,
	error_text = $3,
	counters = $4,
	started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN $5 ELSE started_at END,
	finished_at = CASE WHEN $2 IN ('succeeded','failed','canceled') AND finished_at IS NULL THEN $5 ELSE finished_at END
WHERE id = $1`, s.table)

	tag, err := s.pool.Exec(ctx, query, jobID, string(status), errText, countersJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s: %w", jobID, crawler.ErrJobNotFound)
	}
	return nil
}

// SetResult attaches the terminal result to a job.
func (s *JobStore) SetResult(ctx context.Context, jobID string, result crawler.JobResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	query := fmt.Sprintf(`UPDATE %s SET result = $2 WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, jobID, resultJSON)
	if err != nil {
		return fmt.Errorf("set result %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set result %s: %w", jobID, crawler.ErrJobNotFound)
	}
	return nil
}

// GetJob fetches a job row by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (crawler.Job, error) {
	query := fmt.Sprintf(`
SELECT id, status, submitted_at, started_at, finished_at, error_text, parameters, counters, result
FROM %s WHERE id = $1`, s.table)

	var (
		job        crawler.Job
		status     string
		params     []byte
		counters   []byte
		resultJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, jobID).Scan(
		&job.ID,
		&status,
		&job.Submitted,
		&job.Started,
		&job.Finished,
		&job.ErrorText,
		&params,
		&counters,
		&resultJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Job{}, fmt.Errorf("get %s: %w", jobID, crawler.ErrJobNotFound)
	}
	if err != nil {
		return crawler.Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	job.Status = crawler.JobStatus(status)
	if err := json.Unmarshal(params, &job.Parameters); err != nil {
		return crawler.Job{}, fmt.Errorf("decode parameters for %s: %w", jobID, err)
	}
	if err := json.Unmarshal(counters, &job.Counters); err != nil {
		return crawler.Job{}, fmt.Errorf("decode counters for %s: %w", jobID, err)
	}
	if len(resultJSON) > 0 {
		var result crawler.JobResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return crawler.Job{}, fmt.Errorf("decode result for %s: %w", jobID, err)
		}
		job.Result = &result
	}
	return job, nil
}

// Cancel raises the job's cooperative cancellation flag.
func (s *JobStore) Cancel(ctx context.Context, jobID string) error {
	query := fmt.Sprintf(`UPDATE %s SET canceled = true WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, jobID)
	if err != nil {
		return fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cancel %s: %w", jobID, crawler.ErrJobNotFound)
	}
	return nil
}

// IsCanceled reports the cancellation flag.
func (s *JobStore) IsCanceled(ctx context.Context, jobID string) (bool, error) {
	query := fmt.Sprintf(`SELECT canceled FROM %s WHERE id = $1`, s.table)
	var canceled bool
	err := s.pool.QueryRow(ctx, query, jobID).Scan(&canceled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("is canceled %s: %w", jobID, crawler.ErrJobNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("is canceled %s: %w", jobID, err)
	}
	return canceled, nil
}
