// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package bqjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	bigquery "google.golang.org/api/bigquery/v2"

	"github.com/cardinalhq/bqrunner/bqsql"
	"github.com/cardinalhq/bqrunner/internal/logctx"
)

// Config controls retries and completion polling.
type Config struct {
	// Project is the billing project jobs are submitted to.
	Project string
	// MaxRetries is the number of extra attempts for a request that failed
	// with a transport error or a 5xx status.
	MaxRetries int
	// PollInitialInterval is the first wait before polling an incomplete job.
	// Each further wait doubles.
	PollInitialInterval time.Duration
	// MaxPollInterval caps a single wait. Zero leaves it unbounded.
	MaxPollInterval time.Duration
	// MaxPollDuration caps the summed waits of one job. Zero disables it.
	MaxPollDuration time.Duration
}

// DefaultConfig returns the standard retry and polling settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries:          3,
		PollInitialInterval: 100 * time.Millisecond,
		MaxPollInterval:     10 * time.Second,
		MaxPollDuration:     10 * time.Minute,
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor runs SQL statements as BigQuery query jobs.
type Executor struct {
	req   Requester
	cfg   Config
	sleep SleepFunc
}

// Option configures an Executor.
type Option func(*Executor)

// WithSleep replaces the wait used between completion polls.
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) {
		e.sleep = fn
	}
}

// NewExecutor returns an executor that sends requests through req.
func NewExecutor(req Requester, cfg Config, opts ...Option) *Executor {
	if cfg.PollInitialInterval <= 0 {
		cfg.PollInitialInterval = DefaultConfig().PollInitialInterval
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	e := &Executor{
		req:   req,
		cfg:   cfg,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute submits sql, waits for the job to complete and collects every
// result page. SQL that is empty or still holds a column placeholder yields an
// empty result without any request. Cancellation of ctx also yields an empty
// result and a nil error.
func (e *Executor) Execute(ctx context.Context, sql, requestID string) (*Result, error) {
	if !bqsql.Ready(sql) {
		return &Result{}, nil
	}

	job := &Job{}
	start := time.Now()

	for !job.Phase.IsTerminal() {
		var err error
		switch job.Phase {
		case PhaseIdle:
			err = e.submit(ctx, job, sql, requestID)
		case PhasePolling:
			err = e.poll(ctx, job)
		case PhaseFetching:
			err = e.fetch(ctx, job)
		default:
			err = fmt.Errorf("job stalled in phase %s", job.Phase)
		}
		if err == nil {
			continue
		}
		if cancelled(ctx, err) {
			_ = job.Cancel()
		} else if ferr := job.Fail(err); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
	}

	recordJob(ctx, job.Phase, job.Polls, time.Since(start))

	logger := logctx.FromContext(ctx).With(slog.String("jobID", job.JobID()))
	switch job.Phase {
	case PhaseCancelled:
		logger.Debug("BigQuery job cancelled")
		return &Result{JobID: job.JobID(), Cancelled: true}, nil
	case PhaseFailed:
		logger.Warn("BigQuery job failed", slog.Any("error", job.Err))
		return nil, job.Err
	}

	logger.Debug("BigQuery job complete",
		slog.Int("rows", len(job.Rows)),
		slog.Int("polls", job.Polls),
		slog.Duration("elapsed", time.Since(start)))
	return job.result(), nil
}

func (e *Executor) submit(ctx context.Context, job *Job, sql, requestID string) error {
	useLegacySQL := false
	req := &bigquery.QueryRequest{
		Query:        sql,
		UseLegacySql: &useLegacySQL,
		RequestId:    requestID,
	}
	submissionCounter.Add(ctx, 1)

	var resp bigquery.QueryResponse
	if err := e.call(ctx, http.MethodPost, e.queriesPath(nil, ""), req, &resp); err != nil {
		return err
	}
	if err := job.ApplySubmitted(PageFromQuery(&resp)); err != nil {
		return err
	}
	logctx.FromContext(ctx).Debug("BigQuery job submitted",
		slog.String("jobID", job.JobID()),
		slog.String("phase", job.Phase.String()))
	return nil
}

func (e *Executor) poll(ctx context.Context, job *Job) error {
	wait := job.Backoff(e.cfg.PollInitialInterval, e.cfg.MaxPollInterval)
	if e.cfg.MaxPollDuration > 0 && job.Waited+wait > e.cfg.MaxPollDuration {
		return fmt.Errorf("job %s after %s: %w", job.JobID(), job.Waited, ErrPollTimeout)
	}
	if err := e.sleep(ctx, wait); err != nil {
		return err
	}
	job.Waited += wait

	var resp bigquery.GetQueryResultsResponse
	if err := e.call(ctx, http.MethodGet, e.queriesPath(job, ""), nil, &resp); err != nil {
		return err
	}
	return job.ApplyPolled(PageFromResults(&resp))
}

func (e *Executor) fetch(ctx context.Context, job *Job) error {
	var resp bigquery.GetQueryResultsResponse
	if err := e.call(ctx, http.MethodGet, e.queriesPath(job, job.PageToken), nil, &resp); err != nil {
		return err
	}
	return job.ApplyFetched(PageFromResults(&resp))
}

// call issues one request, retrying transport errors and 5xx responses with
// no delay. A successful body is decoded into out.
func (e *Executor) call(ctx context.Context, method, path string, body, out any) error {
	attempts := e.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := e.req.Do(ctx, method, path, body)
		status := 0
		switch {
		case err != nil:
			if cancelled(ctx, err) {
				return err
			}
			lastErr = fmt.Errorf("bigquery %s %s: %w", method, path, err)
		case resp == nil:
			lastErr = fmt.Errorf("bigquery %s %s: %w", method, path, errNoResponse)
		case IsRetryable(resp.Status):
			status = resp.Status
			lastErr = newProviderError(resp.Status, resp.Data)
		case resp.Status < 200 || resp.Status > 299:
			return newProviderError(resp.Status, resp.Data)
		default:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(resp.Data, out); err != nil {
				return fmt.Errorf("decoding bigquery response: %w", err)
			}
			return nil
		}

		if attempt < attempts {
			recordRetry(ctx, method, status)
			logctx.FromContext(ctx).Warn("Retrying BigQuery request",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
		}
	}
	return lastErr
}

// queriesPath builds the jobs.query path, or the jobs.getQueryResults path
// when job is non-nil.
func (e *Executor) queriesPath(job *Job, pageToken string) string {
	project := e.cfg.Project
	if job != nil && job.Ref != nil && job.Ref.ProjectId != "" {
		project = job.Ref.ProjectId
	}
	path := "v2/projects/" + url.PathEscape(project) + "/queries"
	if job == nil {
		return path
	}
	path += "/" + url.PathEscape(job.JobID())

	q := url.Values{}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	if job.Ref != nil && job.Ref.Location != "" {
		q.Set("location", job.Ref.Location)
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return path
}

func cancelled(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || ctx.Err() != nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
