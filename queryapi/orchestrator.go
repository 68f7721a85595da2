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

package queryapi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	bigquery "google.golang.org/api/bigquery/v2"

	"github.com/cardinalhq/bqrunner/bqjob"
	"github.com/cardinalhq/bqrunner/bqmacro"
	"github.com/cardinalhq/bqrunner/bqsql"
	"github.com/cardinalhq/bqrunner/internal/idgen"
	"github.com/cardinalhq/bqrunner/internal/logctx"
)

// Executor runs compiled SQL. *bqjob.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, sql, requestID string) (*bqjob.Result, error)
}

// TimeRange is the dashboard time range macros are expanded against.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// QueryRequest is a batch of targets sharing a time range and variables.
type QueryRequest struct {
	Range     TimeRange
	Targets   []*bqsql.Target
	Variables []bqsql.Variable
}

// TargetResult is the outcome of one target.
type TargetResult struct {
	RefID  string                `json:"refId"`
	SQL    string                `json:"sql,omitempty"`
	JobID  string                `json:"jobId,omitempty"`
	Schema *bigquery.TableSchema `json:"schema,omitempty"`
	Rows   []*bigquery.TableRow  `json:"rows"`
	Cached bool                  `json:"cached,omitempty"`
}

// Compile renders t, substitutes template variables and expands macros for
// r. A target that is not ready compiles to "".
func Compile(t *bqsql.Target, r TimeRange, vars []bqsql.Variable) (string, error) {
	sql := bqsql.Render(t)
	if sql == "" {
		return "", nil
	}
	sql = bqsql.Interpolate(sql, vars)
	env := bqmacro.Env{From: r.From, To: r.To}
	if t.TimeColumn != bqsql.TimeColumnUnset {
		env.TimeColumn = t.TimeColumn
	}
	return bqmacro.Expand(sql, env)
}

// Querier compiles and executes batches of targets.
type Querier struct {
	exec        Executor
	cache       *resultCache
	concurrency int
}

// NewQuerier returns a querier. A zero cacheTTL disables result caching and a
// non-positive concurrency runs every target of a batch at once.
func NewQuerier(exec Executor, cacheTTL time.Duration, concurrency int) *Querier {
	return &Querier{
		exec:        exec,
		cache:       newResultCache(cacheTTL),
		concurrency: concurrency,
	}
}

// Close stops background cache eviction.
func (q *Querier) Close() {
	q.cache.stop()
}

// Query runs every visible target concurrently and returns their results in
// target order. The first failure cancels the remaining targets and is
// returned alone.
func (q *Querier) Query(ctx context.Context, req QueryRequest) ([]TargetResult, error) {
	targets := make([]*bqsql.Target, 0, len(req.Targets))
	for _, t := range req.Targets {
		if t != nil && !t.Hide {
			targets = append(targets, t)
		}
	}
	recordTargets(ctx, len(targets))

	results := make([]TargetResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	if q.concurrency > 0 {
		g.SetLimit(q.concurrency)
	}
	for i, t := range targets {
		g.Go(func() error {
			tctx := logctx.With(gctx, slog.String("refId", t.RefID))
			res, err := q.runTarget(tctx, t, req.Range, req.Variables)
			if err != nil {
				return fmt.Errorf("target %s: %w", t.RefID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (q *Querier) runTarget(ctx context.Context, t *bqsql.Target, r TimeRange, vars []bqsql.Variable) (TargetResult, error) {
	out := TargetResult{RefID: t.RefID, Rows: []*bigquery.TableRow{}}

	sql, err := Compile(t, r, vars)
	if err != nil {
		return out, err
	}
	out.SQL = sql
	if !bqsql.Ready(sql) {
		return out, nil
	}

	if res, ok := q.cache.get(sql); ok {
		recordCacheLookup(ctx, true)
		out.fill(res)
		out.Cached = true
		return out, nil
	}
	recordCacheLookup(ctx, false)

	res, err := q.exec.Execute(ctx, sql, idgen.NewRequestID())
	if err != nil {
		return out, err
	}
	// Cancelled executions return an empty result; only cache real answers.
	if ctx.Err() == nil && !res.Cancelled {
		q.cache.set(sql, res)
	}
	logctx.FromContext(ctx).Debug("Target executed",
		slog.String("jobID", res.JobID),
		slog.Int("rows", len(res.Rows)))
	out.fill(res)
	return out, nil
}

func (tr *TargetResult) fill(res *bqjob.Result) {
	if res == nil {
		return
	}
	tr.JobID = res.JobID
	tr.Schema = res.Schema
	if res.Rows != nil {
		tr.Rows = res.Rows
	}
}
