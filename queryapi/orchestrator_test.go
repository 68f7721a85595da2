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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bigquery "google.golang.org/api/bigquery/v2"

	"github.com/cardinalhq/bqrunner/bqjob"
	"github.com/cardinalhq/bqrunner/bqmacro"
	"github.com/cardinalhq/bqrunner/bqsql"
)

type fakeExecutor struct {
	mu    sync.Mutex
	sqls  []string
	ids   []string
	errOn string
}

func (f *fakeExecutor) Execute(ctx context.Context, sql, requestID string) (*bqjob.Result, error) {
	f.mu.Lock()
	f.sqls = append(f.sqls, sql)
	f.ids = append(f.ids, requestID)
	f.mu.Unlock()

	if f.errOn != "" && sql == f.errOn {
		return nil, &bqjob.ProviderError{Message: "BigQuery: boom", Status: 400, Reason: "invalidQuery: boom"}
	}
	return &bqjob.Result{
		JobID: "job-" + requestID[:8],
		Rows:  []*bigquery.TableRow{{F: []*bigquery.TableCell{{V: sql}}}},
	}, nil
}

func (f *fakeExecutor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sqls)
}

var testRange = TimeRange{From: time.UnixMilli(1000), To: time.UnixMilli(2000)}

func structuredTarget(refID string) *bqsql.Target {
	t := bqsql.NewTarget()
	t.RefID = refID
	t.Dataset = "ds"
	t.Table = "tbl"
	t.TimeColumn = "ts"
	t.Select = [][]bqsql.Part{{
		{Type: bqsql.PartColumn, Params: bqsql.Params{"value"}},
		{Type: bqsql.PartAggregate, Params: bqsql.Params{"avg"}},
	}}
	t.Group = []bqsql.Part{{Type: bqsql.PartTime, Params: bqsql.Params{"1h", "none"}}}
	return t
}

func TestCompile_Structured(t *testing.T) {
	sql, err := Compile(structuredTarget("A"), testRange, nil)
	require.NoError(t, err)

	assert.Contains(t, sql, "TIMESTAMP_SECONDS(DIV(UNIX_SECONDS(ts), 3600) * 3600),\n  avg(value)")
	assert.Contains(t, sql, "ts BETWEEN TIMESTAMP_MILLIS(1000) AND TIMESTAMP_MILLIS(2000)")
	assert.NotContains(t, sql, "$__")
}

func TestCompile_IntervalVariable(t *testing.T) {
	tgt := structuredTarget("A")
	tgt.Group = []bqsql.Part{{Type: bqsql.PartTime, Params: bqsql.Params{"$__interval", "none"}}}

	_, err := Compile(tgt, testRange, nil)
	var ivErr *bqmacro.UnsupportedIntervalError
	require.ErrorAs(t, err, &ivErr)

	sql, err := Compile(tgt, testRange, []bqsql.Variable{{Name: "__interval", Values: []string{"5m"}}})
	require.NoError(t, err)
	assert.Contains(t, sql, "DIV(UNIX_SECONDS(ts), 300) * 300")
}

func TestCompile_RawWithVariables(t *testing.T) {
	tgt := bqsql.NewTarget()
	tgt.RawQuery = true
	tgt.RawSQL = "SELECT * FROM ds.t WHERE $__timeFilter(created) AND host IN ($host)"

	sql, err := Compile(tgt, testRange, []bqsql.Variable{{Name: "host", Multi: true, Values: []string{"a", "O'Brien"}}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM ds.t WHERE created BETWEEN TIMESTAMP_MILLIS(1000) AND TIMESTAMP_MILLIS(2000) AND host IN ('a','O''Brien')", sql)
}

func TestCompile_NotConfigured(t *testing.T) {
	sql, err := Compile(bqsql.NewTarget(), testRange, nil)
	require.NoError(t, err)
	assert.Equal(t, "", sql)
}

func TestQuerier_RunsTargetsInOrder(t *testing.T) {
	exec := &fakeExecutor{}
	q := NewQuerier(exec, 0, 2)
	defer q.Close()

	hidden := structuredTarget("H")
	hidden.Hide = true
	b := structuredTarget("B")
	b.Table = "other"

	results, err := q.Query(t.Context(), QueryRequest{
		Range:   testRange,
		Targets: []*bqsql.Target{structuredTarget("A"), hidden, b, bqsql.NewTarget()},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "A", results[0].RefID)
	assert.Equal(t, "B", results[1].RefID)
	assert.Contains(t, results[1].SQL, "FROM ds.other")
	assert.Equal(t, results[1].SQL, results[1].Rows[0].F[0].V)

	// Unconfigured targets produce an empty result without a job.
	assert.Equal(t, "", results[2].SQL)
	assert.Empty(t, results[2].Rows)
	assert.Equal(t, 2, exec.calls())
	assert.NotEqual(t, exec.ids[0], exec.ids[1])
}

func TestQuerier_FailureFailsBatch(t *testing.T) {
	bad := structuredTarget("B")
	badSQL, err := Compile(bad, testRange, nil)
	require.NoError(t, err)

	exec := &fakeExecutor{errOn: badSQL}
	q := NewQuerier(exec, 0, 0)
	defer q.Close()

	a := structuredTarget("A")
	a.Table = "fine"
	_, err = q.Query(t.Context(), QueryRequest{Range: testRange, Targets: []*bqsql.Target{a, bad}})
	var perr *bqjob.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, err.Error(), "target B")
}

func TestQuerier_CacheSkipsExecution(t *testing.T) {
	exec := &fakeExecutor{}
	q := NewQuerier(exec, time.Minute, 0)
	defer q.Close()

	req := QueryRequest{Range: testRange, Targets: []*bqsql.Target{structuredTarget("A")}}
	first, err := q.Query(t.Context(), req)
	require.NoError(t, err)
	second, err := q.Query(t.Context(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, exec.calls())
	assert.False(t, first[0].Cached)
	assert.True(t, second[0].Cached)
	assert.Equal(t, first[0].Rows, second[0].Rows)
	assert.Equal(t, 1, q.cache.len())

	// A different range is a different statement.
	req.Range.To = time.UnixMilli(3000)
	_, err = q.Query(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, exec.calls())
}

func TestQuerier_DoesNotCacheCancelledJobs(t *testing.T) {
	var requests int
	req := bqjob.RequesterFunc(func(_ context.Context, _, _ string, _ any) (*bqjob.Response, error) {
		requests++
		if requests == 1 {
			return nil, fmt.Errorf("transport: %w", context.Canceled)
		}
		return &bqjob.Response{Status: 200, Data: []byte(`{
			"jobComplete": true,
			"jobReference": {"projectId": "proj", "jobId": "job1"},
			"schema": {"fields": [{"name": "v", "type": "INTEGER"}]},
			"rows": [{"f": [{"v": "1"}]}]
		}`)}, nil
	})
	cfg := bqjob.DefaultConfig()
	cfg.Project = "proj"
	q := NewQuerier(bqjob.NewExecutor(req, cfg), time.Minute, 0)
	defer q.Close()

	qr := QueryRequest{Range: testRange, Targets: []*bqsql.Target{structuredTarget("A")}}
	first, err := q.Query(t.Context(), qr)
	require.NoError(t, err)
	assert.Empty(t, first[0].Rows)
	assert.Zero(t, q.cache.len())

	second, err := q.Query(t.Context(), qr)
	require.NoError(t, err)
	assert.False(t, second[0].Cached)
	assert.Len(t, second[0].Rows, 1)
	assert.Equal(t, 2, requests)
	assert.Equal(t, 1, q.cache.len())
}

func TestQuerier_CompileErrorFailsBatch(t *testing.T) {
	exec := &fakeExecutor{}
	q := NewQuerier(exec, 0, 0)
	defer q.Close()

	tgt := structuredTarget("A")
	tgt.Group = []bqsql.Part{{Type: bqsql.PartTime, Params: bqsql.Params{"fortnight", "none"}}}
	_, err := q.Query(t.Context(), QueryRequest{Range: testRange, Targets: []*bqsql.Target{tgt}})
	require.Error(t, err)
	assert.Zero(t, exec.calls())
}

func TestResultCacheDisabled(t *testing.T) {
	c := newResultCache(0)
	c.set("x", &bqjob.Result{})
	_, ok := c.get("x")
	assert.False(t, ok)
	assert.Zero(t, c.len())
	c.stop()
}

func TestStatusAndCodeForRuntimeError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   APIErrorCode
	}{
		{"canceled", context.Canceled, statusClientClosedRequest, ErrClientClosed},
		{"poll timeout", bqjob.ErrPollTimeout, 504, ErrDeadlineExceeded},
		{"bad query", &bqjob.ProviderError{Status: 400}, 400, ErrProviderError},
		{"forbidden", &bqjob.ProviderError{Status: 403}, 403, ErrForbidden},
		{"backend", &bqjob.ProviderError{Status: 503}, 502, ErrProviderError},
		{"interval", &bqmacro.UnsupportedIntervalError{Macro: "timeGroup", Interval: "x"}, 400, ErrCompileError},
		{"unbalanced", bqmacro.ErrUnbalanced, 400, ErrCompileError},
		{"other", errors.New("boom"), 500, ErrInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := statusAndCodeForRuntimeError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
