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
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/bqrunner/internal/logctx"
)

const structuredBody = `{
	"from": 1000,
	"to": 2000,
	"targets": [{
		"refId": "A",
		"dataset": "ds",
		"table": "tbl",
		"timeColumn": "ts",
		"metricColumn": "host",
		"select": [[{"type": "column", "params": ["value"]}, {"type": "aggregate", "params": ["max"]}]],
		"group": [{"type": "time", "params": ["1m", "none"]}]
	}]
}`

func newTestService(t *testing.T, exec Executor) *httptest.Server {
	q := NewQuerier(exec, 0, 0)
	t.Cleanup(q.Close)
	svc, err := NewQuerierService(q, "")
	require.NoError(t, err)
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHandleQuery(t *testing.T) {
	exec := &fakeExecutor{}
	srv := newTestService(t, exec)

	resp := post(t, srv.URL+"/api/v1/query", structuredBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	var body struct {
		Results []TargetResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "A", body.Results[0].RefID)
	assert.Contains(t, body.Results[0].SQL, "host AS metric")
	assert.Contains(t, body.Results[0].SQL, "GROUP BY 1,2")
	assert.Len(t, body.Results[0].Rows, 1)
	assert.Equal(t, 1, exec.calls())
}

func TestHandleQuery_ProviderError(t *testing.T) {
	var p queryPayload
	require.NoError(t, json.Unmarshal([]byte(structuredBody), &p))
	sql, err := Compile(p.Targets[0], testRange, nil)
	require.NoError(t, err)

	srv := newTestService(t, &fakeExecutor{errOn: sql})

	resp := post(t, srv.URL+"/api/v1/query", structuredBody)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var apiErr APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, ErrProviderError, apiErr.Code)
	assert.Equal(t, "BigQuery: boom", apiErr.Message)
	assert.Equal(t, "invalidQuery: boom", apiErr.Reason)
}

func TestHandleCompile_ReportsProblems(t *testing.T) {
	srv := newTestService(t, &fakeExecutor{})

	body := `{"from": 1000, "to": 2000, "targets": [{"refId": "A", "dataset": "ds", "table": "tbl"}]}`
	resp := post(t, srv.URL+"/api/v1/compile", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Results []compileResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Results, 1)
	assert.Len(t, out.Results[0].Problems, 2)
	assert.Contains(t, out.Results[0].SQL, "-- time --")
}

func TestHandleCompile_MacroError(t *testing.T) {
	srv := newTestService(t, &fakeExecutor{})

	body := `{"from": 1000, "to": 2000, "targets": [{"refId": "A", "rawSql": "SELECT $__timeGroup(ts, 7x) FROM t"}]}`
	resp := post(t, srv.URL+"/api/v1/compile", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var apiErr APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, ErrCompileError, apiErr.Code)
}

func TestReadQueryPayload_Rejects(t *testing.T) {
	srv := newTestService(t, &fakeExecutor{})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"no targets", `{"from": 1, "to": 2}`, http.StatusBadRequest},
		{"inverted range", `{"from": 2000, "to": 1000, "targets": [{}]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+"/api/v1/query", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	resp, err := http.Get(srv.URL + "/api/v1/query")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestReadQueryPayload_TooLarge(t *testing.T) {
	body := `{"targets": [], "pad": "` + strings.Repeat("x", maxPayloadBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	assert.Nil(t, readQueryPayload(rec, req))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var apiErr APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
	assert.Equal(t, PayloadTooLarge, apiErr.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestService(t, &fakeExecutor{})

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, srv.URL+"/api/v1/compile", strings.NewReader(structuredBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestQuerierService_RunStopsOnCancel(t *testing.T) {
	q := NewQuerier(&fakeExecutor{}, 0, 0)
	t.Cleanup(q.Close)
	svc, err := NewQuerierService(q, "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	listening := make(chan struct{})
	svc.OnListening(func() {
		close(listening)
		cancel()
	})

	require.NoError(t, svc.Run(ctx))
	select {
	case <-listening:
	default:
		t.Fatal("listener hook was not called")
	}
}

func TestRequestIDMiddleware_ScopesLogger(t *testing.T) {
	var got string
	h := requestIDMiddleware(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestIDFromContext(r.Context())
		assert.NotSame(t, slog.Default(), logctx.FromContext(r.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/query", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, "req-42", got)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}
