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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cardinalhq/oteltools/pkg/dateutils"

	"github.com/cardinalhq/bqrunner/bqjob"
	"github.com/cardinalhq/bqrunner/bqmacro"
	"github.com/cardinalhq/bqrunner/bqsql"
	"github.com/cardinalhq/bqrunner/internal/logctx"
)

type queryPayload struct {
	// S and E are relative or absolute times such as "e-1h" and "now".
	S string `json:"s,omitempty"`
	E string `json:"e,omitempty"`
	// From and To are epoch milliseconds and take precedence over S and E.
	From int64 `json:"from,omitempty"`
	To   int64 `json:"to,omitempty"`

	Targets   []*bqsql.Target  `json:"targets"`
	Variables []bqsql.Variable `json:"variables,omitempty"`

	// derived fields
	Range TimeRange `json:"-"`
}

const maxPayloadBytes = 4 << 20

func readQueryPayload(w http.ResponseWriter, r *http.Request) *queryPayload {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST method is allowed", http.StatusMethodNotAllowed)
		return nil
	}
	defer func() { _ = r.Body.Close() }()
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		http.Error(w, "unsupported content type", http.StatusBadRequest)
		return nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAPIError(w, http.StatusRequestEntityTooLarge, PayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return nil
		}
		writeAPIError(w, http.StatusBadRequest, InvalidJSON, "failed to read body: "+err.Error())
		return nil
	}

	var p queryPayload
	if err := json.Unmarshal(body, &p); err != nil {
		writeAPIError(w, http.StatusBadRequest, InvalidJSON, "invalid JSON body: "+err.Error())
		return nil
	}
	if len(p.Targets) == 0 {
		writeAPIError(w, http.StatusBadRequest, ValidationFailed, "missing targets")
		return nil
	}

	st, en := p.From, p.To
	if st == 0 && en == 0 {
		st, en, err = dateutils.ToStartEnd(p.S, p.E)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, ValidationFailed, "invalid start/end time: "+err.Error())
			return nil
		}
	}
	if st >= en {
		writeAPIError(w, http.StatusBadRequest, ValidationFailed, "start must be < end")
		return nil
	}
	p.Range = TimeRange{From: time.UnixMilli(st).UTC(), To: time.UnixMilli(en).UTC()}
	return &p
}

type APIErrorCode string

const (
	InvalidJSON           APIErrorCode = "INVALID_JSON"
	PayloadTooLarge       APIErrorCode = "PAYLOAD_TOO_LARGE"
	ValidationFailed      APIErrorCode = "VALIDATION_FAILED"
	ErrCompileError       APIErrorCode = "COMPILE_ERROR"
	ErrProviderError      APIErrorCode = "PROVIDER_ERROR"
	ErrInternalError      APIErrorCode = "INTERNAL_ERROR"
	ErrClientClosed       APIErrorCode = "CLIENT_CLOSED"
	ErrDeadlineExceeded   APIErrorCode = "DEADLINE_EXCEEDED"
	ErrServiceUnavailable APIErrorCode = "SERVICE_UNAVAILABLE"
	ErrForbidden          APIErrorCode = "FORBIDDEN"
	ErrUnauthorized       APIErrorCode = "UNAUTHORIZED"
	ErrNotFound           APIErrorCode = "NOT_FOUND"
	ErrRateLimited        APIErrorCode = "RATE_LIMITED"
)

type APIError struct {
	Status  int          `json:"status"`
	Code    APIErrorCode `json:"code"`
	Message string       `json:"message"`
	// Reason is the provider's reason string for PROVIDER_ERROR.
	Reason string `json:"reason,omitempty"`
}

func writeAPIError(w http.ResponseWriter, status int, code APIErrorCode, msg string) {
	writeAPIErrorBody(w, APIError{Status: status, Code: code, Message: msg})
}

func writeAPIErrorBody(w http.ResponseWriter, e APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e)
}

// Non-standard but used by many proxies for client disconnects.
const statusClientClosedRequest = 499

func statusAndCodeForRuntimeError(err error) (int, APIErrorCode) {
	if err == nil {
		return http.StatusOK, ""
	}
	if errors.Is(err, context.Canceled) {
		return statusClientClosedRequest, ErrClientClosed
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, bqjob.ErrPollTimeout) {
		return http.StatusGatewayTimeout, ErrDeadlineExceeded
	}

	var perr *bqjob.ProviderError
	if errors.As(err, &perr) {
		switch {
		case perr.Status == http.StatusUnauthorized:
			return http.StatusUnauthorized, ErrUnauthorized
		case perr.Status == http.StatusForbidden:
			return http.StatusForbidden, ErrForbidden
		case perr.Status == http.StatusNotFound:
			return http.StatusNotFound, ErrNotFound
		case perr.Status == http.StatusTooManyRequests:
			return http.StatusTooManyRequests, ErrRateLimited
		case perr.Status >= 400 && perr.Status < 500:
			return http.StatusBadRequest, ErrProviderError
		default:
			return http.StatusBadGateway, ErrProviderError
		}
	}

	var argErr *bqmacro.ArgumentError
	var ivErr *bqmacro.UnsupportedIntervalError
	if errors.As(err, &argErr) || errors.As(err, &ivErr) || errors.Is(err, bqmacro.ErrUnbalanced) {
		return http.StatusBadRequest, ErrCompileError
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return http.StatusGatewayTimeout, ErrDeadlineExceeded
		}
		return http.StatusServiceUnavailable, ErrServiceUnavailable
	}

	return http.StatusInternalServerError, ErrInternalError
}

func writeRuntimeError(w http.ResponseWriter, err error) {
	status, code := statusAndCodeForRuntimeError(err)
	body := APIError{Status: status, Code: code, Message: err.Error()}
	var perr *bqjob.ProviderError
	if errors.As(err, &perr) {
		body.Message = perr.Message
		body.Reason = perr.Reason
	}
	writeAPIErrorBody(w, body)
}

func (q *QuerierService) handleQuery(w http.ResponseWriter, r *http.Request) {
	p := readQueryPayload(w, r)
	if p == nil {
		return
	}

	results, err := q.querier.Query(r.Context(), QueryRequest{
		Range:     p.Range,
		Targets:   p.Targets,
		Variables: p.Variables,
	})
	if err != nil {
		logctx.FromContext(r.Context()).Error("Query failed", slog.Any("error", err))
		writeRuntimeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
}

type compileResult struct {
	RefID    string   `json:"refId"`
	SQL      string   `json:"sql"`
	Problems []string `json:"problems,omitempty"`
}

func (q *QuerierService) handleCompile(w http.ResponseWriter, r *http.Request) {
	p := readQueryPayload(w, r)
	if p == nil {
		return
	}

	results := make([]compileResult, 0, len(p.Targets))
	for _, t := range p.Targets {
		if t == nil {
			continue
		}
		cr := compileResult{RefID: t.RefID}
		if err := t.Validate(); err != nil {
			cr.Problems = bqsql.Problems(err)
		}
		sql, err := Compile(t, p.Range, p.Variables)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, ErrCompileError, "target "+t.RefID+": "+err.Error())
			return
		}
		cr.SQL = sql
		results = append(results, cr)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
}
