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

package gcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cardinalhq/bqrunner/bqjob"
)

// DefaultBaseURL is the BigQuery REST endpoint; paths start with "v2/".
const DefaultBaseURL = "https://bigquery.googleapis.com/bigquery/"

// maxResponseBytes bounds a single response body.
const maxResponseBytes = 256 << 20

// HTTPRequester sends BigQuery REST requests over an HTTP client.
type HTTPRequester struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
}

var _ bqjob.Requester = (*HTTPRequester)(nil)

// NewHTTPRequester returns a requester that resolves paths against baseURL.
// An empty baseURL selects DefaultBaseURL and a nil tracer disables spans.
func NewHTTPRequester(client *http.Client, baseURL string, tracer trace.Tracer) *HTTPRequester {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &HTTPRequester{client: client, baseURL: baseURL, tracer: tracer}
}

// Do implements bqjob.Requester.
func (r *HTTPRequester) Do(ctx context.Context, method, path string, body any) (*bqjob.Response, error) {
	ctx, span := r.tracer.Start(ctx, "bigquery.request", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("bigquery.path", path),
	))
	defer span.End()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "encoding request")
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+strings.TrimPrefix(path, "/"), reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "building request")
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reading response")
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return &bqjob.Response{Status: resp.StatusCode, Data: data}, nil
}
