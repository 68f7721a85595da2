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
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	submissionCounter metric.Int64Counter
	retryCounter      metric.Int64Counter
	pollCounter       metric.Int64Counter
	jobDuration       metric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/bqrunner/bqjob")

	var err error

	submissionCounter, err = meter.Int64Counter(
		"bqrunner.bqjob.submissions",
		metric.WithDescription("Number of query jobs submitted to BigQuery"),
	)
	if err != nil {
		log.Fatalf("failed to create bqjob.submissions counter: %v", err)
	}

	retryCounter, err = meter.Int64Counter(
		"bqrunner.bqjob.request.retries",
		metric.WithDescription("Number of BigQuery requests retried after a transient failure"),
	)
	if err != nil {
		log.Fatalf("failed to create bqjob.request.retries counter: %v", err)
	}

	pollCounter, err = meter.Int64Counter(
		"bqrunner.bqjob.polls",
		metric.WithDescription("Number of job completion polls"),
	)
	if err != nil {
		log.Fatalf("failed to create bqjob.polls counter: %v", err)
	}

	jobDuration, err = meter.Float64Histogram(
		"bqrunner.bqjob.duration",
		metric.WithDescription("Time from submission to the end of a query job"),
		metric.WithUnit("s"),
	)
	if err != nil {
		log.Fatalf("failed to create bqjob.duration histogram: %v", err)
	}
}

func recordRetry(ctx context.Context, method string, status int) {
	retryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.Int("status", status),
	))
}

func recordJob(ctx context.Context, phase Phase, polls int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("phase", phase.String()))
	jobDuration.Record(ctx, elapsed.Seconds(), attrs)
	pollCounter.Add(ctx, int64(polls), attrs)
}
