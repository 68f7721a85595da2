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
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	targetCounter      metric.Int64Counter
	cacheLookupCounter metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/bqrunner/queryapi")

	var err error

	targetCounter, err = meter.Int64Counter(
		"bqrunner.queryapi.targets",
		metric.WithDescription("Number of visible targets received in query batches"),
	)
	if err != nil {
		log.Fatalf("failed to create queryapi.targets counter: %v", err)
	}

	cacheLookupCounter, err = meter.Int64Counter(
		"bqrunner.queryapi.cache.lookups",
		metric.WithDescription("Number of result cache lookups by outcome"),
	)
	if err != nil {
		log.Fatalf("failed to create queryapi.cache.lookups counter: %v", err)
	}
}

func recordTargets(ctx context.Context, n int) {
	targetCounter.Add(ctx, int64(n))
}

func recordCacheLookup(ctx context.Context, hit bool) {
	cacheLookupCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}
