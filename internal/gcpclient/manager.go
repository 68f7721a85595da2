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
	"context"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Manager handles authenticated GCP HTTP client creation and caching using
// Application Default Credentials.
type Manager struct {
	sync.RWMutex
	clients map[clientKey]*http.Client
	tracer  trace.Tracer
}

// NewManager creates a new GCP client manager.
func NewManager(ctx context.Context) (*Manager, error) {
	tracer := otel.Tracer("github.com/cardinalhq/bqrunner/internal/gcpclient")
	return &Manager{
		clients: make(map[clientKey]*http.Client),
		tracer:  tracer,
	}, nil
}
