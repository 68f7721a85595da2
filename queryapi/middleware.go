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
	"log/slog"
	"net/http"
	"time"

	"github.com/cardinalhq/bqrunner/internal/idgen"
	"github.com/cardinalhq/bqrunner/internal/logctx"
)

// RequestIDHeader carries the caller's request id.
const RequestIDHeader = "X-Request-Id"

// Context key for storing the request ID
type contextKey struct{}

var requestIDKey = contextKey{}

// WithRequestID returns a new context with the request ID stored in it
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestIDFromContext retrieves the request ID from the context
func GetRequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestIDMiddleware tags each request with the caller's X-Request-Id or a
// fresh one, echoes it in the response and logs the request.
func requestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = idgen.NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := logctx.With(WithRequestID(r.Context(), id), slog.String("requestID", id))
		start := time.Now()
		next(w, r.WithContext(ctx))
		logctx.FromContext(ctx).Debug("Handled API request",
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)))
	}
}
