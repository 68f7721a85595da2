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
	"log/slog"
	"net"
	"net/http"
	"time"
)

type QuerierService struct {
	querier   *Querier
	addr      string
	listening func()
}

func NewQuerierService(querier *Querier, addr string) (*QuerierService, error) {
	if querier == nil {
		return nil, errors.New("querier is required")
	}
	if addr == "" {
		addr = ":8080"
	}
	return &QuerierService{querier: querier, addr: addr}, nil
}

// OnListening registers fn to run once the listener is bound.
func (q *QuerierService) OnListening(fn func()) {
	q.listening = fn
}

// Handler returns the API routes.
func (q *QuerierService) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/query", requestIDMiddleware(q.handleQuery))
	mux.HandleFunc("/api/v1/compile", requestIDMiddleware(q.handleCompile))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (q *QuerierService) Run(doneCtx context.Context) error {
	slog.Info("Starting query API", slog.String("addr", q.addr))

	srv := &http.Server{
		Addr:              q.addr,
		Handler:           q.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", q.addr)
	if err != nil {
		return fmt.Errorf("query API listen: %w", err)
	}
	if q.listening != nil {
		q.listening()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start HTTP server", slog.Any("error", err))
			errCh <- err
		}
	}()

	select {
	case <-doneCtx.Done():
	case err := <-errCh:
		return fmt.Errorf("query API server: %w", err)
	}

	slog.Info("Shutting down query API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shutdown HTTP server", slog.Any("error", err))
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
