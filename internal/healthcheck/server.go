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

package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type Status int32

const (
	StatusStarting Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Readiness conditions set by the serve command.
const (
	ConditionBigQueryClient = "bigquery_client"
	ConditionAPIListening   = "api_listening"
)

// Response is the body of every probe.
type Response struct {
	Healthy bool   `json:"healthy"`
	Status  string `json:"status"`
	// Pending lists readiness conditions that are not met, on /readyz only.
	Pending []string `json:"pending,omitempty"`
}

// Server answers liveness, health and readiness probes. Readiness requires
// every registered condition to be true.
type Server struct {
	port       int
	status     atomic.Int32
	mu         sync.RWMutex
	conditions map[string]bool
	server     *http.Server
}

type Config struct {
	Port int
}

const defaultPort = 8090

// GetConfigFromEnv reads HEALTH_CHECK_PORT, falling back to 8090.
func GetConfigFromEnv() Config {
	port := defaultPort
	if portStr := os.Getenv("HEALTH_CHECK_PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil && p > 0 && p < 65536 {
			port = p
		}
	}
	return Config{Port: port}
}

func NewServer(config Config) *Server {
	if config.Port == 0 {
		config.Port = defaultPort
	}
	return &Server{
		port:       config.Port,
		conditions: make(map[string]bool),
	}
}

func (s *Server) SetStatus(status Status) {
	s.status.Store(int32(status))
	slog.Debug("Health check status updated", slog.String("status", status.String()))
}

func (s *Server) GetStatus() Status {
	return Status(s.status.Load())
}

// SetReadyCondition registers or updates a named readiness condition.
func (s *Server) SetReadyCondition(name string, ready bool) {
	s.mu.Lock()
	s.conditions[name] = ready
	s.mu.Unlock()
	slog.Debug("Ready condition updated", slog.String("condition", name), slog.Bool("ready", ready))
}

// pending returns the unmet conditions in name order.
func (s *Server) pending() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for name, ok := range s.conditions {
		if !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// IsReady is true once the server is healthy, at least one condition is
// registered and all conditions are met.
func (s *Server) IsReady() bool {
	if s.GetStatus() != StatusHealthy {
		return false
	}
	s.mu.RLock()
	n := len(s.conditions)
	s.mu.RUnlock()
	return n > 0 && len(s.pending()) == 0
}

// Handler returns the probe routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeProbe(w, s.GetStatus() == StatusHealthy, nil)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeProbe(w, s.IsReady(), s.pending())
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		s.writeProbe(w, s.GetStatus() != StatusUnhealthy, nil)
	})
	return mux
}

// Start serves probes until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("Starting health check server", slog.Int("port", s.port))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health check server error", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	return s.Stop()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	slog.Info("Stopping health check server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) writeProbe(w http.ResponseWriter, ok bool, pending []string) {
	w.Header().Set("Content-Type", "application/json")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	resp := Response{Healthy: ok, Status: s.GetStatus().String(), Pending: pending}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode health check response", slog.Any("error", err))
	}
}
