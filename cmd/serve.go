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

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cardinalhq/bqrunner/config"
	"github.com/cardinalhq/bqrunner/internal/healthcheck"
	"github.com/cardinalhq/bqrunner/queryapi"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the query API server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			addlAttrs := attribute.NewSet(attribute.String("project", cfg.BigQuery.Project))
			doneCtx, doneFx, err := setupTelemetry(config.ServiceNameServe, &addlAttrs)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			healthServer := healthcheck.NewServer(healthcheck.GetConfigFromEnv())
			healthServer.SetReadyCondition(healthcheck.ConditionBigQueryClient, false)
			healthServer.SetReadyCondition(healthcheck.ConditionAPIListening, false)
			healthServer.SetStatus(healthcheck.StatusHealthy)
			go func() {
				if err := healthServer.Start(doneCtx); err != nil {
					slog.Error("Health check server stopped", slog.Any("error", err))
				}
			}()

			exec, err := newExecutor(doneCtx, cfg.BigQuery)
			if err != nil {
				slog.Error("Failed to create BigQuery executor", slog.Any("error", err))
				return err
			}
			healthServer.SetReadyCondition(healthcheck.ConditionBigQueryClient, true)

			querier := queryapi.NewQuerier(exec, cfg.API.CacheTTL, cfg.API.Concurrency)
			defer querier.Close()

			svc, err := queryapi.NewQuerierService(querier, cfg.API.Listen)
			if err != nil {
				return fmt.Errorf("failed to create querier service: %w", err)
			}
			svc.OnListening(func() {
				healthServer.SetReadyCondition(healthcheck.ConditionAPIListening, true)
			})

			return svc.Run(doneCtx)
		},
	}

	rootCmd.AddCommand(cmd)
}
