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
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	bigquery "google.golang.org/api/bigquery/v2"

	"github.com/cardinalhq/bqrunner/config"
	"github.com/cardinalhq/bqrunner/internal/helpers"
	"github.com/cardinalhq/bqrunner/queryapi"
)

// resultTable is a target result flattened for display.
type resultTable struct {
	RefID   string   `json:"refId" yaml:"refId"`
	JobID   string   `json:"jobId,omitempty" yaml:"jobId,omitempty"`
	SQL     string   `json:"sql,omitempty" yaml:"sql,omitempty"`
	Columns []string `json:"columns" yaml:"columns"`
	Rows    [][]any  `json:"rows" yaml:"rows"`
}

func init() {
	var flags targetFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "compile targets and run them as BigQuery jobs",
		RunE: func(c *cobra.Command, _ []string) error {
			tf, err := loadTargets(flags.file, c.InOrStdin())
			if err != nil {
				return err
			}
			r, err := flags.timeRange()
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			addlAttrs := attribute.NewSet(attribute.String("project", cfg.BigQuery.Project))
			doneCtx, doneFx, err := setupTelemetry(config.ServiceNameRun, &addlAttrs)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			exec, err := newExecutor(doneCtx, cfg.BigQuery)
			if err != nil {
				return err
			}
			querier := queryapi.NewQuerier(exec, 0, cfg.API.Concurrency)
			defer querier.Close()

			start := time.Now()
			results, err := querier.Query(doneCtx, queryapi.QueryRequest{
				Range:     r,
				Targets:   tf.Targets,
				Variables: tf.Variables,
			})
			if err != nil {
				return err
			}
			slog.Info("Query complete",
				slog.Int("targets", len(results)),
				slog.String("elapsed", helpers.FormatDuration(time.Since(start))))

			tables := make([]resultTable, 0, len(results))
			for _, res := range results {
				tables = append(tables, toTable(res))
			}
			return writeOutput(c.OutOrStdout(), flags.output, tables)
		},
	}
	flags.register(cmd)

	rootCmd.AddCommand(cmd)
}

func toTable(res queryapi.TargetResult) resultTable {
	t := resultTable{
		RefID:   res.RefID,
		JobID:   res.JobID,
		SQL:     res.SQL,
		Columns: columnNames(res.Schema),
		Rows:    make([][]any, 0, len(res.Rows)),
	}
	for _, row := range res.Rows {
		if row == nil {
			continue
		}
		vals := make([]any, len(row.F))
		for i, cell := range row.F {
			if cell != nil {
				vals[i] = cell.V
			}
		}
		t.Rows = append(t.Rows, vals)
	}
	return t
}

func columnNames(schema *bigquery.TableSchema) []string {
	if schema == nil {
		return []string{}
	}
	names := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		names[i] = f.Name
	}
	return names
}
