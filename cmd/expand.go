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
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/bqrunner/bqmacro"
	"github.com/cardinalhq/bqrunner/bqsql"
	"github.com/cardinalhq/bqrunner/internal/helpers"
)

func init() {
	var (
		from, to   string
		timeColumn string
		vars       []string
	)
	cmd := &cobra.Command{
		Use:   "expand [sql]",
		Short: "expand macros and variables in raw SQL",
		Long:  "Expand $__ macros and template variables in SQL given as an argument or on stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var sql string
			if len(args) == 1 {
				sql = args[0]
			} else {
				b, err := io.ReadAll(c.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read SQL: %w", err)
				}
				sql = string(b)
			}
			start, end, err := helpers.ParseTimeRange(from, to)
			if err != nil {
				return err
			}
			variables, err := parseVariables(vars)
			if err != nil {
				return err
			}
			out, err := expandSQL(sql, bqmacro.Env{From: start, To: end, TimeColumn: timeColumn}, variables)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "e-1h", "range start (epoch ms, RFC3339 or relative)")
	cmd.Flags().StringVar(&to, "to", "now", "range end (epoch ms, RFC3339 or relative)")
	cmd.Flags().StringVar(&timeColumn, "time-column", "", "column that replaces the $__timeFilter argument")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "template variable as name=value[,value...]; repeatable")

	rootCmd.AddCommand(cmd)
}

func expandSQL(sql string, env bqmacro.Env, vars []bqsql.Variable) (string, error) {
	return bqmacro.Expand(bqsql.Interpolate(strings.TrimSpace(sql), vars), env)
}

// parseVariables turns name=a,b flags into variables. More than one value
// makes the variable multi-valued.
func parseVariables(flags []string) ([]bqsql.Variable, error) {
	out := make([]bqsql.Variable, 0, len(flags))
	for _, f := range flags {
		name, value, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid variable %q, want name=value", f)
		}
		values := strings.Split(value, ",")
		out = append(out, bqsql.Variable{Name: name, Multi: len(values) > 1, Values: values})
	}
	return out, nil
}
