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
	"github.com/spf13/cobra"

	"github.com/cardinalhq/bqrunner/bqsql"
	"github.com/cardinalhq/bqrunner/queryapi"
)

type compiledTarget struct {
	RefID    string   `json:"refId" yaml:"refId"`
	SQL      string   `json:"sql,omitempty" yaml:"sql,omitempty"`
	Problems []string `json:"problems,omitempty" yaml:"problems,omitempty"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func init() {
	var flags targetFlags
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "compile targets to BigQuery SQL without running them",
		RunE: func(c *cobra.Command, _ []string) error {
			tf, err := loadTargets(flags.file, c.InOrStdin())
			if err != nil {
				return err
			}
			r, err := flags.timeRange()
			if err != nil {
				return err
			}
			return writeOutput(c.OutOrStdout(), flags.output, compileTargets(tf, r))
		},
	}
	flags.register(cmd)

	rootCmd.AddCommand(cmd)
}

// compileTargets validates and compiles every visible target. Failures are
// reported per target rather than aborting the batch.
func compileTargets(tf *targetsFile, r queryapi.TimeRange) []compiledTarget {
	out := make([]compiledTarget, 0, len(tf.Targets))
	for _, t := range tf.Targets {
		if t.Hide {
			continue
		}
		ct := compiledTarget{RefID: t.RefID}
		if err := t.Validate(); err != nil {
			ct.Problems = bqsql.Problems(err)
		}
		sql, err := queryapi.Compile(t, r, tf.Variables)
		if err != nil {
			ct.Error = err.Error()
		}
		ct.SQL = sql
		out = append(out, ct)
	}
	return out
}
