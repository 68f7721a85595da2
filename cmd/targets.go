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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/bqrunner/bqsql"
	"github.com/cardinalhq/bqrunner/config"
	"github.com/cardinalhq/bqrunner/internal/helpers"
	"github.com/cardinalhq/bqrunner/queryapi"
)

// targetsFile is the document read by the compile and run commands. JSON is
// accepted as well since it is valid YAML.
type targetsFile struct {
	Targets   []*bqsql.Target  `yaml:"targets"`
	Variables []bqsql.Variable `yaml:"variables"`
}

// targetFlags are the flags shared by commands that read a targets file.
type targetFlags struct {
	file   string
	from   string
	to     string
	output string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", config.DefaultTargetsFile, "targets file, or - for stdin")
	cmd.Flags().StringVar(&f.from, "from", "e-1h", "range start (epoch ms, RFC3339 or relative)")
	cmd.Flags().StringVar(&f.to, "to", "now", "range end (epoch ms, RFC3339 or relative)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "yaml", "output format: yaml or json")
}

func (f *targetFlags) timeRange() (queryapi.TimeRange, error) {
	from, to, err := helpers.ParseTimeRange(f.from, f.to)
	if err != nil {
		return queryapi.TimeRange{}, err
	}
	return queryapi.TimeRange{From: from, To: to}, nil
}

func loadTargets(path string, stdin io.Reader) (*targetsFile, error) {
	var r io.Reader = stdin
	if path != "-" {
		fh, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open targets file: %w", err)
		}
		defer func() { _ = fh.Close() }()
		r = fh
	}
	return decodeTargets(r)
}

func decodeTargets(r io.Reader) (*targetsFile, error) {
	var tf targetsFile
	if err := yaml.NewDecoder(r).Decode(&tf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("targets file is empty")
		}
		return nil, fmt.Errorf("failed to decode targets: %w", err)
	}
	for i, t := range tf.Targets {
		if t == nil {
			return nil, fmt.Errorf("target %d is empty", i)
		}
		if t.RefID == "" {
			t.RefID = string(rune('A' + i%26))
		}
	}
	if len(tf.Targets) == 0 {
		return nil, errors.New("no targets defined")
	}
	return &tf, nil
}

func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
