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

package bqsql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
)

// ErrNotConfigured means the target cannot produce a query yet.
var ErrNotConfigured = errors.New("target is not configured")

var (
	aggregateFuncs  = mapset.NewSet("avg", "count", "max", "min", "sum", "stddev", "variance", "first", "last")
	percentileFuncs = mapset.NewSet("percentile_cont", "percentile_disc")
	movingFuncs     = mapset.NewSet("avg", "max", "min", "sum")
	whereMacros     = mapset.NewSet("$__timeFilter")
)

// Ready reports whether sql can be sent to BigQuery: it is non-empty and no
// column placeholder is left in it.
func Ready(sql string) bool {
	if strings.TrimSpace(sql) == "" {
		return false
	}
	return !strings.Contains(sql, TimeColumnUnset) && !strings.Contains(sql, ValueColumnUnset)
}

// Validate reports every problem with the target at once. Render does not
// call it; a target that fails validation still renders to some SQL.
func (t *Target) Validate() error {
	var errs *multierror.Error

	if t.RawQuery {
		if strings.TrimSpace(t.RawSQL) == "" {
			errs = multierror.Append(errs, fmt.Errorf("raw query: %w", ErrNotConfigured))
		}
		return errs.ErrorOrNil()
	}

	if t.Dataset == "" || t.Table == "" {
		errs = multierror.Append(errs, fmt.Errorf("dataset and table are required: %w", ErrNotConfigured))
	}
	if t.TimeColumn == "" || t.TimeColumn == TimeColumnUnset {
		errs = multierror.Append(errs, fmt.Errorf("time column is required: %w", ErrNotConfigured))
	}

	for i, group := range t.Select {
		for _, err := range validateSelectGroup(group) {
			errs = multierror.Append(errs, fmt.Errorf("select %d: %w", i, err))
		}
	}

	timeGroups := 0
	for i, g := range t.Group {
		switch g.Type {
		case PartTime:
			timeGroups++
			if g.Param(0) == "" {
				errs = multierror.Append(errs, fmt.Errorf("group %d: time group needs an interval", i))
			}
		case PartColumn:
			if g.Param(0) == "" {
				errs = multierror.Append(errs, fmt.Errorf("group %d: column group needs a column", i))
			}
		default:
			errs = multierror.Append(errs, fmt.Errorf("group %d: unknown part type %q", i, g.Type))
		}
	}
	if timeGroups > 1 {
		errs = multierror.Append(errs, errors.New("only one time group is allowed"))
	}

	for i, w := range t.Where {
		switch w.Type {
		case PartMacro:
			if !whereMacros.Contains(w.Name) {
				errs = multierror.Append(errs, fmt.Errorf("where %d: unknown macro %q", i, w.Name))
			}
		case PartExpression:
			if len(w.Params) != 3 {
				errs = multierror.Append(errs, fmt.Errorf("where %d: expression needs left, operator and right", i))
			}
		default:
			errs = multierror.Append(errs, fmt.Errorf("where %d: unknown part type %q", i, w.Type))
		}
	}

	return errs.ErrorOrNil()
}

func validateSelectGroup(parts []Part) []error {
	var errs []error
	columns := 0
	for _, p := range parts {
		switch p.Type {
		case PartColumn:
			columns++
			if c := p.Param(0); c == "" || c == ValueColumnUnset {
				errs = append(errs, fmt.Errorf("value column is required: %w", ErrNotConfigured))
			}
		case PartAggregate:
			if !aggregateFuncs.Contains(p.Param(0)) {
				errs = append(errs, fmt.Errorf("unknown aggregate %q", p.Param(0)))
			}
		case PartPercentile:
			if !percentileFuncs.Contains(p.Param(0)) {
				errs = append(errs, fmt.Errorf("unknown percentile function %q", p.Param(0)))
			}
			if f, err := strconv.ParseFloat(p.Param(1), 64); err != nil || f < 0 || f > 1 {
				errs = append(errs, fmt.Errorf("percentile fraction %q must be between 0 and 1", p.Param(1)))
			}
		case PartWindow:
			if !isIdentifier(p.Param(0)) {
				errs = append(errs, fmt.Errorf("invalid window function %q", p.Param(0)))
			}
		case PartMovingWindow:
			if !movingFuncs.Contains(p.Param(0)) {
				errs = append(errs, fmt.Errorf("unknown moving window function %q", p.Param(0)))
			}
			if n, err := strconv.Atoi(p.Param(1)); err != nil || n < 1 {
				errs = append(errs, fmt.Errorf("moving window size %q must be a positive integer", p.Param(1)))
			}
		case PartAlias:
			if !isIdentifier(p.Param(0)) {
				errs = append(errs, fmt.Errorf("invalid alias %q", p.Param(0)))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown part type %q", p.Type))
		}
	}
	if columns != 1 {
		errs = append(errs, fmt.Errorf("expected exactly one column part, found %d", columns))
	}
	return errs
}

func isIdentifier(s string) bool {
	return s != "" && identifier(s) == s && (s[0] < '0' || s[0] > '9')
}

// Problems flattens a Validate error into one message per problem.
func Problems(err error) []string {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		out := make([]string, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
