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

// Package bqmacro rewrites the $__ macro calls that appear in dashboard SQL
// into plain BigQuery standard SQL for a concrete time range.
package bqmacro

import (
	"fmt"
	"strings"
	"time"
)

const macroPrefix = "$__"

// Env carries the values macro calls are resolved against.
type Env struct {
	From time.Time
	To   time.Time

	// TimeColumn is the target's configured time column. When set it
	// replaces the argument of $__timeFilter.
	TimeColumn string
}

type expander func(env Env, name string, args []string) (string, error)

var macros = map[string]expander{
	"timeFilter":     expandTimeFilter,
	"timeGroup":      expandTimeGroup,
	"timeGroupAlias": expandTimeGroup,
	"timeFrom":       expandTimeFrom,
	"timeTo":         expandTimeTo,
}

// Known reports whether name (with or without the $__ prefix) is a macro
// Expand knows how to rewrite.
func Known(name string) bool {
	_, ok := macros[strings.TrimPrefix(name, macroPrefix)]
	return ok
}

// Expand replaces every known macro call in sql. Each call is resolved on its
// own, so two $__timeGroup calls with different intervals produce different
// bucket widths. Unknown $__ tokens are copied through untouched.
//
// An interval that cannot be turned into a whole number of seconds yields an
// *UnsupportedIntervalError rather than a partial expression.
func Expand(sql string, env Env) (string, error) {
	if !strings.Contains(sql, macroPrefix) {
		return sql, nil
	}

	var out strings.Builder
	out.Grow(len(sql))

	pos := 0
	for {
		idx := strings.Index(sql[pos:], macroPrefix)
		if idx < 0 {
			out.WriteString(sql[pos:])
			break
		}
		start := pos + idx
		out.WriteString(sql[pos:start])

		nameStart := start + len(macroPrefix)
		nameEnd := nameStart
		for nameEnd < len(sql) && isIdentChar(sql[nameEnd]) {
			nameEnd++
		}
		name := sql[nameStart:nameEnd]

		fn, ok := macros[name]
		if !ok || nameEnd >= len(sql) || sql[nameEnd] != '(' {
			out.WriteString(sql[start:nameEnd])
			pos = nameEnd
			continue
		}

		closeIdx, err := matchingParen(sql, nameEnd)
		if err != nil {
			return "", fmt.Errorf("%s%s at offset %d: %w", macroPrefix, name, start, err)
		}

		args := splitArgs(sql[nameEnd+1 : closeIdx])
		expanded, err := fn(env, name, args)
		if err != nil {
			return "", err
		}
		out.WriteString(expanded)
		pos = closeIdx + 1
	}

	return out.String(), nil
}

func expandTimeFilter(env Env, name string, args []string) (string, error) {
	column := env.TimeColumn
	if column == "" && len(args) > 0 {
		column = args[0]
	}
	if column == "" {
		return "", &ArgumentError{Macro: name, Reason: "no time column"}
	}
	return fmt.Sprintf("%s BETWEEN TIMESTAMP_MILLIS(%d) AND TIMESTAMP_MILLIS(%d)",
		column, env.From.UnixMilli(), env.To.UnixMilli()), nil
}

// expandTimeGroup handles both the aliased and plain forms. The optional third
// argument (fill policy) has no SQL representation and is dropped.
func expandTimeGroup(_ Env, name string, args []string) (string, error) {
	if len(args) < 2 || args[0] == "" {
		return "", &ArgumentError{Macro: name, Reason: "expected (column, interval[, fill])"}
	}
	secs, err := BucketSeconds(args[1])
	if err != nil {
		return "", &UnsupportedIntervalError{Macro: name, Interval: args[1]}
	}
	return fmt.Sprintf("TIMESTAMP_SECONDS(DIV(UNIX_SECONDS(%s), %d) * %d)", args[0], secs, secs), nil
}

func expandTimeFrom(env Env, _ string, _ []string) (string, error) {
	return fmt.Sprintf("TIMESTAMP_MILLIS(%d)", env.From.UnixMilli()), nil
}

func expandTimeTo(env Env, _ string, _ []string) (string, error) {
	return fmt.Sprintf("TIMESTAMP_MILLIS(%d)", env.To.UnixMilli()), nil
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
