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
	"regexp"
	"strings"
)

// Variable is a dashboard template variable and its current value(s).
type Variable struct {
	Name       string   `json:"name" yaml:"name"`
	Multi      bool     `json:"multi,omitempty" yaml:"multi"`
	IncludeAll bool     `json:"includeAll,omitempty" yaml:"includeAll"`
	Values     []string `json:"values" yaml:"values"`
}

// QuoteLiteral renders value as a string literal, doubling embedded quotes.
func QuoteLiteral(value string) string {
	return "'" + EscapeLiteral(value) + "'"
}

// EscapeLiteral doubles embedded single quotes without adding the outer ones.
func EscapeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

// FormatVariable renders a variable's value for substitution into SQL.
// A single value of a plain variable is inserted with quotes escaped but
// without surrounding quotes; multi-value and
// include-all variables, or several values, become a comma separated list of
// quoted literals suitable for IN (...).
func FormatVariable(values []string, v Variable) string {
	if !v.Multi && !v.IncludeAll && len(values) <= 1 {
		if len(values) == 0 {
			return ""
		}
		return EscapeLiteral(values[0])
	}
	quoted := make([]string, len(values))
	for i, val := range values {
		quoted[i] = QuoteLiteral(val)
	}
	return strings.Join(quoted, ",")
}

// variableRef matches $name, ${name}, ${name:format} and [[name]].
var variableRef = regexp.MustCompile(`\$(\w+)|\$\{(\w+)(?::\w+)?\}|\[\[(\w+)\]\]`)

// Interpolate substitutes template variable references in sql. References to
// unknown names, including $__ macros, are left for later stages.
func Interpolate(sql string, vars []Variable) string {
	if len(vars) == 0 {
		return sql
	}
	byName := make(map[string]Variable, len(vars))
	for _, v := range vars {
		byName[v.Name] = v
	}
	return variableRef.ReplaceAllStringFunc(sql, func(ref string) string {
		m := variableRef.FindStringSubmatch(ref)
		name := m[1] + m[2] + m[3]
		v, ok := byName[name]
		if !ok {
			return ref
		}
		return FormatVariable(v.Values, v)
	})
}
