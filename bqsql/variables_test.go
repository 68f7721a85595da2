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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "'O''Brien'", QuoteLiteral("O'Brien"))
	assert.Equal(t, "''", QuoteLiteral(""))
	assert.Equal(t, "it''s", EscapeLiteral("it's"))
}

func TestFormatVariable(t *testing.T) {
	plain := Variable{Name: "host"}
	multi := Variable{Name: "host", Multi: true}

	assert.Equal(t, "web-1", FormatVariable([]string{"web-1"}, plain))
	assert.Equal(t, "", FormatVariable(nil, plain))
	assert.Equal(t, "O''Brien", FormatVariable([]string{"O'Brien"}, plain))
	assert.Equal(t, "'web-1'", FormatVariable([]string{"web-1"}, multi))
	assert.Equal(t, "'a','b''c'", FormatVariable([]string{"a", "b'c"}, multi))
	assert.Equal(t, "'a','b'", FormatVariable([]string{"a", "b"}, plain))
}

func TestInterpolate(t *testing.T) {
	vars := []Variable{
		{Name: "host", Multi: true, Values: []string{"a", "b"}},
		{Name: "limit", Values: []string{"10"}},
	}
	sql := "SELECT * FROM t WHERE $__timeFilter(ts) AND host IN ($host) AND x IN (${host}) AND y IN ([[host]]) LIMIT $limit $other"
	want := "SELECT * FROM t WHERE $__timeFilter(ts) AND host IN ('a','b') AND x IN ('a','b') AND y IN ('a','b') LIMIT 10 $other"
	assert.Equal(t, want, Interpolate(sql, vars))
	assert.Equal(t, sql, Interpolate(sql, nil))
}

func TestInterpolate_EscapesQuotedSingleValue(t *testing.T) {
	vars := []Variable{{Name: "who", Values: []string{"O'Brien"}}}
	assert.Equal(t, "WHERE name = 'O''Brien'", Interpolate("WHERE name = '$who'", vars))
}
