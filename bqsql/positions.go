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
	"strconv"
	"strings"
)

// projected is one entry of a SELECT list.
type projected struct {
	expr string
	// source is the bare column the entry projects unchanged, used to turn
	// GROUP BY column references into ordinals.
	source string
	// temp entries exist only to feed a window and are removed by the
	// outer query.
	temp bool
}

type projection []projected

func (p projection) exprs() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.expr
	}
	return out
}

// ordinalOf returns the 1-based position of the first entry projecting column.
func (p projection) ordinalOf(column string) (int, bool) {
	if column == "" {
		return 0, false
	}
	for i, c := range p {
		if c.source == column {
			return i + 1, true
		}
	}
	return 0, false
}

// visible counts entries that survive the outer query.
func (p projection) visible() int {
	n := 0
	for _, c := range p {
		if !c.temp {
			n++
		}
	}
	return n
}

// groupKey is a GROUP BY entry: a select-list ordinal or a bare column for
// grouping on something that is not projected.
type groupKey struct {
	ordinal int
	column  string
}

func (k groupKey) String() string {
	if k.column != "" {
		return k.column
	}
	return strconv.Itoa(k.ordinal)
}

type groupList []groupKey

func (g groupList) has(k groupKey) bool {
	for _, e := range g {
		if e == k {
			return true
		}
	}
	return false
}

func (g groupList) appendOrdinal(n int) groupList {
	k := groupKey{ordinal: n}
	if g.has(k) {
		return g
	}
	return append(g, k)
}

func (g groupList) appendColumn(name string) groupList {
	k := groupKey{column: name}
	if name == "" || g.has(k) {
		return g
	}
	return append(g, k)
}

// sequential returns the ordinals 1..n.
func sequential(n int) groupList {
	g := make(groupList, 0, n)
	for i := 1; i <= n; i++ {
		g = append(g, groupKey{ordinal: i})
	}
	return g
}

// clause renders "GROUP BY ..." or "" for an empty list.
func (g groupList) clause() string {
	if len(g) == 0 {
		return ""
	}
	keys := make([]string, len(g))
	for i, k := range g {
		keys[i] = k.String()
	}
	return "GROUP BY " + strings.Join(keys, ",")
}
