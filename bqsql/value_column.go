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

// aggregateOp is the aggregate or percentile applied to a value column.
type aggregateOp struct {
	percentile bool
	fn         string
	arg        string // percentile fraction
}

// windowOp is the window or moving window applied after aggregation.
type windowOp struct {
	moving bool
	fn     string
	frame  string // moving window size in rows
}

// valueColumn is the typed view of one select group. Only the first part of
// each kind is used, matching what the editor lets a user build.
type valueColumn struct {
	column string
	agg    *aggregateOp
	win    *windowOp
	alias  string
}

func parseValueColumn(parts []Part) valueColumn {
	vc := valueColumn{column: ValueColumnUnset}
	seenColumn := false
	for _, p := range parts {
		switch p.Type {
		case PartColumn:
			if !seenColumn {
				vc.column = p.Param(0)
				seenColumn = true
			}
		case PartAggregate, PartPercentile:
			if vc.agg == nil {
				vc.agg = &aggregateOp{
					percentile: p.Type == PartPercentile,
					fn:         p.Param(0),
					arg:        p.Param(1),
				}
			}
		case PartWindow, PartMovingWindow:
			if vc.win == nil {
				vc.win = &windowOp{
					moving: p.Type == PartMovingWindow,
					fn:     p.Param(0),
					frame:  p.Param(1),
				}
			}
		case PartAlias:
			if vc.alias == "" {
				vc.alias = p.Param(0)
			}
		}
	}
	return vc
}

// isPlainColumn is true when the group projects the column unchanged.
func (vc valueColumn) isPlainColumn() bool {
	return vc.agg == nil && vc.win == nil
}
