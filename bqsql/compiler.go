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
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Render returns the SQL for a target. Raw targets return their SQL as
// written. Structured targets without a table are not ready and render to "".
// The target is never modified, so rendering the same target twice yields the
// same text.
func Render(t *Target) string {
	if t == nil {
		return ""
	}
	if t.RawQuery {
		return t.RawSQL
	}
	if t.Table == "" {
		return ""
	}
	c := &compilation{t: t}
	return c.build()
}

// compilation is the per-render scratch state.
type compilation struct {
	t        *Target
	isWindow bool
	columns  projection
	temps    []string
}

func (c *compilation) build() string {
	c.columns = append(c.columns, projected{expr: c.timeColumn(true), source: c.timeSource()})
	if c.t.HasMetricColumn() {
		c.columns = append(c.columns, projected{expr: c.t.MetricColumn + " AS metric", source: c.t.MetricColumn})
	}
	for _, group := range c.t.Select {
		c.valueColumn(parseValueColumn(group))
	}

	var sb strings.Builder
	sb.WriteString("SELECT\n  ")
	sb.WriteString(strings.Join(c.columns.exprs(), ",\n  "))
	sb.WriteString("\nFROM ")
	sb.WriteString(c.t.Dataset + "." + c.t.Table)
	sb.WriteString(c.whereClause())

	inner, outer := c.groupLists()
	if g := inner.clause(); g != "" {
		sb.WriteString("\n" + g)
	}
	sb.WriteString("\nORDER BY 1")
	if c.t.HasMetricColumn() {
		sb.WriteString(",2")
	}

	query := sb.String()
	if c.isWindow {
		query = c.wrap(query, outer)
	}
	return DialectMarker + "\n" + query
}

// wrap puts the windowed query inside an outer query that drops the temp
// columns and regroups on the remaining output columns.
func (c *compilation) wrap(inner string, outer groupList) string {
	var sb strings.Builder
	sb.WriteString("SELECT *")
	if len(c.temps) > 0 {
		sb.WriteString(" EXCEPT(" + strings.Join(c.temps, ", ") + ")")
	}
	sb.WriteString(" FROM (\n")
	sb.WriteString(inner)
	sb.WriteString("\n)")
	if g := outer.clause(); g != "" {
		sb.WriteString("\n" + g)
	}
	sb.WriteString("\nORDER BY 1")
	return sb.String()
}

// timeColumn renders the time bucket macro or the raw time column. The
// unaliased form is used inside OVER (ORDER BY ...).
func (c *compilation) timeColumn(alias bool) string {
	tg, ok := c.t.TimeGroup()
	if !ok {
		if alias {
			return c.t.TimeColumn + " AS time"
		}
		return c.t.TimeColumn
	}

	args := tg.Param(0)
	if fill := tg.Param(1); fill != "" && fill != FillNone {
		args = strings.Join(tg.Params, ",")
	}
	macro := "$__timeGroup"
	if alias {
		macro += "Alias"
	}
	return macro + "(" + c.t.TimeColumn + "," + args + ")"
}

func (c *compilation) timeSource() string {
	if _, ok := c.t.TimeGroup(); ok {
		return ""
	}
	return c.t.TimeColumn
}

func (c *compilation) valueColumn(vc valueColumn) {
	expr := vc.column
	if vc.agg != nil {
		expr = c.aggregate(vc.agg, expr)
	}

	if vc.win == nil {
		source := ""
		if vc.isPlainColumn() {
			source = vc.column
		}
		c.columns = append(c.columns, projected{expr: withAlias(expr, vc.alias), source: source})
		return
	}

	c.isWindow = true
	over := c.over()

	if vc.win.moving {
		tmp := c.tempAlias(vc.column)
		c.columns = append(c.columns, projected{expr: expr + " AS " + tmp, temp: true})
		windowed := fmt.Sprintf("%s(%s) OVER (%s ROWS %s PRECEDING)", vc.win.fn, expr, over, vc.win.frame)
		c.columns = append(c.columns, projected{expr: withAlias(windowed, vc.alias)})
		return
	}

	prev := "lag(" + expr + ") OVER (" + over + ")"
	var windowed string
	switch vc.win.fn {
	case "delta":
		windowed = expr + " - " + prev
	case "increase":
		windowed = increase(expr, prev)
	case "rate":
		timeCol := c.t.TimeColumn
		if vc.agg != nil {
			timeCol = "min(" + timeCol + ")"
		}
		windowed = increase(expr, prev) +
			"/(UNIX_SECONDS(" + timeCol + ") - UNIX_SECONDS(lag(" + timeCol + ") OVER (" + over + ")))"
	default:
		windowed = vc.win.fn + "(" + expr + ") OVER (" + over + ")"
	}
	c.columns = append(c.columns, projected{expr: withAlias(windowed, vc.alias)})
}

func (c *compilation) aggregate(agg *aggregateOp, expr string) string {
	if agg.percentile {
		return agg.fn + "(" + agg.arg + ") WITHIN GROUP (ORDER BY " + expr + ")"
	}
	switch agg.fn {
	case "first", "last":
		return agg.fn + "(" + expr + "," + c.t.TimeColumn + ")"
	default:
		return agg.fn + "(" + expr + ")"
	}
}

// increase yields curr-prev, NULL when there is no previous row, and curr
// when the value went down.
func increase(curr, prev string) string {
	return "(CASE WHEN " + curr + " >= " + prev + " THEN " + curr + " - " + prev +
		" WHEN " + prev + " IS NULL THEN NULL ELSE " + curr + " END)"
}

func (c *compilation) over() string {
	var parts []string
	if c.t.HasMetricColumn() {
		parts = append(parts, "PARTITION BY "+c.t.MetricColumn)
	}
	parts = append(parts, "ORDER BY "+c.timeColumn(false))
	return strings.Join(parts, " ")
}

// tempAlias names the helper column for a moving window, unique per render.
func (c *compilation) tempAlias(column string) string {
	base := "tmp" + identifier(column)
	alias := base
	for n := 2; slices.Contains(c.temps, alias); n++ {
		alias = base + "_" + strconv.Itoa(n)
	}
	c.temps = append(c.temps, alias)
	return alias
}

func (c *compilation) whereClause() string {
	var conds []string
	for _, w := range c.t.Where {
		switch w.Type {
		case PartMacro:
			if w.Name != "" {
				conds = append(conds, w.Name+"("+c.t.TimeColumn+")")
			}
		case PartExpression:
			if expr := strings.TrimSpace(strings.Join(w.Params, " ")); expr != "" {
				conds = append(conds, expr)
			}
		}
	}
	if len(conds) == 0 {
		return ""
	}
	return "\nWHERE\n  " + strings.Join(conds, " AND\n  ")
}

// groupLists builds the GROUP BY of the (inner) query and, for windowed
// queries, of the outer query. Grouping only happens when the target has
// group parts.
func (c *compilation) groupLists() (inner, outer groupList) {
	if len(c.t.Group) == 0 {
		return nil, nil
	}

	_, hasTimeGroup := c.t.TimeGroup()
	for _, g := range c.t.Group {
		if g.Type == PartTime {
			inner = inner.appendOrdinal(1)
			continue
		}
		col := g.Param(0)
		if col == "" || (c.t.HasMetricColumn() && col == c.t.MetricColumn) {
			continue
		}
		if pos, ok := c.columns.ordinalOf(col); ok {
			inner = inner.appendOrdinal(pos)
			continue
		}
		inner = inner.appendColumn(col)
	}

	// Window ordering and rate read the raw time column, so it has to be a
	// grouping key unless it is already projected and grouped as ordinal 1.
	if c.isWindow && (hasTimeGroup || !inner.has(groupKey{ordinal: 1})) {
		inner = inner.appendColumn(c.t.TimeColumn)
	}
	if c.t.HasMetricColumn() {
		inner = inner.appendOrdinal(2)
	}

	if c.isWindow {
		outer = sequential(c.columns.visible())
	}
	return inner, outer
}

func withAlias(expr, alias string) string {
	if alias == "" {
		return expr
	}
	return expr + " AS " + alias
}

// identifier replaces characters that cannot appear in an unquoted column
// alias.
func identifier(s string) string {
	b := []byte(s)
	for i, ch := range b {
		if !(ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')) {
			b[i] = '_'
		}
	}
	return string(b)
}
