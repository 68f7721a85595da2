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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func col(name string) Part { return Part{Type: PartColumn, Params: Params{name}} }
func alias(name string) Part { return Part{Type: PartAlias, Params: Params{name}} }
func agg(fn string) Part { return Part{Type: PartAggregate, Params: Params{fn}} }
func window(fn string) Part { return Part{Type: PartWindow, Params: Params{fn}} }
func timeGroup(iv, fill string) Part {
	return Part{Type: PartTime, Params: Params{iv, fill}}
}

func baseTarget() *Target {
	t := NewTarget()
	t.Dataset = "ds"
	t.Table = "tbl"
	t.TimeColumn = "ts"
	t.Select = [][]Part{{col("value")}}
	return t
}

func TestRender_NotConfigured(t *testing.T) {
	assert.Equal(t, "", Render(nil))
	assert.Equal(t, "", Render(NewTarget()))

	tgt := NewTarget()
	tgt.Dataset = "ds"
	assert.Equal(t, "", Render(tgt))
}

func TestRender_RawQuery(t *testing.T) {
	tgt := baseTarget()
	tgt.RawQuery = true
	tgt.RawSQL = "SELECT 1"
	assert.Equal(t, "SELECT 1", Render(tgt))
}

func TestRender_PlainColumnWithAlias(t *testing.T) {
	tgt := baseTarget()
	tgt.Select = [][]Part{{col("value"), alias("v")}}

	want := strings.Join([]string{
		"#standardSQL",
		"SELECT",
		"  ts AS time,",
		"  value AS v",
		"FROM ds.tbl",
		"WHERE",
		"  $__timeFilter(ts)",
		"ORDER BY 1",
	}, "\n")
	assert.Equal(t, want, Render(tgt))
}

func TestRender_PlainColumnIsBareName(t *testing.T) {
	tgt := baseTarget()
	tgt.Select = [][]Part{{col("bytes")}, {col("requests"), alias("r")}}
	sql := Render(tgt)
	assert.Contains(t, sql, "  bytes,\n")
	assert.Contains(t, sql, "  requests AS r\n")
}

func TestRender_TimeGroupOrdinals(t *testing.T) {
	tgt := baseTarget()
	tgt.Select = [][]Part{{col("value"), agg("avg")}}
	tgt.Group = []Part{timeGroup("1h", "none")}

	sql := Render(tgt)
	assert.Contains(t, sql, "  $__timeGroupAlias(ts,1h),\n  avg(value)\n")
	assert.Contains(t, sql, "\nGROUP BY 1\nORDER BY 1")

	tgt.MetricColumn = "host"
	sql = Render(tgt)
	assert.Contains(t, sql, "  host AS metric,\n")
	assert.Contains(t, sql, "\nGROUP BY 1,2\nORDER BY 1,2")
}

func TestRender_TimeGroupFill(t *testing.T) {
	tgt := baseTarget()
	tgt.Group = []Part{timeGroup("5m", "0")}
	assert.Contains(t, Render(tgt), "$__timeGroupAlias(ts,5m,0)")
}

func TestRender_GroupByColumnUsesPosition(t *testing.T) {
	tgt := baseTarget()
	tgt.Select = [][]Part{{col("value"), agg("sum")}, {col("host")}}
	tgt.Group = []Part{timeGroup("1m", "none"), col("host")}
	assert.Contains(t, Render(tgt), "\nGROUP BY 1,3\n")

	tgt.Group = []Part{timeGroup("1m", "none"), col("region")}
	assert.Contains(t, Render(tgt), "\nGROUP BY 1,region\n")
}

func TestRender_NoGroupParts(t *testing.T) {
	tgt := baseTarget()
	tgt.MetricColumn = "host"
	sql := Render(tgt)
	assert.NotContains(t, sql, "GROUP BY")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY 1,2"))
}

func TestRender_MovingWindowRestructures(t *testing.T) {
	tgt := baseTarget()
	tgt.Select = [][]Part{{
		col("value"),
		agg("avg"),
		{Type: PartMovingWindow, Params: Params{"avg", "5"}},
	}}
	tgt.Group = []Part{timeGroup("1h", "none")}

	want := strings.Join([]string{
		"#standardSQL",
		"SELECT * EXCEPT(tmpvalue) FROM (",
		"SELECT",
		"  $__timeGroupAlias(ts,1h),",
		"  avg(value) AS tmpvalue,",
		"  avg(avg(value)) OVER (ORDER BY $__timeGroup(ts,1h) ROWS 5 PRECEDING)",
		"FROM ds.tbl",
		"WHERE",
		"  $__timeFilter(ts)",
		"GROUP BY 1,ts",
		"ORDER BY 1",
		")",
		"GROUP BY 1,2",
		"ORDER BY 1",
	}, "\n")
	assert.Equal(t, want, Render(tgt))
}

func TestRender_MovingWindowTempAliasesAreUnique(t *testing.T) {
	tgt := baseTarget()
	mw := Part{Type: PartMovingWindow, Params: Params{"sum", "3"}}
	tgt.Select = [][]Part{{col("value"), mw}, {col("value"), mw, alias("again")}}

	sql := Render(tgt)
	assert.True(t, strings.HasPrefix(sql, "#standardSQL\nSELECT * EXCEPT(tmpvalue, tmpvalue_2) FROM (\n"))
	assert.Contains(t, sql, "value AS tmpvalue_2,")
}

func TestRender_MovingWindowWithMetricPartitions(t *testing.T) {
	tgt := baseTarget()
	tgt.MetricColumn = "host"
	tgt.Select = [][]Part{{col("value"), {Type: PartMovingWindow, Params: Params{"avg", "2"}}}}
	tgt.Group = []Part{timeGroup("1m", "none")}

	sql := Render(tgt)
	assert.Contains(t, sql, "avg(value) OVER (PARTITION BY host ORDER BY $__timeGroup(ts,1m) ROWS 2 PRECEDING)")
	assert.Contains(t, sql, "\nGROUP BY 1,ts,2\nORDER BY 1,2\n)")
	assert.True(t, strings.HasSuffix(sql, ")\nGROUP BY 1,2,3\nORDER BY 1"))
}

func TestRender_WindowWithoutTempHasNoExcept(t *testing.T) {
	tgt := baseTarget()
	tgt.Select = [][]Part{{col("value"), window("delta")}}

	sql := Render(tgt)
	assert.True(t, strings.HasPrefix(sql, "#standardSQL\nSELECT * FROM (\n"))
	assert.Contains(t, sql, "value - lag(value) OVER (ORDER BY ts)")
	assert.NotContains(t, sql, "GROUP BY")
}

func TestRender_Increase(t *testing.T) {
	tgt := baseTarget()
	tgt.Select = [][]Part{{col("c"), window("increase")}}
	prev := "lag(c) OVER (ORDER BY ts)"
	want := "(CASE WHEN c >= " + prev + " THEN c - " + prev +
		" WHEN " + prev + " IS NULL THEN NULL ELSE c END)"
	assert.Contains(t, Render(tgt), want)
}

func TestRender_RateWithAggregateUsesMinTime(t *testing.T) {
	tgt := baseTarget()
	tgt.Select = [][]Part{{col("c"), agg("max"), window("rate")}}
	tgt.Group = []Part{timeGroup("1m", "none")}

	sql := Render(tgt)
	over := "ORDER BY $__timeGroup(ts,1m)"
	assert.Contains(t, sql, "/(UNIX_SECONDS(min(ts)) - UNIX_SECONDS(lag(min(ts)) OVER ("+over+")))")
	assert.Contains(t, sql, "(CASE WHEN max(c) >= lag(max(c)) OVER ("+over+")")
}

func TestRender_OtherWindowFunction(t *testing.T) {
	tgt := baseTarget()
	tgt.Select = [][]Part{{col("c"), agg("sum"), window("cumulative_sum")}}
	assert.Contains(t, Render(tgt), "cumulative_sum(sum(c)) OVER (ORDER BY ts)")
}

func TestRender_Aggregates(t *testing.T) {
	tests := []struct {
		name string
		part Part
		want string
	}{
		{"avg", agg("avg"), "avg(latency)"},
		{"first", agg("first"), "first(latency,ts)"},
		{"last", agg("last"), "last(latency,ts)"},
		{"percentile", Part{Type: PartPercentile, Params: Params{"percentile_cont", "0.95"}},
			"percentile_cont(0.95) WITHIN GROUP (ORDER BY latency)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tgt := baseTarget()
			tgt.Select = [][]Part{{col("latency"), tt.part}}
			assert.Contains(t, Render(tgt), "  "+tt.want+"\n")
		})
	}
}

func TestRender_WhereClause(t *testing.T) {
	tgt := baseTarget()
	tgt.Where = append(tgt.Where, Part{Type: PartExpression, Params: Params{"status", "=", "'ok'"}})
	assert.Contains(t, Render(tgt), "\nWHERE\n  $__timeFilter(ts) AND\n  status = 'ok'\nORDER BY 1")

	tgt.Where = nil
	assert.NotContains(t, Render(tgt), "WHERE")
}

func TestRender_DoesNotMutateAndIsRepeatable(t *testing.T) {
	tgt := baseTarget()
	tgt.MetricColumn = "host"
	tgt.Select = [][]Part{{col("value"), agg("avg"), {Type: PartMovingWindow, Params: Params{"avg", "4"}}}}
	tgt.Group = []Part{timeGroup("1h", "none")}

	before := *tgt
	before.Select = [][]Part{append([]Part(nil), tgt.Select[0]...)}
	before.Group = append([]Part(nil), tgt.Group...)

	first := Render(tgt)
	second := Render(tgt)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, before, *tgt)
}

func TestGroupList(t *testing.T) {
	var g groupList
	g = g.appendOrdinal(1).appendOrdinal(1).appendColumn("ts").appendColumn("ts").appendColumn("").appendOrdinal(2)
	assert.Equal(t, "GROUP BY 1,ts,2", g.clause())
	assert.Equal(t, "", groupList(nil).clause())
	assert.Equal(t, "GROUP BY 1,2,3", sequential(3).clause())
}
