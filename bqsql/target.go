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

// Package bqsql holds the structured time-series query model edited in the
// query builder and compiles it into BigQuery standard SQL.
package bqsql

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// TimeColumnUnset is stored in Target.TimeColumn until a column is picked.
	TimeColumnUnset = "-- time --"
	// ValueColumnUnset is stored in a select group's column part until a
	// column is picked.
	ValueColumnUnset = "-- value --"
	// MetricColumnNone means the target has no metric (series label) column.
	MetricColumnNone = "none"
	// FillNone disables the fill policy of a time group.
	FillNone = "none"

	FormatTimeSeries = "time_series"
	FormatTable      = "table"

	// DialectMarker selects standard SQL for statements sent to the v2 API.
	DialectMarker = "#standardSQL"
)

// PartType tags a query part.
type PartType string

const (
	PartColumn       PartType = "column"
	PartAggregate    PartType = "aggregate"
	PartPercentile   PartType = "percentile"
	PartWindow       PartType = "window"
	PartMovingWindow PartType = "moving_window"
	PartAlias        PartType = "alias"

	PartTime PartType = "time"

	PartMacro      PartType = "macro"
	PartExpression PartType = "expression"
)

// Params are the positional arguments of a part. The editor stores them as
// strings but numbers are accepted on decode.
type Params []string

func (p *Params) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*p = nil
		return nil
	}
	out := make(Params, 0, len(raw))
	for i, v := range raw {
		switch x := v.(type) {
		case string:
			out = append(out, x)
		case float64:
			out = append(out, strconv.FormatFloat(x, 'f', -1, 64))
		case bool:
			out = append(out, strconv.FormatBool(x))
		case nil:
			out = append(out, "")
		default:
			return fmt.Errorf("param %d: unsupported type %T", i, v)
		}
	}
	*p = out
	return nil
}

// Part is one element of a select group, the group list or the where list.
type Part struct {
	Type   PartType `json:"type"`
	Name   string   `json:"name,omitempty"`
	Params Params   `json:"params"`
}

// Param returns the i'th parameter or "" when absent.
func (p Part) Param(i int) string {
	if i < 0 || i >= len(p.Params) {
		return ""
	}
	return p.Params[i]
}

// Target is a single query as persisted by the query editor.
type Target struct {
	RefID  string `json:"refId"`
	Format string `json:"format"`
	Hide   bool   `json:"hide,omitempty"`

	Project string `json:"project,omitempty"`
	Dataset string `json:"dataset,omitempty"`
	Table   string `json:"table,omitempty"`

	TimeColumn   string   `json:"timeColumn"`
	MetricColumn string   `json:"metricColumn"`
	Select       [][]Part `json:"select"`
	Group        []Part   `json:"group"`
	Where        []Part   `json:"where"`

	RawQuery bool   `json:"rawQuery"`
	RawSQL   string `json:"rawSql,omitempty"`
}

// NewTarget returns a structured-mode target with editor defaults.
func NewTarget() *Target {
	t := &Target{}
	t.applyDefaults()
	return t
}

func (t *Target) applyDefaults() {
	if t.Format == "" {
		t.Format = FormatTimeSeries
	}
	if t.TimeColumn == "" {
		t.TimeColumn = TimeColumnUnset
	}
	if t.MetricColumn == "" {
		t.MetricColumn = MetricColumnNone
	}
	if t.Group == nil {
		t.Group = []Part{}
	}
	if t.Where == nil {
		t.Where = []Part{{Type: PartMacro, Name: "$__timeFilter", Params: Params{}}}
	}
	if t.Select == nil {
		t.Select = [][]Part{{{Type: PartColumn, Params: Params{ValueColumnUnset}}}}
	}
}

// UnmarshalJSON applies editor defaults. Targets saved before the query
// builder existed have no rawQuery key; they are raw when rawSql is present.
func (t *Target) UnmarshalJSON(data []byte) error {
	type plain Target
	aux := struct {
		*plain
		RawQuery *bool   `json:"rawQuery"`
		RawSQL   *string `json:"rawSql"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.RawSQL != nil {
		t.RawSQL = *aux.RawSQL
	}
	if aux.RawQuery != nil {
		t.RawQuery = *aux.RawQuery
	} else {
		t.RawQuery = aux.RawSQL != nil
	}
	t.applyDefaults()
	return nil
}

// UnmarshalYAML decodes through the JSON form so both encodings share the
// same defaults.
func (t *Target) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return t.UnmarshalJSON(data)
}

// HasMetricColumn reports whether a metric column is configured.
func (t *Target) HasMetricColumn() bool {
	return t.MetricColumn != MetricColumnNone && t.MetricColumn != ""
}

// TimeGroup returns the first time group part.
func (t *Target) TimeGroup() (Part, bool) {
	for _, g := range t.Group {
		if g.Type == PartTime {
			return g, true
		}
	}
	return Part{}, false
}
