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

package bqjob

import (
	"fmt"
	"time"

	bigquery "google.golang.org/api/bigquery/v2"
)

// Phase is the lifecycle phase of a query job.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitted
	PhasePolling
	PhaseFetching
	PhaseComplete
	PhaseFailed
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitted:
		return "submitted"
	case PhasePolling:
		return "polling"
	case PhaseFetching:
		return "fetching"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// IsTerminal returns true if no further transitions are valid from this phase.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseComplete, PhaseFailed, PhaseCancelled:
		return true
	default:
		return false
	}
}

// Job is the state of one query execution. It is owned by a single Execute
// call and never shared.
type Job struct {
	Phase Phase
	Ref   *bigquery.JobReference

	// PageToken is set while more result pages remain.
	PageToken string

	Rows      []*bigquery.TableRow
	Schema    *bigquery.TableSchema
	TotalRows uint64

	// Polls counts completion polls issued after submission.
	Polls int
	// NextWait is the delay before the next completion poll.
	NextWait time.Duration
	// Waited is the summed delay of the polls issued so far.
	Waited time.Duration

	Err error
}

// JobID returns the provider job id, or "" before submission.
func (j *Job) JobID() string {
	if j.Ref == nil {
		return ""
	}
	return j.Ref.JobId
}

// Result is the row data of a finished query.
type Result struct {
	JobID     string
	Rows      []*bigquery.TableRow
	Schema    *bigquery.TableSchema
	TotalRows uint64
	// Cancelled is set when the job was abandoned; the rows are not an answer.
	Cancelled bool
}

// Empty reports whether the result carries no rows.
func (r *Result) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

func (j *Job) result() *Result {
	return &Result{
		JobID:     j.JobID(),
		Rows:      j.Rows,
		Schema:    j.Schema,
		TotalRows: j.TotalRows,
	}
}
