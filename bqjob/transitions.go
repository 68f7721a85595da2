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
	"errors"
	"fmt"
	"time"

	bigquery "google.golang.org/api/bigquery/v2"
)

// validTransitions defines the allowed phase transitions for a job.
var validTransitions = map[Phase]map[Phase]bool{
	PhaseIdle: {
		PhaseSubmitted: true,
		PhaseFailed:    true,
		PhaseCancelled: true,
	},
	PhaseSubmitted: {
		PhasePolling:   true,
		PhaseFetching:  true,
		PhaseComplete:  true,
		PhaseFailed:    true,
		PhaseCancelled: true,
	},
	PhasePolling: {
		PhasePolling:   true,
		PhaseFetching:  true,
		PhaseComplete:  true,
		PhaseFailed:    true,
		PhaseCancelled: true,
	},
	PhaseFetching: {
		PhaseFetching:  true,
		PhaseComplete:  true,
		PhaseFailed:    true,
		PhaseCancelled: true,
	},
}

var errMissingJobRef = errors.New("response has no job reference")

// ErrInvalidTransition is returned when a phase transition is not allowed.
type ErrInvalidTransition struct {
	From Phase
	To   Phase
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid job phase transition: %s -> %s", e.From, e.To)
}

// Transition validates and performs a phase transition.
func (j *Job) Transition(to Phase) error {
	targets, ok := validTransitions[j.Phase]
	if !ok || !targets[to] {
		return &ErrInvalidTransition{From: j.Phase, To: to}
	}
	j.Phase = to
	return nil
}

// Page is the part of a jobs.query or jobs.getQueryResults response that
// drives the state machine.
type Page struct {
	JobComplete  bool
	JobReference *bigquery.JobReference
	PageToken    string
	Rows         []*bigquery.TableRow
	Schema       *bigquery.TableSchema
	TotalRows    uint64
}

// PageFromQuery adapts a jobs.query response.
func PageFromQuery(r *bigquery.QueryResponse) Page {
	return Page{
		JobComplete:  r.JobComplete,
		JobReference: r.JobReference,
		PageToken:    r.PageToken,
		Rows:         r.Rows,
		Schema:       r.Schema,
		TotalRows:    r.TotalRows,
	}
}

// PageFromResults adapts a jobs.getQueryResults response.
func PageFromResults(r *bigquery.GetQueryResultsResponse) Page {
	return Page{
		JobComplete:  r.JobComplete,
		JobReference: r.JobReference,
		PageToken:    r.PageToken,
		Rows:         r.Rows,
		Schema:       r.Schema,
		TotalRows:    r.TotalRows,
	}
}

// ApplySubmitted records the response to the submission request.
func (j *Job) ApplySubmitted(p Page) error {
	if err := j.Transition(PhaseSubmitted); err != nil {
		return err
	}
	if p.JobReference != nil {
		j.Ref = p.JobReference
	}
	return j.advance(p)
}

// ApplyPolled records the response to a completion poll.
func (j *Job) ApplyPolled(p Page) error {
	if j.Phase != PhasePolling {
		return &ErrInvalidTransition{From: j.Phase, To: PhasePolling}
	}
	j.Polls++
	return j.advance(p)
}

// ApplyFetched records a result page requested with a page token. Pages are
// only requested for completed jobs, so the completion flag is not consulted.
func (j *Job) ApplyFetched(p Page) error {
	if j.Phase != PhaseFetching {
		return &ErrInvalidTransition{From: j.Phase, To: PhaseFetching}
	}
	p.JobComplete = true
	return j.advance(p)
}

// Fail moves the job to PhaseFailed.
func (j *Job) Fail(err error) error {
	if terr := j.Transition(PhaseFailed); terr != nil {
		return terr
	}
	j.Err = err
	return nil
}

// Cancel moves the job to PhaseCancelled and drops any partial rows.
func (j *Job) Cancel() error {
	if err := j.Transition(PhaseCancelled); err != nil {
		return err
	}
	j.Rows = nil
	j.PageToken = ""
	return nil
}

func (j *Job) advance(p Page) error {
	if !p.JobComplete {
		if j.Ref == nil || j.Ref.JobId == "" {
			return errMissingJobRef
		}
		return j.Transition(PhasePolling)
	}

	j.Rows = append(j.Rows, p.Rows...)
	if j.Schema == nil {
		j.Schema = p.Schema
	}
	if p.TotalRows > j.TotalRows {
		j.TotalRows = p.TotalRows
	}
	j.PageToken = p.PageToken
	if j.PageToken != "" {
		if j.Ref == nil || j.Ref.JobId == "" {
			return errMissingJobRef
		}
		return j.Transition(PhaseFetching)
	}
	return j.Transition(PhaseComplete)
}

// Backoff returns the wait before the next completion poll and advances
// NextWait: it starts at initial and doubles up to ceiling. A non-positive
// ceiling leaves the growth unbounded.
func (j *Job) Backoff(initial, ceiling time.Duration) time.Duration {
	if j.NextWait <= 0 {
		j.NextWait = initial
	}
	wait := j.NextWait
	if ceiling > 0 && wait > ceiling {
		wait = ceiling
	}
	next := wait * 2
	if ceiling > 0 && next > ceiling {
		next = ceiling
	}
	j.NextWait = next
	return wait
}
