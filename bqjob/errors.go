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
	"encoding/json"
	"errors"

	"google.golang.org/api/googleapi"
)

// ErrPollTimeout is returned when a job stays incomplete past the configured
// total poll wait.
var ErrPollTimeout = errors.New("bigquery job did not complete before the poll deadline")

// errNoResponse is a requester returning neither a response nor an error.
// It is retried like a transport error.
var errNoResponse = errors.New("no response")

const defaultProviderMessage = "Cannot connect to BigQuery API"

// ProviderError is a non-retryable error response from BigQuery.
type ProviderError struct {
	// Message is the human readable form, "BigQuery: <message>".
	Message string
	// Status is the provider status code.
	Status int
	// Reason is "<first error reason>: <message>".
	Reason string

	apiErr *googleapi.Error
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Unwrap exposes the decoded *googleapi.Error.
func (e *ProviderError) Unwrap() error {
	if e.apiErr == nil {
		return nil
	}
	return e.apiErr
}

// newProviderError decodes an error body of the form {"error": {...}}. Bodies
// that do not decode still produce an error carrying the HTTP status.
func newProviderError(status int, body []byte) *ProviderError {
	var envelope struct {
		Error *googleapi.Error `json:"error"`
	}
	apiErr := &googleapi.Error{Code: status, Body: string(body)}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		apiErr = envelope.Error
		apiErr.Body = string(body)
		if apiErr.Code == 0 {
			apiErr.Code = status
		}
	}

	msg := apiErr.Message
	if msg == "" {
		msg = defaultProviderMessage
	}
	reason := msg
	if len(apiErr.Errors) > 0 && apiErr.Errors[0].Reason != "" {
		reason = apiErr.Errors[0].Reason + ": " + msg
	}
	return &ProviderError{
		Message: "BigQuery: " + msg,
		Status:  apiErr.Code,
		Reason:  reason,
		apiErr:  apiErr,
	}
}

// IsRetryable reports whether status is a transient server-side failure.
func IsRetryable(status int) bool {
	return status >= 500
}
