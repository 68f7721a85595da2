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

import "context"

// Requester performs one HTTP request against the BigQuery REST API. path is
// relative to the API base URL, e.g. "v2/projects/p/queries". A non-nil body
// is sent as JSON. Implementations return a transport error only when no
// response was received; non-2xx responses are returned with their body.
type Requester interface {
	Do(ctx context.Context, method, path string, body any) (*Response, error)
}

// Response is a raw API response.
type Response struct {
	Status int
	Data   []byte
}

// RequesterFunc adapts a function to the Requester interface.
type RequesterFunc func(ctx context.Context, method, path string, body any) (*Response, error)

func (f RequesterFunc) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	return f(ctx, method, path, body)
}
