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

package bqmacro

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/common/model"
)

// bucketSeconds holds the intervals offered by the query editor.
var bucketSeconds = map[string]int64{
	"1s": 1,
	"1m": 60,
	"1h": 3600,
	"1d": 86400,
}

// BucketSeconds converts a time-group interval token to a bucket width in
// seconds. Besides the editor's fixed choices any Prometheus-style duration
// that is a whole number of seconds is accepted ("30s", "5m", "1w").
func BucketSeconds(interval string) (int64, error) {
	interval = strings.Trim(strings.TrimSpace(interval), `'"`)
	if secs, ok := bucketSeconds[interval]; ok {
		return secs, nil
	}

	d, err := model.ParseDuration(interval)
	if err != nil {
		return 0, fmt.Errorf("parse interval %q: %w", interval, err)
	}
	dur := time.Duration(d)
	if dur < time.Second || dur%time.Second != 0 {
		return 0, fmt.Errorf("interval %q is not a whole number of seconds", interval)
	}
	return int64(dur / time.Second), nil
}

// UnsupportedIntervalError is returned when a time-group macro names an
// interval that cannot be expressed as a bucket width.
type UnsupportedIntervalError struct {
	Macro    string
	Interval string
}

func (e *UnsupportedIntervalError) Error() string {
	return fmt.Sprintf("%s%s: unsupported interval %q", macroPrefix, e.Macro, e.Interval)
}

// ArgumentError is returned when a macro call has the wrong arguments.
type ArgumentError struct {
	Macro  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s%s: %s", macroPrefix, e.Macro, e.Reason)
}
