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

package helpers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cardinalhq/oteltools/pkg/dateutils"
)

// ParseTimeRange resolves a command-line time range. Each bound may be
// epoch milliseconds or RFC3339; anything else, such as "e-1h" or "now",
// is resolved relative to the other bound.
func ParseTimeRange(from, to string) (time.Time, time.Time, error) {
	start, okStart := parseAbsolute(from)
	end, okEnd := parseAbsolute(to)
	if !okStart || !okEnd {
		st, en, err := dateutils.ToStartEnd(from, to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid time range %q..%q: %w", from, to, err)
		}
		start, end = UnixMillisToTime(st), UnixMillisToTime(en)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s must be before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}

func parseAbsolute(s string) (time.Time, bool) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return UnixMillisToTime(ms), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// UnixMillisToTime converts ms since epoch to a UTC time.
func UnixMillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// FormatDuration formats a duration in a compact, human-readable way.
// Examples: "250ms", "50s", "1m30s", "1h30m", "2h"
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}

	if seconds > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}

	return fmt.Sprintf("%dm", minutes)
}
