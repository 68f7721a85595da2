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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBoolEnv(t *testing.T) {
	const name = "BQRUNNER_TEST_BOOL"

	tests := []struct {
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{" yes ", false, true},
		{"enabled", false, true},
		{"false", true, false},
		{"0", true, false},
		{"Off", true, false},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(name, tt.value)
			assert.Equal(t, tt.want, GetBoolEnv(name, tt.defaultValue))
		})
	}
}

func TestAnyBoolEnv(t *testing.T) {
	t.Setenv("BQRUNNER_TEST_A", "no")
	t.Setenv("BQRUNNER_TEST_B", "")
	assert.False(t, AnyBoolEnv("BQRUNNER_TEST_A", "BQRUNNER_TEST_B"))

	t.Setenv("BQRUNNER_TEST_B", "1")
	assert.True(t, AnyBoolEnv("BQRUNNER_TEST_A", "BQRUNNER_TEST_B"))
	assert.False(t, AnyBoolEnv())
}
