//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of StationAgg.
//
// StationAgg is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// StationAgg is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with StationAgg. If not, see https://www.gnu.org/licenses/.

package readers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/stationagg/core"
)

// TestParseReading_RoundTrip renders every representable value and parses it back
func TestParseReading_RoundTrip(t *testing.T) {
	for v := int64(-9999); v <= 9999; v++ {
		text := core.AppendTenths(nil, v)
		got, err := ParseReading(text)
		require.NoError(t, err, "input %q", text)
		require.Equal(t, int16(v), got, "input %q", text)
	}
}

func TestParseReading_Valid(t *testing.T) {
	tests := []struct {
		in   string
		want int16
	}{
		{"0.0", 0},
		{"-0.0", 0},
		{"1.5", 15},
		{"-1.5", -15},
		{"12.3", 123},
		{"-99.9", -999},
		{"099.9", 999},
		{"999.9", 9999},
		{"-999.9", -9999},
		{"00.1", 1},
	}
	for _, tt := range tests {
		got, err := ParseReading([]byte(tt.in))
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParseReading_Malformed(t *testing.T) {
	for _, in := range []string{
		"",
		"1",
		"1.",
		".5",
		"-.5",
		"-",
		"12",
		"1.23",
		"1,5",
		"+1.5",
		"--1.5",
		"1-.5",
		"a1.5",
		"1a.5",
		" 1.5",
		"1.5 ",
		"1.5\r",
		"1000.0",
		"-1000.0",
		"1..5",
	} {
		_, err := ParseReading([]byte(in))
		require.Error(t, err, "input %q", in)
		assert.ErrorIs(t, err, core.ErrMalformedReading, "input %q", in)

		var parseErr *core.ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, in, string(parseErr.Input))
	}
}

func BenchmarkParseReading(b *testing.B) {
	inputs := [][]byte{[]byte("-12.3"), []byte("4.5"), []byte("99.9"), []byte("-0.1")}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseReading(inputs[i&3]); err != nil {
			b.Fatal(err)
		}
	}
}
