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

package writers

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/stationagg/aggregate"
	"github.com/aaronlmathis/stationagg/core"
)

func tableFrom(lines ...string) aggregate.Table {
	t := aggregate.NewTable(len(lines))
	for _, l := range lines {
		i := bytes.LastIndexByte([]byte(l), ';')
		var v int64
		neg := false
		for _, c := range l[i+1:] {
			switch {
			case c == '-':
				neg = true
			case c >= '0' && c <= '9':
				v = v*10 + int64(c-'0')
			}
		}
		if neg {
			v = -v
		}
		t.Add([]byte(l[:i]), int16(v))
	}
	return t
}

func TestRenderReport(t *testing.T) {
	tests := []struct {
		name  string
		table aggregate.Table
		want  string
	}{
		{
			name:  "two stations",
			table: tableFrom("A;10.0", "B;20.0", "A;-5.5"),
			want:  "{A=-5.5/2.3/10.0, B=20.0/20.0/20.0}",
		},
		{
			name:  "zero",
			table: tableFrom("X;0.0"),
			want:  "{X=0.0/0.0/0.0}",
		},
		{
			name:  "empty",
			table: aggregate.NewTable(0),
			want:  "{}",
		},
		{
			name:  "byte order",
			table: tableFrom("b;1.0", "a;b;2.0", "Z;3.0", "a;4.0"),
			want:  "{Z=3.0/3.0/3.0, a=4.0/4.0/4.0, a;b=2.0/2.0/2.0, b=1.0/1.0/1.0}",
		},
		{
			name:  "negative tie",
			table: tableFrom("N;-10.0", "N;5.5"),
			want:  "{N=-10.0/-2.2/5.5}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderReport(tt.table)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMeanTenths(t *testing.T) {
	tests := []struct {
		sum   int64
		count uint64
		want  int64
	}{
		{45, 2, 23},   // 2.25 -> 2.3
		{-45, 2, -22}, // -2.25 -> -2.2
		{-1, 2, 0},    // -0.05 -> 0.0
		{-3, 2, -1},   // -0.15 -> -0.1
		{1, 3, 0},
		{2, 3, 1},
		{-2, 3, -1},
		{600, 3, 200},
		{9999, 1, 9999},
		{-9999 * 1_000_000, 1_000_000, -9999},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MeanTenths(tt.sum, tt.count), "sum %d count %d", tt.sum, tt.count)
	}
	assert.Equal(t, "0.0", FormatMean(-1, 2))
	assert.Equal(t, "-0.1", FormatMean(-3, 2))
}

func TestSummaries_Invariant(t *testing.T) {
	table := aggregate.NewTable(1)
	table["ghost"] = &core.StationStats{}

	_, err := RenderReport(table)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvariantViolation)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindInvariantViolation, kind)
}

func TestSummarize(t *testing.T) {
	s := Summarize("Oslo", core.StationStats{Sum: 45, Count: 2, Min: -55, Max: 100})
	assert.Equal(t, core.StationSummary{Name: "Oslo", Min: "-5.5", Mean: "2.3", Max: "10.0"}, s)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestReportWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewReportWriter(&buf)
	require.NoError(t, w.WriteTable(context.Background(), tableFrom("A;1.0")))
	require.NoError(t, w.Close())
	assert.Equal(t, "{A=1.0/1.0/1.0}\n", buf.String())

	err := NewReportWriter(failingWriter{}).Write(context.Background(), []byte("{}\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrIO)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Write(ctx, []byte("x")), context.Canceled)
}
