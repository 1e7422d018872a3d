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

package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStationStats_Add covers lazy initialization of min and max
func TestStationStats_Add(t *testing.T) {
	var s StationStats
	s.Add(120)
	assert.Equal(t, StationStats{Sum: 120, Count: 1, Min: 120, Max: 120}, s)

	s.Add(-55)
	s.Add(300)
	assert.Equal(t, int16(-55), s.Min)
	assert.Equal(t, int16(300), s.Max)
	assert.Equal(t, int64(365), s.Sum)
	assert.Equal(t, uint64(3), s.Count)
}

// TestStationStats_AddPositiveOnly guards against a zero-valued min leaking in
func TestStationStats_AddPositiveOnly(t *testing.T) {
	var s StationStats
	s.Add(50)
	s.Add(70)
	assert.Equal(t, int16(50), s.Min)

	var n StationStats
	n.Add(-50)
	n.Add(-70)
	assert.Equal(t, int16(-50), n.Max)
}

func TestStationStats_Merge(t *testing.T) {
	readings := make([]int16, 1000)
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range readings {
		readings[i] = int16(rng.IntN(1999) - 999)
	}

	var whole StationStats
	for _, r := range readings {
		whole.Add(r)
	}

	for _, cut := range []int{0, 1, 500, 999, 1000} {
		var a, b StationStats
		for _, r := range readings[:cut] {
			a.Add(r)
		}
		for _, r := range readings[cut:] {
			b.Add(r)
		}
		ab := a
		ab.Merge(b)
		ba := b
		ba.Merge(a)
		assert.Equal(t, whole, ab, "cut %d", cut)
		assert.Equal(t, whole, ba, "cut %d", cut)
	}
}

func TestStationStats_MergeEmpty(t *testing.T) {
	s := StationStats{Sum: 10, Count: 1, Min: 10, Max: 10}
	s.Merge(StationStats{})
	assert.Equal(t, StationStats{Sum: 10, Count: 1, Min: 10, Max: 10}, s)

	var empty StationStats
	empty.Merge(s)
	assert.Equal(t, s, empty)
}

func TestBlock(t *testing.T) {
	b := Block{Index: 2, Start: 10, End: 25}
	assert.Equal(t, int64(15), b.Len())
	assert.Equal(t, "block 2 [10, 25)", b.String())
}

func TestAppendTenths(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.0"},
		{5, "0.5"},
		{-5, "-0.5"},
		{-55, "-5.5"},
		{100, "10.0"},
		{999, "99.9"},
		{-9999, "-999.9"},
		{123456, "12345.6"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(AppendTenths(nil, tt.in)), "value %d", tt.in)
	}
	assert.Equal(t, "x=1.5", string(AppendTenths([]byte("x="), 15)))
}

// TestErrors_Classification verifies sentinels and kinds survive wrapping
func TestErrors_Classification(t *testing.T) {
	block := Block{Index: 3, Start: 100, End: 200}

	parse := &BlockError{Block: block, Err: &ParseError{Kind: KindMalformedReading, Offset: 120, Input: []byte("1.23")}}
	assert.ErrorIs(t, parse, ErrMalformedReading)
	assert.NotErrorIs(t, parse, ErrMissingDelimiter)
	kind, ok := KindOf(fmt.Errorf("run: %w", parse))
	require.True(t, ok)
	assert.Equal(t, KindMalformedReading, kind)
	assert.Contains(t, parse.Error(), "block 3 [100, 200)")
	assert.Contains(t, parse.Error(), "offset 120")

	delim := &ParseError{Kind: KindMissingDelimiter, Offset: 7, Input: []byte("Hamburg12.0")}
	assert.ErrorIs(t, delim, ErrMissingDelimiter)
	kind, ok = KindOf(delim)
	require.True(t, ok)
	assert.Equal(t, KindMissingDelimiter, kind)

	ioErr := &BlockError{Block: block, Err: &IOError{Op: "read", Path: "m.txt", Err: io.ErrUnexpectedEOF}}
	assert.ErrorIs(t, ioErr, ErrIO)
	assert.ErrorIs(t, ioErr, io.ErrUnexpectedEOF)
	kind, ok = KindOf(ioErr)
	require.True(t, ok)
	assert.Equal(t, KindIO, kind)
	assert.Equal(t, "io read m.txt: unexpected EOF", ioErr.Err.Error())

	inv := &InvariantError{Station: "Oslo"}
	assert.ErrorIs(t, inv, ErrInvariantViolation)
	kind, ok = KindOf(inv)
	require.True(t, ok)
	assert.Equal(t, KindInvariantViolation, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestParseError_TruncatesInput(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	err := &ParseError{Kind: KindMalformedReading, Input: long}
	assert.Less(t, len(err.Error()), 120)
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "io error", KindIO.String())
	assert.Equal(t, "malformed reading", KindMalformedReading.String())
	assert.Equal(t, "missing delimiter", KindMissingDelimiter.String())
	assert.Equal(t, "invariant violation", KindInvariantViolation.String())
	assert.Equal(t, "unknown error kind 9", ErrorKind(9).String())
}

type recordingSink struct {
	writes [][]byte
}

func (r *recordingSink) Write(_ context.Context, p []byte) error {
	r.writes = append(r.writes, append([]byte(nil), p...))
	return nil
}
func (r *recordingSink) Close() error { return nil }
func (r *recordingSink) Abort() error { return nil }

func TestSinkWriter(t *testing.T) {
	sink := &recordingSink{}
	w := SinkWriter(context.Background(), sink)
	n, err := io.WriteString(w, "a;1.0\n")
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, [][]byte{[]byte("a;1.0\n")}, sink.writes)

	var got []byte
	f := ReportSinkFunc(func(_ context.Context, p []byte) error {
		got = append(got, p...)
		return nil
	})
	require.NoError(t, f.Write(context.Background(), []byte("{}")))
	require.NoError(t, f.Close())
	require.NoError(t, f.Abort())
	assert.Equal(t, "{}", string(got))
}
