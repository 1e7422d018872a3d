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
	"fmt"
	"strconv"
)

// Package core defines the core types for the StationAgg library.
//
// StationAgg computes per-station min/mean/max temperature aggregates over very large
// delimited measurement files by splitting them into newline-aligned blocks, parsing
// every block independently and merging the block-local results.
//
// This file contains the primary data types shared by readers, aggregators and writers.

// Line terminator and default field delimiter of the measurement format.
const (
	LineTerminator   byte = '\n'
	DefaultDelimiter byte = ';'
)

// StationStats is the running aggregate for one station.
// All temperatures are fixed-point tenths of a degree.
type StationStats struct {
	Sum   int64
	Count uint64
	Min   int16
	Max   int16
}

// Add folds a single reading into the stats. The first reading initializes
// Min and Max directly; no sentinel bound is ever compared against.
func (s *StationStats) Add(tenths int16) {
	if s.Count == 0 {
		s.Min = tenths
		s.Max = tenths
	} else {
		s.Min = min(s.Min, tenths)
		s.Max = max(s.Max, tenths)
	}
	s.Sum += int64(tenths)
	s.Count++
}

// Merge combines other into s. Merging an empty stats is a no-op, and merging
// into an empty stats copies other.
func (s *StationStats) Merge(other StationStats) {
	if other.Count == 0 {
		return
	}
	if s.Count == 0 {
		*s = other
		return
	}
	s.Min = min(s.Min, other.Min)
	s.Max = max(s.Max, other.Max)
	s.Sum += other.Sum
	s.Count += other.Count
}

// Block is a half-open byte range [Start, End) of the source file.
// Start is at file start or immediately after a line terminator; End is
// immediately after a line terminator or at end of file.
type Block struct {
	Index int
	Start int64
	End   int64
}

// Len returns the number of bytes covered by the block.
func (b Block) Len() int64 {
	return b.End - b.Start
}

func (b Block) String() string {
	return fmt.Sprintf("block %d [%d, %d)", b.Index, b.Start, b.End)
}

// StationSummary is the rendered view of one station, derived at report time.
type StationSummary struct {
	Name string
	Min  string
	Mean string
	Max  string
}

// AppendTenths appends a tenths-of-degree value as a decimal with exactly one
// fractional digit, e.g. -55 as "-5.5" and 0 as "0.0".
func AppendTenths(dst []byte, v int64) []byte {
	if v < 0 {
		dst = append(dst, '-')
		v = -v
	}
	dst = strconv.AppendInt(dst, v/10, 10)
	return append(dst, '.', byte('0'+v%10))
}
