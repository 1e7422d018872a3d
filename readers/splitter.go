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
	"bytes"
	"io"

	"github.com/aaronlmathis/stationagg/core"
)

// RecordSplitter yields (name, reading) pairs from a buffer of newline-terminated
// records. Returned slices alias the buffer.
//
// Each line is split on the last occurrence of the delimiter, so station names may
// themselves contain the delimiter byte.
type RecordSplitter struct {
	buf   []byte
	delim byte
	pos   int
	line  int
	err   error
}

// NewRecordSplitter creates a splitter over buf using delim as the field delimiter.
func NewRecordSplitter(buf []byte, delim byte) *RecordSplitter {
	return &RecordSplitter{buf: buf, delim: delim}
}

// Next returns the next record, or io.EOF when the buffer is exhausted.
// A terminator at the very end of the buffer does not produce an empty record, while a
// final line without a terminator is still returned. A line without the delimiter
// returns a *core.ParseError of kind core.KindMissingDelimiter; once an error has been
// returned every later call returns it again.
func (s *RecordSplitter) Next() (name, reading []byte, err error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	if s.pos >= len(s.buf) {
		return nil, nil, io.EOF
	}

	rest := s.buf[s.pos:]
	s.line = s.pos
	line := rest
	if i := bytes.IndexByte(rest, core.LineTerminator); i >= 0 {
		line = rest[:i]
		s.pos += i + 1
	} else {
		s.pos = len(s.buf)
	}

	j := bytes.LastIndexByte(line, s.delim)
	if j < 0 {
		s.err = &core.ParseError{
			Kind:   core.KindMissingDelimiter,
			Offset: int64(s.line),
			Input:  line,
		}
		return nil, nil, s.err
	}
	return line[:j], line[j+1:], nil
}

// Offset returns the buffer offset of the line most recently returned by Next.
func (s *RecordSplitter) Offset() int64 {
	return int64(s.line)
}
