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
	"errors"
	"fmt"
)

// Package core defines the error types for the StationAgg library.
//
// Every failure is fatal to the run: the only output is a numeric aggregate, and a
// partial aggregate cannot be told apart from a wrong one. The structured errors below
// carry enough context (block, offset, path) to point at the failing input.

// ErrorKind classifies a failure.
type ErrorKind int

const (
	// KindIO is a file open, seek, read or write failure.
	KindIO ErrorKind = iota
	// KindMalformedReading is a reading that does not match -?\d{1,3}\.\d.
	KindMalformedReading
	// KindMissingDelimiter is a line without the field delimiter.
	KindMissingDelimiter
	// KindInvariantViolation indicates an implementation bug.
	KindInvariantViolation
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io error"
	case KindMalformedReading:
		return "malformed reading"
	case KindMissingDelimiter:
		return "missing delimiter"
	case KindInvariantViolation:
		return "invariant violation"
	default:
		return fmt.Sprintf("unknown error kind %d", int(k))
	}
}

// Sentinel errors, one per kind. Structured errors match them with errors.Is.
var (
	ErrIO                 = errors.New("io error")
	ErrMalformedReading   = errors.New("malformed reading")
	ErrMissingDelimiter   = errors.New("missing delimiter")
	ErrInvariantViolation = errors.New("invariant violation")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindIO:
		return ErrIO
	case KindMalformedReading:
		return ErrMalformedReading
	case KindMissingDelimiter:
		return ErrMissingDelimiter
	case KindInvariantViolation:
		return ErrInvariantViolation
	default:
		return nil
	}
}

// IOError wraps a failed file operation.
type IOError struct {
	Op   string // open, stat, seek, read, write, rename, upload
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("io %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("io %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is reports a match against ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// Kind returns KindIO.
func (e *IOError) Kind() ErrorKind {
	return KindIO
}

// ParseError reports input that does not match the record grammar.
// Offset is relative to whatever buffer was being parsed; BlockReader rewrites it to
// an absolute file offset.
type ParseError struct {
	Kind   ErrorKind
	Offset int64
	Input  []byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d: %q", e.Kind, e.Offset, truncate(e.Input, 64))
}

// Is reports a match against the sentinel for e.Kind.
func (e *ParseError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// BlockError attaches the failing block to an error raised while processing it.
type BlockError struct {
	Block Block
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("%s: %v", e.Block, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// InvariantError is returned when a sorted station key is absent from the table it
// was derived from.
type InvariantError struct {
	Station string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation: station %q missing from table", e.Station)
}

// Is reports a match against ErrInvariantViolation.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariantViolation
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ioErr *IOError
	var parseErr *ParseError
	var invErr *InvariantError
	switch {
	case errors.As(err, &parseErr):
		return parseErr.Kind, true
	case errors.As(err, &ioErr):
		return KindIO, true
	case errors.As(err, &invErr):
		return KindInvariantViolation, true
	case errors.Is(err, ErrIO):
		return KindIO, true
	}
	return 0, false
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
