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
	"io"
)

// Package core defines the core interfaces for the StationAgg library.
//
// This file contains the sink interface the pipeline hands its rendered report to.

// ReportSink receives the rendered report of a successful run.
// Implementations stage the bytes written and only make them visible on Close; a sink
// that is aborted must leave no trace at its destination.
type ReportSink interface {
	// Write stages report bytes. It may be called more than once.
	Write(ctx context.Context, report []byte) error
	// Close commits the staged report to its destination.
	Close() error
	// Abort discards anything staged. Abort after Close is a no-op.
	Abort() error
}

// ReportSinkFunc adapts a function to a ReportSink that commits on every Write.
// Close and Abort are no-ops.
type ReportSinkFunc func(ctx context.Context, report []byte) error

// Write implements the ReportSink interface for ReportSinkFunc.
func (f ReportSinkFunc) Write(ctx context.Context, report []byte) error {
	return f(ctx, report)
}

// Close implements the ReportSink interface for ReportSinkFunc.
func (f ReportSinkFunc) Close() error { return nil }

// Abort implements the ReportSink interface for ReportSinkFunc.
func (f ReportSinkFunc) Abort() error { return nil }

// SinkWriter returns an io.Writer that stages every Write into sink. It lets stream
// producers such as the generator write through a staged sink.
func SinkWriter(ctx context.Context, sink ReportSink) io.Writer {
	return sinkWriter{ctx: ctx, sink: sink}
}

type sinkWriter struct {
	ctx  context.Context
	sink ReportSink
}

func (w sinkWriter) Write(p []byte) (int, error) {
	if err := w.sink.Write(w.ctx, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
