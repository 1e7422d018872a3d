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
	"context"
	"io"
	"sync"

	"github.com/aaronlmathis/stationagg/aggregate"
	"github.com/aaronlmathis/stationagg/core"
)

// Package writers renders the aggregated station table and delivers it to its
// destinations.
//
// The report is a single line, {name=min/mean/max, ...}, with names in ascending byte
// order and one decimal place per value. Min and max are exact; the mean is rounded
// half-up (ties toward positive infinity) in integer arithmetic.

// MeanTenths returns sum/count rounded half-up to the nearest integer, where sum is
// already in tenths. count must be positive.
func MeanTenths(sum int64, count uint64) int64 {
	c := int64(count)
	return floorDiv(2*sum+c, 2*c)
}

// FormatTenths renders a tenths value with one decimal place.
func FormatTenths(v int64) string {
	return string(core.AppendTenths(make([]byte, 0, 8), v))
}

// FormatMean renders the rounded mean of sum tenths over count readings.
func FormatMean(sum int64, count uint64) string {
	return FormatTenths(MeanTenths(sum, count))
}

// Summarize derives the rendered view of one station.
func Summarize(name string, s core.StationStats) core.StationSummary {
	return core.StationSummary{
		Name: name,
		Min:  FormatTenths(int64(s.Min)),
		Mean: FormatMean(s.Sum, s.Count),
		Max:  FormatTenths(int64(s.Max)),
	}
}

// Summaries returns the rendered view of every station in byte order of name.
func Summaries(t aggregate.Table) ([]core.StationSummary, error) {
	names := t.SortedNames()
	out := make([]core.StationSummary, 0, len(names))
	for _, name := range names {
		s, ok := t.Get(name)
		if !ok || s.Count == 0 {
			return nil, &core.InvariantError{Station: name}
		}
		out = append(out, Summarize(name, s))
	}
	return out, nil
}

// RenderReport serializes t as {name=min/mean/max, ...} without a trailing newline.
func RenderReport(t aggregate.Table) ([]byte, error) {
	summaries, err := Summaries(t)
	if err != nil {
		return nil, err
	}

	size := 2
	for _, s := range summaries {
		size += len(s.Name) + len(s.Min) + len(s.Mean) + len(s.Max) + 5
	}
	buf := make([]byte, 0, size)
	buf = append(buf, '{')
	for i, s := range summaries {
		if i > 0 {
			buf = append(buf, ',', ' ')
		}
		buf = append(buf, s.Name...)
		buf = append(buf, '=')
		buf = append(buf, s.Min...)
		buf = append(buf, '/')
		buf = append(buf, s.Mean...)
		buf = append(buf, '/')
		buf = append(buf, s.Max...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// ReportWriter writes rendered reports to an io.Writer.
// It implements core.ReportSink; Close and Abort do not close the underlying writer.
type ReportWriter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewReportWriter creates a ReportWriter over w.
func NewReportWriter(w io.Writer) *ReportWriter {
	return &ReportWriter{w: w}
}

// WriteTable renders t and writes it followed by a newline.
func (r *ReportWriter) WriteTable(ctx context.Context, t aggregate.Table) error {
	report, err := RenderReport(t)
	if err != nil {
		return err
	}
	return r.Write(ctx, append(report, '\n'))
}

// Write implements the core.ReportSink interface.
func (r *ReportWriter) Write(ctx context.Context, report []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(report); err != nil {
		return &core.IOError{Op: "write", Err: err}
	}
	return nil
}

// Close implements the core.ReportSink interface.
func (r *ReportWriter) Close() error { return nil }

// Abort implements the core.ReportSink interface.
func (r *ReportWriter) Abort() error { return nil }

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

var _ core.ReportSink = (*ReportWriter)(nil)
