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

package aggregate

import (
	"context"
)

// Aggregator defines the interface for folding block-local tables into a result.
type Aggregator interface {
	// Add folds a block-local table into the aggregate.
	Add(ctx context.Context, table Table) error
	// Result returns the aggregated table.
	Result() Table
	// Reset clears the aggregator state for reuse.
	Reset()
}

// Merger owns the global table and folds block-local tables into it.
// It is not safe for concurrent use: the pipeline only calls it after every block
// has finished.
type Merger struct {
	global Table
	tables int
}

// NewMerger creates a Merger with an empty global table.
func NewMerger() *Merger {
	return &Merger{global: NewTable(512)}
}

// Add merges table into the global table. The order of calls does not matter.
func (m *Merger) Add(ctx context.Context, table Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.global == nil {
		m.global = NewTable(len(table))
	}
	m.global.Merge(table)
	m.tables++
	return nil
}

// Result returns the global table.
func (m *Merger) Result() Table {
	if m.global == nil {
		return NewTable(0)
	}
	return m.global
}

// Tables returns how many block-local tables have been merged.
func (m *Merger) Tables() int {
	return m.tables
}

// Reset drops the global table.
func (m *Merger) Reset() {
	m.global = NewTable(512)
	m.tables = 0
}

// MergeAll folds tables into a fresh table.
func MergeAll(ctx context.Context, tables ...Table) (Table, error) {
	m := NewMerger()
	for _, t := range tables {
		if err := m.Add(ctx, t); err != nil {
			return nil, err
		}
	}
	return m.Result(), nil
}
var _ Aggregator = (*Merger)(nil)
