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
	"maps"
	"slices"

	"github.com/aaronlmathis/stationagg/core"
)

// Table groups running statistics by station name.
//
// Keys are Go strings, so a name is copied out of the block buffer the first time it
// is inserted and the table never borrows from memory it does not own.
type Table map[string]*core.StationStats

// NewTable creates an empty table sized for about n stations.
func NewTable(n int) Table {
	return make(Table, n)
}

// Add folds one reading into the entry for name, creating it on first sight.
func (t Table) Add(name []byte, tenths int16) {
	// string(name) in an index expression does not allocate.
	if s, ok := t[string(name)]; ok {
		s.Add(tenths)
		return
	}
	s := &core.StationStats{}
	s.Add(tenths)
	t[string(name)] = s
}

// Merge folds every entry of other into t. Stations new to t are moved in
// directly, so other must not be used afterwards.
func (t Table) Merge(other Table) {
	for name, s := range other {
		if existing, ok := t[name]; ok {
			existing.Merge(*s)
			continue
		}
		t[name] = s
	}
}

// Get returns a copy of the stats for name.
func (t Table) Get(name string) (core.StationStats, bool) {
	s, ok := t[name]
	if !ok {
		return core.StationStats{}, false
	}
	return *s, true
}

// SortedNames returns the station names in ascending byte order.
func (t Table) SortedNames() []string {
	return slices.Sorted(maps.Keys(t))
}

// Records returns the total number of readings folded into the table.
func (t Table) Records() uint64 {
	var n uint64
	for _, s := range t {
		n += s.Count
	}
	return n
}
