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

package stationagg

import (
	"context"

	"github.com/aaronlmathis/stationagg/aggregate"
	"github.com/aaronlmathis/stationagg/core"
)

// Package stationagg defines the core interfaces and the pipeline of the StationAgg library.
//
// StationAgg aggregates per-station temperature readings from very large delimited files
// into a single {name=min/mean/max, ...} report. The file is partitioned into
// newline-aligned blocks, each block is parsed into its own table on a bounded worker
// pool, and the tables are merged once every block has finished.
//
// This file contains the interfaces the pipeline is composed from.

// Partitioner splits a source into contiguous, newline-aligned blocks of about target
// bytes. It returns the blocks and the total source size.
type Partitioner interface {
	Partition(ctx context.Context, target int64) ([]core.Block, int64, error)
}

// Source is a measurements source that can be partitioned and aggregated block by
// block, such as readers.BlockReader for local files or readers.S3BlockReader for
// objects in S3.
type Source interface {
	Partitioner
	BlockAggregator
	String() string
}

// BlockAggregator parses one block of the source into a block-local table.
// Implementations must be safe for concurrent use across distinct blocks.
type BlockAggregator interface {
	Aggregate(ctx context.Context, block core.Block) (aggregate.Table, error)
}

// BlockAggregatorFunc is a function adapter for the BlockAggregator interface.
type BlockAggregatorFunc func(ctx context.Context, block core.Block) (aggregate.Table, error)

// Aggregate implements the BlockAggregator interface for BlockAggregatorFunc.
func (f BlockAggregatorFunc) Aggregate(ctx context.Context, block core.Block) (aggregate.Table, error) {
	return f(ctx, block)
}

// Publisher receives the merged table after the report has been committed.
type Publisher interface {
	Publish(ctx context.Context, table aggregate.Table) error
}

// PublisherFunc is a function adapter for the Publisher interface.
type PublisherFunc func(ctx context.Context, table aggregate.Table) error

// Publish implements the Publisher interface for PublisherFunc.
func (f PublisherFunc) Publish(ctx context.Context, table aggregate.Table) error {
	return f(ctx, table)
}
