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
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/stationagg/aggregate"
	"github.com/aaronlmathis/stationagg/core"
	"github.com/aaronlmathis/stationagg/readers"
	"github.com/aaronlmathis/stationagg/writers"
)

// Package stationagg provides the partition-parse-aggregate-merge pipeline.
//
// Core Concepts:
//   - Block: a newline-aligned byte range of the source file, parsed independently.
//   - BlockAggregator: parses one block into a block-local table (readers.BlockReader by default).
//   - Merge: block-local tables are folded into one global table after every block has finished.
//   - ReportSink: receives the rendered report; sinks stage output and only commit on success.
//   - Publisher: optional consumer of the merged table, run after the report is committed.
//
// Example usage:
//
//   pipeline, err := stationagg.NewPipeline().
//       From("measurements.txt").
//       WithBlockSize(16 << 20).
//       WithWorkers(runtime.NumCPU()).
//       To(fileSink).
//       Build()
//   if err != nil { log.Fatal(err) }
//   result, err := pipeline.Execute(context.Background())
//
// Any failure aborts the whole run and every sink, so no partial report is ever written.

// DefaultBlockSize is the nominal block size in bytes.
const DefaultBlockSize int64 = 10_000_000

// PipelineBuilder provides a fluent API for constructing the aggregation pipeline.
// Use NewPipeline() to create a new builder, then chain From, To and configuration methods.
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder with default settings.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			blockSize: DefaultBlockSize,
			workers:   runtime.GOMAXPROCS(0),
			delimiter: core.DefaultDelimiter,
			logger:    slog.Default(),
		},
	}
}

// From sets the path of the measurements file.
func (pb *PipelineBuilder) From(path string) *PipelineBuilder {
	pb.pipeline.source = path
	return pb
}

// FromSource reads from src instead of a local path. The source parses with its own
// delimiter; WithDelimiter only applies to paths set with From.
func (pb *PipelineBuilder) FromSource(src Source) *PipelineBuilder {
	pb.pipeline.source = src.String()
	pb.pipeline.partitioner = src
	pb.pipeline.aggregator = src
	return pb
}

// To adds a ReportSink. Several sinks may be added; they are all written before any
// of them is closed.
func (pb *PipelineBuilder) To(sink core.ReportSink) *PipelineBuilder {
	pb.pipeline.sinks = append(pb.pipeline.sinks, sink)
	return pb
}

// Publish adds a Publisher that receives the merged table after the sinks commit.
func (pb *PipelineBuilder) Publish(p Publisher) *PipelineBuilder {
	pb.pipeline.publishers = append(pb.pipeline.publishers, p)
	return pb
}

// WithBlockSize sets the nominal block size in bytes.
func (pb *PipelineBuilder) WithBlockSize(n int64) *PipelineBuilder {
	pb.pipeline.blockSize = n
	return pb
}

// WithWorkers sets how many blocks are parsed concurrently. Zero or less selects
// GOMAXPROCS.
func (pb *PipelineBuilder) WithWorkers(n int) *PipelineBuilder {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	pb.pipeline.workers = n
	return pb
}

// WithDelimiter sets the field delimiter.
func (pb *PipelineBuilder) WithDelimiter(delim byte) *PipelineBuilder {
	pb.pipeline.delimiter = delim
	return pb
}

// WithBlockAggregator replaces the block aggregator of the source. Partitioning is
// still done by the source.
func (pb *PipelineBuilder) WithBlockAggregator(agg BlockAggregator) *PipelineBuilder {
	pb.pipeline.aggregator = agg
	return pb
}

// WithLogger sets the logger. Nil keeps slog.Default().
func (pb *PipelineBuilder) WithLogger(logger *slog.Logger) *PipelineBuilder {
	if logger != nil {
		pb.pipeline.logger = logger
	}
	return pb
}

// Build validates and constructs the Pipeline from the builder.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	p := pb.pipeline
	if p.source == "" && p.partitioner == nil {
		return nil, fmt.Errorf("pipeline requires a source")
	}
	if p.blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", p.blockSize)
	}
	if p.delimiter == core.LineTerminator {
		return nil, fmt.Errorf("delimiter must not be the line terminator")
	}
	if p.partitioner == nil {
		reader := readers.NewBlockReader(p.source, readers.WithDelimiter(p.delimiter))
		p.partitioner = reader
		if p.aggregator == nil {
			p.aggregator = reader
		}
	}
	return p, nil
}

// Pipeline runs one aggregation over a measurements file.
type Pipeline struct {
	source      string
	blockSize   int64
	workers     int
	delimiter   byte
	partitioner Partitioner
	aggregator  BlockAggregator
	sinks       []core.ReportSink
	publishers  []Publisher
	logger      *slog.Logger
}

// Result describes a completed run.
type Result struct {
	Table    aggregate.Table
	Report   []byte // rendered report without trailing newline
	Blocks   int
	Bytes    int64
	Records  uint64
	Stations int

	PartitionDuration time.Duration
	AggregateDuration time.Duration
	MergeDuration     time.Duration
	RenderDuration    time.Duration
}

// Execute partitions the source, aggregates every block, merges, renders the report,
// commits it to every sink and finally runs the publishers.
//
// On failure every sink is aborted and the returned error carries the failing block
// and error kind; abort failures are appended to it.
func (p *Pipeline) Execute(ctx context.Context) (*Result, error) {
	res, err := p.execute(ctx)
	if err != nil {
		var errs *multierror.Error
		for _, sink := range p.sinks {
			if abortErr := sink.Abort(); abortErr != nil {
				errs = multierror.Append(errs, abortErr)
			}
		}
		if errs.ErrorOrNil() != nil {
			return nil, fmt.Errorf("%w (abort: %v)", err, errs)
		}
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) execute(ctx context.Context) (*Result, error) {
	res := &Result{}

	table, err := p.aggregate(ctx, res)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report, err := writers.RenderReport(table)
	if err != nil {
		return nil, err
	}
	res.RenderDuration = time.Since(start)
	res.Table = table
	res.Report = report
	res.Stations = len(table)
	res.Records = table.Records()

	if err := p.commit(ctx, append(report, core.LineTerminator)); err != nil {
		return nil, err
	}

	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, table); err != nil {
			return nil, fmt.Errorf("publish: %w", err)
		}
	}

	p.logger.Info("Aggregation complete",
		slog.String("source", p.source),
		slog.Int("blocks", res.Blocks),
		slog.Int("stations", res.Stations),
		slog.Uint64("records", res.Records),
		slog.Duration("partition", res.PartitionDuration),
		slog.Duration("aggregate", res.AggregateDuration),
		slog.Duration("merge", res.MergeDuration),
		slog.Duration("render", res.RenderDuration))
	return res, nil
}

// Aggregate runs the partition, block and merge stages and returns the global table
// without rendering or committing anything.
func (p *Pipeline) Aggregate(ctx context.Context) (aggregate.Table, error) {
	return p.aggregate(ctx, &Result{})
}

func (p *Pipeline) aggregate(ctx context.Context, res *Result) (aggregate.Table, error) {
	start := time.Now()
	blocks, size, err := p.partitioner.Partition(ctx, p.blockSize)
	if err != nil {
		return nil, err
	}
	res.PartitionDuration = time.Since(start)
	res.Blocks = len(blocks)
	res.Bytes = size
	p.logger.Debug("Partitioned source",
		slog.String("source", p.source),
		slog.Int64("size", size),
		slog.Int64("blockSize", p.blockSize),
		slog.Int("blocks", len(blocks)),
		slog.Int("workers", p.workers))

	start = time.Now()
	tables, err := p.aggregateBlocks(ctx, blocks)
	if err != nil {
		return nil, err
	}
	res.AggregateDuration = time.Since(start)

	start = time.Now()
	merger := aggregate.NewMerger()
	for _, t := range tables {
		if err := merger.Add(ctx, t); err != nil {
			return nil, err
		}
	}
	res.MergeDuration = time.Since(start)
	return merger.Result(), nil
}

// aggregateBlocks parses every block on at most p.workers goroutines. Results are
// stored by block index, so workers never touch shared state. The first failure
// cancels the remaining blocks.
func (p *Pipeline) aggregateBlocks(ctx context.Context, blocks []core.Block) ([]aggregate.Table, error) {
	tables := make([]aggregate.Table, len(blocks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, block := range blocks {
		g.Go(func() error {
			t, err := p.aggregator.Aggregate(gctx, block)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					p.logger.Error("Block failed",
						slog.Int("block", block.Index),
						slog.Int64("start", block.Start),
						slog.Int64("end", block.End),
						slog.Any("error", err))
				}
				return err
			}
			tables[block.Index] = t
			p.logger.Debug("Block aggregated",
				slog.Int("block", block.Index),
				slog.Int("stations", len(t)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

// commit writes the report to every sink, then closes them. A write failure aborts
// before any sink has been closed.
func (p *Pipeline) commit(ctx context.Context, report []byte) error {
	for _, sink := range p.sinks {
		if err := sink.Write(ctx, report); err != nil {
			return err
		}
	}
	var errs *multierror.Error
	for _, sink := range p.sinks {
		if err := sink.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
