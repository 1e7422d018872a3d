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
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/aaronlmathis/stationagg/aggregate"
	"github.com/aaronlmathis/stationagg/core"
)

// BlockReaderStats holds statistics about the block reader's work.
type BlockReaderStats struct {
	BlocksRead    int64
	RecordsRead   int64
	BytesRead     int64
	ReadDuration  time.Duration
	ParseDuration time.Duration
}

// BlockReaderOptions configures the block reader.
type BlockReaderOptions struct {
	Delimiter     byte
	CheckInterval int // records between context checks
	TableSizeHint int // initial capacity of each block-local table
}

// BlockReaderOption allows functional customization of BlockReader.
type BlockReaderOption func(*BlockReaderOptions)

func WithDelimiter(delim byte) BlockReaderOption {
	return func(o *BlockReaderOptions) { o.Delimiter = delim }
}

func WithCheckInterval(n int) BlockReaderOption {
	return func(o *BlockReaderOptions) {
		if n > 0 {
			o.CheckInterval = n
		}
	}
}

func WithTableSizeHint(n int) BlockReaderOption {
	return func(o *BlockReaderOptions) {
		if n > 0 {
			o.TableSizeHint = n
		}
	}
}

// BlockReader aggregates single blocks of a measurements file.
//
// Aggregate is safe for concurrent use: every call opens its own file handle and
// builds its own table, so concurrent blocks share nothing but the stats counters,
// which are only touched once per block.
type BlockReader struct {
	path  string
	opts  BlockReaderOptions
	bufs  sync.Pool
	mu    sync.Mutex
	stats BlockReaderStats
}

// NewBlockReader creates a BlockReader for the file at path.
func NewBlockReader(path string, options ...BlockReaderOption) *BlockReader {
	opts := BlockReaderOptions{
		Delimiter:     core.DefaultDelimiter,
		CheckInterval: 1 << 16,
		TableSizeHint: 512,
	}
	for _, opt := range options {
		opt(&opts)
	}
	return &BlockReader{path: path, opts: opts}
}

// Aggregate reads exactly the bytes of block and folds every record into a fresh
// block-local table.
//
// Open, seek and read failures are returned as a *core.BlockError wrapping a
// *core.IOError. Parse failures are returned as a *core.BlockError wrapping the
// *core.ParseError, whose Offset is rewritten to the absolute file offset of the line.
func (r *BlockReader) Aggregate(ctx context.Context, block core.Block) (aggregate.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	buf, release, err := r.read(block)
	if err != nil {
		return nil, &core.BlockError{Block: block, Err: err}
	}
	defer release()
	readDone := time.Now()

	table, records, err := aggregateBuffer(ctx, buf, r.opts)
	if err != nil {
		var parseErr *core.ParseError
		if errors.As(err, &parseErr) {
			parseErr.Offset += block.Start
		}
		return nil, &core.BlockError{Block: block, Err: err}
	}

	r.mu.Lock()
	r.stats.BlocksRead++
	r.stats.RecordsRead += records
	r.stats.BytesRead += block.Len()
	r.stats.ReadDuration += readDone.Sub(start)
	r.stats.ParseDuration += time.Since(readDone)
	r.mu.Unlock()

	return table, nil
}

// Partition splits the file into blocks of about target bytes.
func (r *BlockReader) Partition(ctx context.Context, target int64) ([]core.Block, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return PartitionFile(r.path, target)
}

func (r *BlockReader) String() string {
	return r.path
}

// Stats returns a copy of the reader statistics.
func (r *BlockReader) Stats() BlockReaderStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// read loads the block into a pooled buffer. The returned release func hands the
// buffer back; the table built from it owns copies of every name, so the buffer may
// be reused as soon as aggregation finishes.
func (r *BlockReader) read(block core.Block) ([]byte, func(), error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, nil, &core.IOError{Op: "open", Path: r.path, Err: err}
	}
	defer f.Close()

	if _, err := f.Seek(block.Start, io.SeekStart); err != nil {
		return nil, nil, &core.IOError{Op: "seek", Path: r.path, Err: err}
	}

	n := int(block.Len())
	var buf []byte
	if pooled, ok := r.bufs.Get().(*[]byte); ok && cap(*pooled) >= n {
		buf = (*pooled)[:n]
	} else {
		buf = make([]byte, n)
	}
	release := func() { r.bufs.Put(&buf) }

	if _, err := io.ReadFull(f, buf); err != nil {
		release()
		return nil, nil, &core.IOError{Op: "read", Path: r.path, Err: err}
	}
	return buf, release, nil
}

// AggregateBuffer folds every record in buf into a new table.
func AggregateBuffer(ctx context.Context, buf []byte, delim byte) (aggregate.Table, error) {
	opts := BlockReaderOptions{Delimiter: delim, CheckInterval: 1 << 16, TableSizeHint: 512}
	table, _, err := aggregateBuffer(ctx, buf, opts)
	return table, err
}

func aggregateBuffer(ctx context.Context, buf []byte, opts BlockReaderOptions) (aggregate.Table, int64, error) {
	table := aggregate.NewTable(opts.TableSizeHint)
	splitter := NewRecordSplitter(buf, opts.Delimiter)

	var records int64
	untilCheck := opts.CheckInterval
	for {
		name, reading, err := splitter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, records, detach(err)
		}

		v, err := ParseReading(reading)
		if err != nil {
			var parseErr *core.ParseError
			if errors.As(err, &parseErr) {
				parseErr.Offset = splitter.Offset()
			}
			return nil, records, detach(err)
		}
		table.Add(name, v)
		records++

		untilCheck--
		if untilCheck <= 0 {
			if err := ctx.Err(); err != nil {
				return nil, records, err
			}
			untilCheck = opts.CheckInterval
		}
	}
	return table, records, nil
}

// detach copies the offending input out of the block buffer, which is about to be
// reused.
func detach(err error) error {
	var parseErr *core.ParseError
	if errors.As(err, &parseErr) {
		parseErr.Input = bytes.Clone(parseErr.Input)
	}
	return err
}
