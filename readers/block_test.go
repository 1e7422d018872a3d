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
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/stationagg/aggregate"
	"github.com/aaronlmathis/stationagg/core"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "measurements.txt")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestBlockReader_Aggregate(t *testing.T) {
	data := []byte("A;10.0\nB;20.0\nA;-5.5\n")
	path := writeTemp(t, data)
	r := NewBlockReader(path)

	table, err := r.Aggregate(context.Background(), core.Block{Start: 0, End: int64(len(data))})
	require.NoError(t, err)
	a, ok := table.Get("A")
	require.True(t, ok)
	assert.Equal(t, core.StationStats{Sum: 45, Count: 2, Min: -55, Max: 100}, a)
	b, ok := table.Get("B")
	require.True(t, ok)
	assert.Equal(t, core.StationStats{Sum: 200, Count: 1, Min: 200, Max: 200}, b)

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.BlocksRead)
	assert.Equal(t, int64(3), stats.RecordsRead)
	assert.Equal(t, int64(len(data)), stats.BytesRead)
}

// TestBlockReader_BlocksMatchWhole aggregates a file block by block, concurrently, and
// compares the merged result with a single pass over the whole buffer.
func TestBlockReader_BlocksMatchWhole(t *testing.T) {
	data := sampleInput(500)
	path := writeTemp(t, data)

	want, err := AggregateBuffer(context.Background(), data, ';')
	require.NoError(t, err)

	for _, target := range []int64{1, 13, 100, 4096} {
		blocks, _, err := PartitionFile(path, target)
		require.NoError(t, err)

		r := NewBlockReader(path, WithTableSizeHint(8), WithCheckInterval(3))
		tables := make([]aggregate.Table, len(blocks))
		var wg sync.WaitGroup
		errs := make([]error, len(blocks))
		for i, block := range blocks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tables[i], errs[i] = r.Aggregate(context.Background(), block)
			}()
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}

		got, err := aggregate.MergeAll(context.Background(), tables...)
		require.NoError(t, err)
		assert.Equal(t, want, got, "target %d", target)
		assert.Equal(t, int64(len(blocks)), r.Stats().BlocksRead)
	}
}

// TestBlockReader_ParseErrorOffset checks that offsets are reported relative to the file
func TestBlockReader_ParseErrorOffset(t *testing.T) {
	data := []byte("A;1.0\nB;2.0\nC;3.00\nD;4.0\n")
	path := writeTemp(t, data)
	r := NewBlockReader(path)

	block := core.Block{Index: 1, Start: 6, End: int64(len(data))}
	_, err := r.Aggregate(context.Background(), block)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedReading)

	var blockErr *core.BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, block, blockErr.Block)

	var parseErr *core.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, int64(12), parseErr.Offset)
	assert.Equal(t, "3.00", string(parseErr.Input))

	// The pooled buffer is reused by the next block; the error must keep its own copy.
	_, err = r.Aggregate(context.Background(), core.Block{Start: 0, End: 12})
	require.NoError(t, err)
	assert.Equal(t, "3.00", string(parseErr.Input))
}

func TestBlockReader_MissingDelimiter(t *testing.T) {
	data := []byte("A;1.0\nB 2.0\n")
	path := writeTemp(t, data)

	_, err := NewBlockReader(path).Aggregate(context.Background(), core.Block{End: int64(len(data))})
	require.Error(t, err)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindMissingDelimiter, kind)

	var parseErr *core.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, int64(6), parseErr.Offset)
}

func TestBlockReader_CustomDelimiter(t *testing.T) {
	data := []byte("Oslo|1.0\nOslo|3.0\n")
	path := writeTemp(t, data)

	table, err := NewBlockReader(path, WithDelimiter('|')).Aggregate(context.Background(), core.Block{End: int64(len(data))})
	require.NoError(t, err)
	s, ok := table.Get("Oslo")
	require.True(t, ok)
	assert.Equal(t, uint64(2), s.Count)
}

func TestBlockReader_IOError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.txt")
	_, err := NewBlockReader(path).Aggregate(context.Background(), core.Block{End: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrIO)

	// A block past the end of the file is a short read.
	data := []byte("A;1.0\n")
	path = writeTemp(t, data)
	_, err = NewBlockReader(path).Aggregate(context.Background(), core.Block{Start: 0, End: 100})
	require.Error(t, err)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, core.KindIO, kind)
}

func TestBlockReader_Canceled(t *testing.T) {
	data := sampleInput(100)
	path := writeTemp(t, data)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBlockReader(path).Aggregate(ctx, core.Block{End: int64(len(data))})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = AggregateBuffer(ctx, data, ';')
	assert.NoError(t, err, "buffers shorter than the check interval are not interrupted")
}

func BenchmarkAggregateBuffer(b *testing.B) {
	data := sampleInput(100_000)
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := AggregateBuffer(context.Background(), data, ';'); err != nil {
			b.Fatal(err)
		}
	}
}
