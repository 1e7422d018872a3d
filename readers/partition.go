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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aaronlmathis/stationagg/core"
)

// probeSize is how many bytes are read at a time while looking for a block boundary.
const probeSize = 256

// Partition divides size bytes of r into contiguous, newline-aligned blocks of about
// target bytes each.
//
// Each block is grown past its nominal end to the next line terminator, which it
// includes; the following block starts on the byte after it. The last block ends at
// size whether or not the input ends with a terminator. An empty input yields no
// blocks.
func Partition(r io.ReaderAt, size, target int64) ([]core.Block, error) {
	if target <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", target)
	}
	if size < 0 {
		return nil, fmt.Errorf("input size must not be negative, got %d", size)
	}

	blocks := make([]core.Block, 0, size/target+1)
	probe := make([]byte, probeSize)
	for start := int64(0); start < size; {
		end := start + target
		if end >= size {
			end = size
		} else {
			// A terminator at end-1 closes the block exactly at its nominal size.
			nl, err := nextTerminator(r, end-1, size, probe)
			if err != nil {
				return nil, &core.IOError{Op: "read", Err: err}
			}
			if nl < 0 {
				end = size
			} else {
				end = nl + 1
			}
		}
		blocks = append(blocks, core.Block{Index: len(blocks), Start: start, End: end})
		start = end
	}
	return blocks, nil
}

// PartitionFile opens path and partitions the whole file. It returns the blocks and
// the file size.
func PartitionFile(path string, target int64) ([]core.Block, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &core.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, &core.IOError{Op: "stat", Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, 0, &core.IOError{Op: "stat", Path: path, Err: errors.New("not a regular file")}
	}

	blocks, err := Partition(f, info.Size(), target)
	if err != nil {
		var ioErr *core.IOError
		if errors.As(err, &ioErr) {
			ioErr.Path = path
		}
		return nil, 0, err
	}
	return blocks, info.Size(), nil
}

// nextTerminator returns the offset of the first line terminator at or after from,
// or -1 if there is none before size.
func nextTerminator(r io.ReaderAt, from, size int64, probe []byte) (int64, error) {
	for off := from; off < size; {
		want := min(int64(len(probe)), size-off)
		n, err := r.ReadAt(probe[:want], off)
		if i := bytes.IndexByte(probe[:n], core.LineTerminator); i >= 0 {
			return off + int64(i), nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return -1, err
		}
		if n == 0 {
			break
		}
		off += int64(n)
	}
	return -1, nil
}
