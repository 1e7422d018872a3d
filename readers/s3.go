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
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/stationagg/aggregate"
	"github.com/aaronlmathis/stationagg/core"
)

// S3ReaderError provides structured error information for S3 reader operations
type S3ReaderError struct {
	Op  string // Operation that failed (e.g., "head_object", "get_object", "read")
	URI string
	Err error // Underlying error
}

func (e *S3ReaderError) Error() string {
	return fmt.Sprintf("s3 reader %s %s: %v", e.Op, e.URI, e.Err)
}

func (e *S3ReaderError) Unwrap() error {
	return e.Err
}

// Is reports a match against core.ErrIO so S3 failures classify as I/O errors.
func (e *S3ReaderError) Is(target error) bool {
	return target == core.ErrIO
}

// S3ReaderStats holds statistics about the S3 reader's performance
type S3ReaderStats struct {
	Requests     int64         // HEAD and ranged GET requests issued
	BlocksRead   int64         // Blocks aggregated
	RecordsRead  int64         // Records parsed across all blocks
	BytesRead    int64         // Object bytes fetched for blocks
	ReadDuration time.Duration // Time spent fetching block ranges
}

// S3API is the subset of the S3 client used by S3BlockReader.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3BlockReader partitions and aggregates a measurements object stored in S3.
//
// Every block is fetched with its own ranged GET, so blocks are read concurrently
// without downloading the object first. Boundary probing during Partition uses
// small ranged reads.
type S3BlockReader struct {
	client S3API
	bucket string
	key    string
	opts   BlockReaderOptions
	mu     sync.Mutex
	stats  S3ReaderStats
}

// NewS3BlockReader creates a reader for s3://bucket/key.
func NewS3BlockReader(client S3API, bucket, key string, options ...BlockReaderOption) (*S3BlockReader, error) {
	if client == nil {
		return nil, &S3ReaderError{Op: "validate", URI: "s3://" + bucket + "/" + key, Err: errors.New("client is required")}
	}
	if bucket == "" || key == "" {
		return nil, &S3ReaderError{Op: "validate", URI: "s3://" + bucket + "/" + key, Err: errors.New("bucket and key are required")}
	}
	opts := BlockReaderOptions{
		Delimiter:     core.DefaultDelimiter,
		CheckInterval: 1 << 16,
		TableSizeHint: 512,
	}
	for _, opt := range options {
		opt(&opts)
	}
	return &S3BlockReader{client: client, bucket: bucket, key: key, opts: opts}, nil
}

func (r *S3BlockReader) String() string {
	return "s3://" + r.bucket + "/" + r.key
}

// Partition looks up the object size and splits it into blocks of about target bytes.
func (r *S3BlockReader) Partition(ctx context.Context, target int64) ([]core.Block, int64, error) {
	head, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
	})
	r.count(1)
	if err != nil {
		return nil, 0, &S3ReaderError{Op: "head_object", URI: r.String(), Err: err}
	}
	size := aws.ToInt64(head.ContentLength)

	blocks, err := Partition(&objectReaderAt{ctx: ctx, r: r}, size, target)
	if err != nil {
		return nil, 0, err
	}
	return blocks, size, nil
}

// Aggregate fetches exactly the bytes of block and folds them into a new table.
// Errors are returned as a *core.BlockError; parse offsets are absolute object offsets.
func (r *S3BlockReader) Aggregate(ctx context.Context, block core.Block) (aggregate.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	buf := make([]byte, block.Len())
	if _, err := r.readRange(ctx, buf, block.Start); err != nil {
		return nil, &core.BlockError{Block: block, Err: err}
	}
	fetched := time.Since(start)

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
	r.stats.ReadDuration += fetched
	r.mu.Unlock()
	return table, nil
}

// Stats returns a copy of the reader statistics.
func (r *S3BlockReader) Stats() S3ReaderStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// readRange fills buf with the object bytes starting at off.
func (r *S3BlockReader) readRange(ctx context.Context, buf []byte, off int64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+int64(len(buf))-1)),
	})
	r.count(1)
	if err != nil {
		return 0, &S3ReaderError{Op: "get_object", URI: r.String(), Err: err}
	}
	defer out.Body.Close()

	n, err := io.ReadFull(out.Body, buf)
	if err != nil {
		return n, &S3ReaderError{Op: "read", URI: r.String(), Err: err}
	}
	return n, nil
}

func (r *S3BlockReader) count(requests int64) {
	r.mu.Lock()
	r.stats.Requests += requests
	r.mu.Unlock()
}

// objectReaderAt adapts ranged GETs to io.ReaderAt for Partition. Reads that run
// past the end of the object are shortened and report io.EOF.
type objectReaderAt struct {
	ctx context.Context
	r   *S3BlockReader
}

func (o *objectReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n, err := o.r.readRange(o.ctx, p, off)
	if err != nil {
		var s3Err *S3ReaderError
		if errors.As(err, &s3Err) && s3Err.Op == "read" && errors.Is(err, io.ErrUnexpectedEOF) {
			return n, io.EOF
		}
		return n, err
	}
	return n, nil
}

var _ io.ReaderAt = (*objectReaderAt)(nil)
