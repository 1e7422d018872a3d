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
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/stationagg/core"
)

// S3WriterError wraps S3-specific write errors with context.
type S3WriterError struct {
	Op  string
	Err error
}

func (e *S3WriterError) Error() string {
	return fmt.Sprintf("s3 writer %s: %v", e.Op, e.Err)
}

func (e *S3WriterError) Unwrap() error {
	return e.Err
}

// Is reports a match against core.ErrIO so upload failures classify as I/O errors.
func (e *S3WriterError) Is(target error) bool {
	return target == core.ErrIO
}

// Uploader is the subset of the s3 transfer manager used by S3Writer.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// S3WriterOptions configures S3 output.
type S3WriterOptions struct {
	ContentType   string
	UploadTimeout time.Duration
}

// WriterOptionS3 is a functional option.
type WriterOptionS3 func(*S3WriterOptions)

func WithS3ContentType(contentType string) WriterOptionS3 {
	return func(opts *S3WriterOptions) { opts.ContentType = contentType }
}

func WithS3UploadTimeout(timeout time.Duration) WriterOptionS3 {
	return func(opts *S3WriterOptions) {
		if timeout > 0 {
			opts.UploadTimeout = timeout
		}
	}
}

// S3Writer buffers the report in memory and uploads it as a single object on Close.
// Aborting discards the buffer without touching the bucket.
type S3Writer struct {
	uploader Uploader
	bucket   string
	key      string
	options  S3WriterOptions
	buf      bytes.Buffer
	done     bool
	mu       sync.Mutex
}

// NewS3Writer creates an S3Writer for s3://bucket/key.
func NewS3Writer(uploader Uploader, bucket, key string, opts ...WriterOptionS3) (*S3Writer, error) {
	if uploader == nil {
		return nil, &S3WriterError{Op: "validate", Err: errors.New("uploader is required")}
	}
	if bucket == "" || key == "" {
		return nil, &S3WriterError{Op: "validate", Err: fmt.Errorf("bucket and key are required, got %q and %q", bucket, key)}
	}
	options := S3WriterOptions{
		ContentType:   "text/plain; charset=utf-8",
		UploadTimeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &S3Writer{uploader: uploader, bucket: bucket, key: key, options: options}, nil
}

// Write implements the core.ReportSink interface.
func (w *S3Writer) Write(ctx context.Context, report []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return &S3WriterError{Op: "write", Err: errors.New("writer is closed")}
	}
	w.buf.Write(report)
	return nil
}

// Close uploads the buffered report.
func (w *S3Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return nil
	}
	w.done = true

	ctx, cancel := context.WithTimeout(context.Background(), w.options.UploadTimeout)
	defer cancel()

	_, err := w.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key),
		Body:        bytes.NewReader(w.buf.Bytes()),
		ContentType: aws.String(w.options.ContentType),
	})
	if err != nil {
		return &S3WriterError{Op: "upload", Err: fmt.Errorf("s3://%s/%s: %w", w.bucket, w.key, err)}
	}
	return nil
}

// Abort discards the buffered report.
func (w *S3Writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.done = true
	w.buf.Reset()
	return nil
}

var _ core.ReportSink = (*S3Writer)(nil)
