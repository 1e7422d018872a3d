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

package types

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/stationagg/core"
	"github.com/aaronlmathis/stationagg/writers"
)

// OutputLocation creates the sink a report is delivered to.
type OutputLocation interface {
	NewSink(ctx context.Context) (core.ReportSink, error)
	String() string
}

// FileLocation writes output to a local filesystem path.
type FileLocation struct {
	Path string
}

// NewSink instantiates an atomic file writer for the location.
func (f FileLocation) NewSink(ctx context.Context) (core.ReportSink, error) {
	return writers.NewFileWriter(f.Path)
}

func (f FileLocation) String() string {
	return f.Path
}

// S3Options carries the client settings used when an S3Location builds its own
// uploader.
type S3Options struct {
	Region          string
	Endpoint        string // Custom S3 endpoint (for S3-compatible services)
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

// S3Location writes the report to an object in an S3 bucket.
type S3Location struct {
	Bucket   string
	Key      string
	Options  S3Options
	Uploader writers.Uploader
}

// NewSink creates a writer uploading to S3, building an uploader from the default
// AWS configuration chain when none was supplied.
func (s S3Location) NewSink(ctx context.Context) (core.ReportSink, error) {
	if s.Uploader == nil {
		uploader, err := newUploader(ctx, s.Options)
		if err != nil {
			return nil, err
		}
		s.Uploader = uploader
	}
	return writers.NewS3Writer(s.Uploader, s.Bucket, s.Key)
}

func (s S3Location) String() string {
	return "s3://" + s.Bucket + "/" + s.Key
}

func newUploader(ctx context.Context, opts S3Options) (*s3manager.Uploader, error) {
	client, err := newS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s3manager.NewUploader(client), nil
}

func newS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	}), nil
}

// ParseLocation maps a destination string to an OutputLocation. s3://bucket/key
// selects S3; anything else is a local path.
func ParseLocation(dest string, s3opts S3Options) (OutputLocation, error) {
	if dest == "" {
		return nil, fmt.Errorf("destination is required")
	}
	if !strings.HasPrefix(dest, "s3://") {
		return FileLocation{Path: dest}, nil
	}

	bucket, key, err := parseS3URI(dest)
	if err != nil {
		return nil, fmt.Errorf("invalid s3 destination: %w", err)
	}
	return S3Location{Bucket: bucket, Key: key, Options: s3opts}, nil
}

func parseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%q: want s3://bucket/key", uri)
	}
	return u.Host, key, nil
}
