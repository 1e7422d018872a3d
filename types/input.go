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
	"strings"

	"github.com/aaronlmathis/stationagg"
	"github.com/aaronlmathis/stationagg/readers"
)

// ParseSource maps a source string to a pipeline source. s3://bucket/key reads the
// object with ranged requests; anything else is a local path.
func ParseSource(ctx context.Context, src string, s3opts S3Options, delim byte) (stationagg.Source, error) {
	if src == "" {
		return nil, fmt.Errorf("source is required")
	}
	if !strings.HasPrefix(src, "s3://") {
		return readers.NewBlockReader(src, readers.WithDelimiter(delim)), nil
	}

	bucket, key, err := parseS3URI(src)
	if err != nil {
		return nil, fmt.Errorf("invalid s3 source: %w", err)
	}
	client, err := newS3Client(ctx, s3opts)
	if err != nil {
		return nil, err
	}
	reader, err := readers.NewS3BlockReader(client, bucket, key, readers.WithDelimiter(delim))
	if err != nil {
		return nil, err
	}
	return reader, nil
}
