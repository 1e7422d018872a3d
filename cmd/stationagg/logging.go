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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"

	"github.com/aaronlmathis/stationagg/config"
)

// setupLogging installs the process logger. Logs go to stderr so the report can
// be written to stdout. The returned closer releases the optional log file.
func setupLogging(cfg config.LogConfig) (*slog.Logger, func() error, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		console = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		console = slog.NewTextHandler(os.Stderr, opts)
	}

	closer := func() error { return nil }
	handler := console
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handler = slogmulti.Fanout(console, slog.NewJSONHandler(f, opts))
		closer = f.Close
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closer, nil
}
