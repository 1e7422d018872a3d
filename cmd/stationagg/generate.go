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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/stationagg/config"
	"github.com/aaronlmathis/stationagg/core"
	"github.com/aaronlmathis/stationagg/generate"
	"github.com/aaronlmathis/stationagg/writers"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic measurements file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		output, _ := flags.GetString("output")
		rows, _ := flags.GetInt64("rows")
		stations, _ := flags.GetInt("stations")
		seed, _ := flags.GetUint64("seed")
		delim, _ := flags.GetString("delimiter")
		if output == "" {
			return errors.New("--output is required")
		}
		if len(delim) != 1 {
			return fmt.Errorf("delimiter must be a single byte, got %q", delim)
		}

		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		logger, closeLog, err := setupLogging(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = closeLog() }()

		// The file writer stages into a temp file, so an interrupted run leaves nothing behind.
		fw, err := writers.NewFileWriter(output)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		start := time.Now()
		err = generate.Write(ctx, core.SinkWriter(ctx, fw), generate.Options{
			Rows:      rows,
			Stations:  stations,
			Seed:      seed,
			Delimiter: delim[0],
		})
		if err != nil {
			_ = fw.Abort()
			logger.Error("Generate failed", slog.String("output", output), slog.Any("error", err))
			return err
		}
		if err := fw.Close(); err != nil {
			return err
		}
		logger.Info("Generated measurements",
			slog.String("output", output),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", time.Since(start)))
		return nil
	},
}

func init() {
	flags := generateCmd.Flags()
	flags.StringP("output", "o", "", "file to write")
	flags.Int64("rows", 1_000_000, "number of measurements")
	flags.Int("stations", 0, "number of distinct stations (0 uses the built-in list)")
	flags.Uint64("seed", 1, "random seed")
	flags.String("delimiter", string(core.DefaultDelimiter), "field delimiter")
}
