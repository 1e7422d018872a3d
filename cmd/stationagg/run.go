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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/stationagg"
	"github.com/aaronlmathis/stationagg/config"
	"github.com/aaronlmathis/stationagg/core"
	"github.com/aaronlmathis/stationagg/types"
	"github.com/aaronlmathis/stationagg/writers"
)

var runCmd = &cobra.Command{
	Use:   "run [SOURCE]",
	Short: "Aggregate a measurements file and write the report",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			cfg.Source = args[0]
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, closeLog, err := setupLogging(cfg.Log)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runAggregation(ctx, cfg, logger); err != nil {
			kind := "unknown"
			if k, ok := core.KindOf(err); ok {
				kind = k.String()
			} else if errors.Is(err, context.Canceled) {
				kind = "canceled"
			}
			logger.Error("Aggregation failed",
				slog.String("source", cfg.Source),
				slog.String("kind", kind),
				slog.Any("error", err))
			return err
		}
		return nil
	},
}

func init() {
	flags := runCmd.Flags()
	flags.String("source", "", "measurements file to aggregate: a local path or s3://bucket/key")
	flags.StringP("destination", "o", "", "report destination: a local path or s3://bucket/key")
	flags.Int64("block-size", stationagg.DefaultBlockSize, "nominal block size in bytes")
	flags.Int("workers", 0, "concurrent block workers (0 uses GOMAXPROCS)")
	flags.String("delimiter", string(core.DefaultDelimiter), "field delimiter")
	flags.Bool("stdout", false, "also print the report to stdout")
	flags.String("postgres-dsn", "", "publish the merged table to this PostgreSQL database")
	flags.String("postgres-table", "station_stats", "table the merged table is published to")
	flags.Bool("postgres-create-table", false, "create the publish table if it does not exist")
	flags.Bool("postgres-truncate", false, "truncate the publish table before publishing")
	flags.String("s3-region", "", "AWS region for s3:// sources and destinations")
	flags.String("s3-endpoint", "", "custom endpoint for S3-compatible services")
	flags.Bool("s3-path-style", false, "use path-style S3 addressing")

	for key, flag := range map[string]string{
		"source":                "source",
		"destination":           "destination",
		"block_size":            "block-size",
		"workers":               "workers",
		"delimiter":             "delimiter",
		"stdout":                "stdout",
		"postgres.dsn":          "postgres-dsn",
		"postgres.table":        "postgres-table",
		"postgres.create_table": "postgres-create-table",
		"postgres.truncate":     "postgres-truncate",
		"s3.region":             "s3-region",
		"s3.endpoint":           "s3-endpoint",
		"s3.path_style":         "s3-path-style",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}

func runAggregation(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	delim, err := cfg.DelimiterByte()
	if err != nil {
		return err
	}

	s3opts := types.S3Options{
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		PathStyle:       cfg.S3.PathStyle,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	}
	src, err := types.ParseSource(ctx, cfg.Source, s3opts, delim)
	if err != nil {
		return err
	}

	builder := stationagg.NewPipeline().
		FromSource(src).
		WithBlockSize(cfg.BlockSize).
		WithWorkers(cfg.Workers).
		WithLogger(logger)

	if cfg.Destination != "" {
		loc, err := types.ParseLocation(cfg.Destination, s3opts)
		if err != nil {
			return err
		}
		sink, err := loc.NewSink(ctx)
		if err != nil {
			return fmt.Errorf("open destination %s: %w", loc, err)
		}
		builder.To(sink)
	}
	if cfg.Stdout {
		builder.To(writers.NewReportWriter(os.Stdout))
	}

	if cfg.Postgres.DSN != "" {
		pub, err := writers.NewPostgresPublisher(
			writers.WithPostgresDSN(cfg.Postgres.DSN),
			writers.WithTableName(cfg.Postgres.Table),
			writers.WithCreateTable(cfg.Postgres.CreateTable),
			writers.WithTruncateTable(cfg.Postgres.Truncate),
		)
		if err != nil {
			return err
		}
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Warn("Failed to close publisher", slog.Any("error", err))
			}
		}()
		builder.Publish(pub)
	}

	pipeline, err := builder.Build()
	if err != nil {
		return err
	}
	res, err := pipeline.Execute(ctx)
	if err != nil {
		return err
	}
	logger.Info("Report written",
		slog.String("destination", cfg.Destination),
		slog.Int("stations", res.Stations),
		slog.Uint64("records", res.Records),
		slog.Int64("bytes", res.Bytes))
	return nil
}
