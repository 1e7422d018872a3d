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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/aaronlmathis/stationagg/aggregate"
)

// This file implements publishing of the merged station table to PostgreSQL.
// Each run upserts one row per station inside a single transaction, so readers of the
// table see either the previous run or the complete new one.

// PostgresWriterError wraps PostgreSQL-specific errors with context about the operation.
type PostgresWriterError struct {
	Op  string // The operation being performed (e.g., "publish", "connect")
	Err error  // The underlying error
}

// Error returns the error string for PostgresWriterError.
func (e *PostgresWriterError) Error() string {
	return fmt.Sprintf("postgres writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for PostgresWriterError.
func (e *PostgresWriterError) Unwrap() error {
	return e.Err
}

// PostgresWriterStats holds PostgreSQL publish statistics.
type PostgresWriterStats struct {
	RowsWritten    int64         // Total station rows upserted
	Publishes      int64         // Number of committed publishes
	LastWriteTime  time.Time     // Time of last commit
	WriteDuration  time.Duration // Total time spent publishing
	ConnectionTime time.Duration // Time spent establishing connection
}

// PostgresWriterOptions configures the PostgreSQL publisher.
type PostgresWriterOptions struct {
	DSN             string        // PostgreSQL connection string
	DB              *sql.DB       // Existing connection pool; DSN is ignored when set
	TableName       string        // Target table name
	CreateTable     bool          // Create table if not exists
	TruncateTable   bool          // Remove stations absent from this run
	ConnMaxLifetime time.Duration // Max connection lifetime
	ConnMaxIdleTime time.Duration // Max idle connection time
	MaxOpenConns    int           // Max open connections
	MaxIdleConns    int           // Max idle connections
	QueryTimeout    time.Duration // Timeout for a whole publish
}

// PostgresWriterOption represents a configuration function for PostgresWriterOptions.
type PostgresWriterOption func(*PostgresWriterOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresDB uses an existing connection pool. The publisher does not close it.
func WithPostgresDB(db *sql.DB) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.DB = db
	}
}

// WithTableName sets the target table name.
func WithTableName(tableName string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TableName = tableName
	}
}

// WithCreateTable enables or disables table creation.
func WithCreateTable(create bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.CreateTable = create
	}
}

// WithTruncateTable enables or disables table truncation before writing.
func WithTruncateTable(truncate bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TruncateTable = truncate
	}
}

// WithPostgresConnectionPool configures the connection pool.
func WithPostgresConnectionPool(maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.MaxOpenConns = maxOpen
		opts.MaxIdleConns = maxIdle
		opts.ConnMaxLifetime = maxLifetime
		opts.ConnMaxIdleTime = maxIdleTime
	}
}

// WithPostgresQueryTimeout sets the publish timeout.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.QueryTimeout = timeout
	}
}

// PostgresPublisher upserts station aggregates into a PostgreSQL table.
type PostgresPublisher struct {
	db      *sql.DB
	ownsDB  bool
	options PostgresWriterOptions
	stats   PostgresWriterStats
	mu      sync.Mutex
}

// NewPostgresPublisher creates a publisher and verifies the connection.
func NewPostgresPublisher(opts ...PostgresWriterOption) (*PostgresPublisher, error) {
	options := &PostgresWriterOptions{}
	for _, opt := range opts {
		opt(options)
	}
	options = options.withDefaults()

	if err := validateOptions(options); err != nil {
		return nil, &PostgresWriterError{Op: "validate", Err: err}
	}

	p := &PostgresPublisher{options: *options}
	if options.DB != nil {
		p.db = options.DB
		return p, nil
	}
	if err := p.connect(); err != nil {
		return nil, &PostgresWriterError{Op: "connect", Err: err}
	}
	return p, nil
}

// Publish upserts every station of table in one transaction.
func (p *PostgresPublisher) Publish(ctx context.Context, table aggregate.Table) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.options.QueryTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return &PostgresWriterError{Op: "begin", Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if p.options.CreateTable {
		if _, err = tx.ExecContext(ctx, createTableSQL(p.options.TableName)); err != nil {
			return &PostgresWriterError{Op: "create_table", Err: err}
		}
	}
	if p.options.TruncateTable {
		if _, err = tx.ExecContext(ctx, truncateTableSQL(p.options.TableName)); err != nil {
			return &PostgresWriterError{Op: "truncate_table", Err: err}
		}
	}

	stmt, err := tx.PrepareContext(ctx, upsertSQL(p.options.TableName))
	if err != nil {
		return &PostgresWriterError{Op: "prepare", Err: err}
	}
	defer stmt.Close()

	var rows int64
	for _, name := range table.SortedNames() {
		s := table[name]
		if s.Count == 0 {
			continue
		}
		if _, err = stmt.ExecContext(ctx,
			name,
			s.Min,
			MeanTenths(s.Sum, s.Count),
			s.Max,
			s.Sum,
			int64(s.Count),
		); err != nil {
			return &PostgresWriterError{Op: "upsert", Err: fmt.Errorf("station %q: %w", name, err)}
		}
		rows++
	}

	if err = tx.Commit(); err != nil {
		return &PostgresWriterError{Op: "commit", Err: err}
	}

	p.stats.RowsWritten += rows
	p.stats.Publishes++
	p.stats.LastWriteTime = time.Now()
	p.stats.WriteDuration += time.Since(start)
	return nil
}

// Stats returns a copy of the current publish statistics.
func (p *PostgresPublisher) Stats() PostgresWriterStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Close releases the connection pool if the publisher opened it.
func (p *PostgresPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ownsDB && p.db != nil {
		return p.db.Close()
	}
	return nil
}

// withDefaults applies default values to PostgresWriterOptions.
func (opts *PostgresWriterOptions) withDefaults() *PostgresWriterOptions {
	if opts.TableName == "" {
		opts.TableName = "station_stats"
	}
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = 30 * time.Second
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	if opts.ConnMaxIdleTime == 0 {
		opts.ConnMaxIdleTime = 1 * time.Minute
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 2
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 1
	}
	return opts
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateOptions validates the PostgreSQL publisher options.
func validateOptions(opts *PostgresWriterOptions) error {
	if opts.DSN == "" && opts.DB == nil {
		return errors.New("dsn is required")
	}
	if !identifierPattern.MatchString(opts.TableName) {
		return fmt.Errorf("invalid table name %q", opts.TableName)
	}
	return nil
}

// connect establishes the database connection and configures the connection pool.
func (p *PostgresPublisher) connect() error {
	start := time.Now()

	db, err := sql.Open("postgres", p.options.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(p.options.MaxOpenConns)
	db.SetMaxIdleConns(p.options.MaxIdleConns)
	db.SetConnMaxLifetime(p.options.ConnMaxLifetime)
	db.SetConnMaxIdleTime(p.options.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), p.options.QueryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	p.db = db
	p.ownsDB = true
	p.stats.ConnectionTime = time.Since(start)
	return nil
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	station TEXT PRIMARY KEY,
	min_tenths SMALLINT NOT NULL,
	mean_tenths BIGINT NOT NULL,
	max_tenths SMALLINT NOT NULL,
	sum_tenths BIGINT NOT NULL,
	reading_count BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, table)
}

func truncateTableSQL(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", table)
}

func upsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (station, min_tenths, mean_tenths, max_tenths, sum_tenths, reading_count)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (station) DO UPDATE SET
	min_tenths = EXCLUDED.min_tenths,
	mean_tenths = EXCLUDED.mean_tenths,
	max_tenths = EXCLUDED.max_tenths,
	sum_tenths = EXCLUDED.sum_tenths,
	reading_count = EXCLUDED.reading_count,
	updated_at = now()`, table)
}
