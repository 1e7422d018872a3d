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
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresWriterOptions_Defaults(t *testing.T) {
	opts := (&PostgresWriterOptions{}).withDefaults()
	assert.Equal(t, "station_stats", opts.TableName)
	assert.Equal(t, 30*time.Second, opts.QueryTimeout)
	assert.Equal(t, 2, opts.MaxOpenConns)
	assert.Equal(t, 1, opts.MaxIdleConns)
}

func TestPostgresWriterOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    PostgresWriterOptions
		wantErr bool
	}{
		{"missing dsn", PostgresWriterOptions{TableName: "station_stats"}, true},
		{"valid", PostgresWriterOptions{DSN: "postgres://localhost/db", TableName: "station_stats"}, false},
		{"leading underscore", PostgresWriterOptions{DSN: "x", TableName: "_stats2"}, false},
		{"leading digit", PostgresWriterOptions{DSN: "x", TableName: "1stats"}, true},
		{"injection", PostgresWriterOptions{DSN: "x", TableName: "stats; DROP TABLE users"}, true},
		{"schema qualified", PostgresWriterOptions{DSN: "x", TableName: "public.stats"}, true},
		{"empty", PostgresWriterOptions{DSN: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOptions(&tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewPostgresPublisher_Validation(t *testing.T) {
	_, err := NewPostgresPublisher()
	require.Error(t, err)
	var pgErr *PostgresWriterError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "validate", pgErr.Op)

	_, err = NewPostgresPublisher(WithPostgresDSN("postgres://localhost/db"), WithTableName("bad-name"))
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "validate", pgErr.Op)
}

// TestNewPostgresPublisher_ExternalDB verifies a supplied pool is used as-is and not closed
func TestNewPostgresPublisher_ExternalDB(t *testing.T) {
	db, err := sql.Open("postgres", "postgres://localhost/unused?sslmode=disable")
	require.NoError(t, err)
	defer db.Close()

	p, err := NewPostgresPublisher(WithPostgresDB(db), WithTableName("daily_stats"), WithPostgresQueryTimeout(time.Second))
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.Equal(t, PostgresWriterStats{}, p.Stats())
}

func TestPostgresSQL(t *testing.T) {
	create := createTableSQL("station_stats")
	assert.True(t, strings.HasPrefix(create, "CREATE TABLE IF NOT EXISTS station_stats ("))
	for _, col := range []string{"station TEXT PRIMARY KEY", "min_tenths", "mean_tenths", "max_tenths", "sum_tenths", "reading_count"} {
		assert.Contains(t, create, col)
	}

	assert.Equal(t, "TRUNCATE TABLE station_stats", truncateTableSQL("station_stats"))

	upsert := upsertSQL("station_stats")
	assert.Contains(t, upsert, "INSERT INTO station_stats")
	assert.Contains(t, upsert, "VALUES ($1, $2, $3, $4, $5, $6)")
	assert.Contains(t, upsert, "ON CONFLICT (station) DO UPDATE")
}
