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

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// Config aggregates configuration for a run.
type Config struct {
	Source      string         `mapstructure:"source"`
	Destination string         `mapstructure:"destination"`
	BlockSize   int64          `mapstructure:"block_size"`
	Workers     int            `mapstructure:"workers"`
	Delimiter   string         `mapstructure:"delimiter"`
	Stdout      bool           `mapstructure:"stdout"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
	S3          S3Config       `mapstructure:"s3"`
	Log         LogConfig      `mapstructure:"log"`
}

// PostgresConfig enables publishing the merged table. An empty DSN disables it.
type PostgresConfig struct {
	DSN         string `mapstructure:"dsn"`
	Table       string `mapstructure:"table"`
	CreateTable bool   `mapstructure:"create_table"`
	Truncate    bool   `mapstructure:"truncate"`
}

// S3Config configures the client used for s3:// destinations.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		BlockSize: 10_000_000,
		Delimiter: ";",
		Postgres: PostgresConfig{
			Table: "station_stats",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the given viper instance, which may already have
// command-line flags bound to it, layered over a "stationagg" config file in the
// working directory and environment variables. Environment variables use the prefix
// "STATIONAGG" and the dot character in keys is replaced by an underscore. For example,
// "postgres.dsn" becomes "STATIONAGG_POSTGRES_DSN".
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	v.SetConfigName("stationagg")
	v.AddConfigPath(".")
	v.SetEnvPrefix("STATIONAGG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields a run depends on.
func (c *Config) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.Destination == "" && !c.Stdout {
		return errors.New("destination is required unless stdout is set")
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("block_size must be positive, got %d", c.BlockSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, err := c.DelimiterByte(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// DelimiterByte returns the delimiter as a single byte.
func (c *Config) DelimiterByte() (byte, error) {
	if len(c.Delimiter) != 1 {
		return 0, fmt.Errorf("delimiter must be a single byte, got %q", c.Delimiter)
	}
	if c.Delimiter[0] == '\n' {
		return 0, errors.New("delimiter must not be a newline")
	}
	return c.Delimiter[0], nil
}

// setDefaults registers the values of cfg as viper defaults so that Unmarshal keeps
// them when no file, flag or environment variable sets a key.
func setDefaults(v *viper.Viper, cfg any, parts ...string) {
	walk(cfg, parts, func(key string, val reflect.Value) {
		v.SetDefault(key, val.Interface())
	})
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	walk(cfg, parts, func(key string, _ reflect.Value) {
		_ = v.BindEnv(key)
	})
}

func walk(cfg any, parts []string, fn func(key string, val reflect.Value)) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string(nil), parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			walk(val.Field(i).Interface(), key, fn)
			continue
		}
		fn(strings.Join(key, "."), val.Field(i))
	}
}
