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

package generate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"github.com/aaronlmathis/stationagg/core"
)

// Package generate writes synthetic measurement files in the NAME;READING format.
//
// Readings are drawn from a normal distribution around each station's long-term mean
// with a standard deviation of 10 degrees, clamped to [-99.9, 99.9].

// Station is a named weather station with its mean temperature in degrees.
type Station struct {
	Name string
	Mean float64
}

// Stations is the built-in station list.
var Stations = []Station{
	{"Abha", 18.0}, {"Abidjan", 26.0}, {"Accra", 26.4}, {"Addis Ababa", 16.0},
	{"Adelaide", 17.3}, {"Alexandria", 20.0}, {"Anchorage", 2.8}, {"Antananarivo", 17.9},
	{"Athens", 19.2}, {"Auckland", 15.2}, {"Baghdad", 22.77}, {"Bangkok", 28.6},
	{"Barcelona", 18.2}, {"Bergen", 7.7}, {"Bogotá", 13.0}, {"Bratislava", 10.5},
	{"Cairo", 21.4}, {"Cape Town", 16.2}, {"Chicago", 9.8}, {"Copenhagen", 9.1},
	{"Dakar", 24.0}, {"Dublin", 9.8}, {"Edinburgh", 9.3}, {"Fairbanks", -2.3},
	{"Hamburg", 9.7}, {"Helsinki", 5.9}, {"Hong Kong", 23.3}, {"İzmir", 17.9},
	{"Jakarta", 26.7}, {"Kathmandu", 18.3}, {"Lagos", 26.8}, {"Lima", 19.2},
	{"Lisbon", 17.5}, {"London", 11.3}, {"Madrid", 15.0}, {"Montréal", 6.8},
	{"Moscow", 5.8}, {"Nairobi", 17.8}, {"Oslo", 5.7}, {"Ouagadougou", 28.3},
	{"Reykjavík", 4.3}, {"Riga", 6.2}, {"São Paulo", 19.0}, {"Seoul", 12.5},
	{"Singapore", 27.0}, {"Tokyo", 15.4}, {"Toronto", 9.4}, {"Vienna", 10.4},
	{"Yakutsk", -8.8}, {"Zürich", 9.3},
}

// Options configures a generated file.
type Options struct {
	Rows      int64
	Stations  int // how many stations to draw from; 0 uses the whole built-in list
	Seed      uint64
	Delimiter byte
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Rows < 0 {
		return fmt.Errorf("rows must not be negative, got %d", o.Rows)
	}
	if o.Stations < 0 {
		return fmt.Errorf("stations must not be negative, got %d", o.Stations)
	}
	if o.Delimiter == core.LineTerminator {
		return errors.New("delimiter must not be the line terminator")
	}
	return nil
}

// Write emits opts.Rows records to w. The same options always produce the same bytes.
func Write(ctx context.Context, w io.Writer, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = core.DefaultDelimiter
	}

	stations := pick(opts.Stations)
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	bw := bufio.NewWriterSize(w, 1<<20)

	line := make([]byte, 0, 128)
	for i := int64(0); i < opts.Rows; i++ {
		if i&0xffff == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		s := stations[rng.IntN(len(stations))]
		line = append(line[:0], s.Name...)
		line = append(line, opts.Delimiter)
		line = core.AppendTenths(line, reading(rng, s.Mean))
		line = append(line, core.LineTerminator)
		if _, err := bw.Write(line); err != nil {
			return &core.IOError{Op: "write", Err: err}
		}
	}
	if err := bw.Flush(); err != nil {
		return &core.IOError{Op: "write", Err: err}
	}
	return nil
}

// pick returns n stations. Past the built-in list, names repeat with a numeric
// suffix so every station name stays distinct.
func pick(n int) []Station {
	if n <= 0 || n == len(Stations) {
		return Stations
	}
	if n < len(Stations) {
		return Stations[:n]
	}
	out := make([]Station, 0, n)
	out = append(out, Stations...)
	for i := len(Stations); i < n; i++ {
		base := Stations[i%len(Stations)]
		out = append(out, Station{
			Name: fmt.Sprintf("%s %d", base.Name, i/len(Stations)),
			Mean: base.Mean,
		})
	}
	return out
}

func reading(rng *rand.Rand, mean float64) int64 {
	v := math.Round((mean + rng.NormFloat64()*10) * 10)
	return int64(max(-999, min(999, v)))
}
