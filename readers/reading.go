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

package readers

import (
	"github.com/aaronlmathis/stationagg/core"
)

// maxIntDigits is the number of integer digits a reading may carry (-999.9 .. 999.9).
const maxIntDigits = 3

// ParseReading converts a fixed-point reading such as "-12.3" into tenths of a
// degree (-123). The accepted grammar is -?[0-9]{1,3}\.[0-9].
//
// The input is scanned from the least-significant byte: tenths digit, decimal point,
// then up to three integer digits and an optional leading minus sign. Anything else is
// rejected with a *core.ParseError of kind core.KindMalformedReading.
func ParseReading(b []byte) (int16, error) {
	n := len(b)
	if n < 3 || !isDigit(b[n-1]) || b[n-2] != '.' {
		return 0, malformed(b)
	}

	v := int16(b[n-1] - '0')
	mult := int16(10)
	i := n - 3
	digits := 0
	for ; i >= 0 && isDigit(b[i]); i-- {
		if digits == maxIntDigits {
			return 0, malformed(b)
		}
		v += int16(b[i]-'0') * mult
		mult *= 10
		digits++
	}
	if digits == 0 {
		return 0, malformed(b)
	}

	switch {
	case i < 0:
		return v, nil
	case i == 0 && b[0] == '-':
		return -v, nil
	default:
		return 0, malformed(b)
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func malformed(b []byte) error {
	return &core.ParseError{Kind: core.KindMalformedReading, Input: b}
}
