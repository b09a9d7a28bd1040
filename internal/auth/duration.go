// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package auth

import (
	"math"
	"strconv"
	"time"

	"github.com/samber/oops"
)

var durationUnits = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 60 * 60,
	'd': 24 * 60 * 60,
}

// ParseDuration converts a lifetime such as "15m" or "7d" into seconds.
// The format is one or more ASCII digits followed by exactly one of s, m, h, d.
// Whitespace and compound values ("1h30m") are not accepted.
func ParseDuration(spec string) (int64, error) {
	if spec == "" {
		return 0, oops.Code(CodeInvalidDurationUnit).
			With("duration", spec).
			Wrap(ErrInvalidDurationUnit)
	}

	unit := spec[len(spec)-1]
	multiplier, ok := durationUnits[unit]
	if !ok {
		return 0, oops.Code(CodeInvalidDurationUnit).
			With("duration", spec).
			With("unit", string(unit)).
			Wrapf(ErrInvalidDurationUnit, "invalid duration unit: %s", string(unit))
	}

	digits := spec[:len(spec)-1]
	if digits == "" {
		return 0, oops.Code(CodeInvalidDurationValue).With("duration", spec).Wrap(ErrInvalidDurationValue)
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, oops.Code(CodeInvalidDurationValue).With("duration", spec).Wrap(ErrInvalidDurationValue)
		}
	}

	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || value > math.MaxInt64/multiplier {
		return 0, oops.Code(CodeInvalidDurationValue).With("duration", spec).Wrap(ErrInvalidDurationValue)
	}

	return value * multiplier, nil
}

// ParseLifetime is ParseDuration returning a time.Duration.
func ParseLifetime(spec string) (time.Duration, error) {
	seconds, err := ParseDuration(spec)
	if err != nil {
		return 0, err
	}
	if seconds > int64(math.MaxInt64/time.Second) {
		return 0, oops.Code(CodeInvalidDurationValue).With("duration", spec).Wrap(ErrInvalidDurationValue)
	}
	return time.Duration(seconds) * time.Second, nil
}
