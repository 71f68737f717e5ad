package entitlement

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// durationPattern matches the full token: a decimal magnitude followed by
// one recognized unit suffix. No whitespace, sign, or fraction support.
var durationPattern = regexp.MustCompile(`^(\d+)(s|m|h|d|mo|yr)$`)

// Fixed unit conversions. Months and years are calendar-free constants,
// 30 and 365 days respectively.
var unitSeconds = map[string]int64{
	"s":  1,
	"m":  60,
	"h":  3600,
	"d":  86400,
	"mo": 30 * 86400,
	"yr": 365 * 86400,
}

// maxSeconds is the largest span representable as a time.Duration without
// overflowing its int64 nanosecond storage, roughly 292 years.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// ParseDuration converts a human-authored duration token such as "30d",
// "1mo" or "1yr" into a concrete span. It returns ErrInvalidDuration when
// the token does not match <digits><unit> exactly, when the magnitude is
// non-positive, when the unit is unrecognized, or when the resulting span
// exceeds the representable range.
func ParseDuration(token string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(token)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, token)
	}

	magnitude, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		// Digits that overflow int64 are as malformed as letters.
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, token)
	}
	if magnitude <= 0 {
		return 0, fmt.Errorf("%w: magnitude must be positive in %q", ErrInvalidDuration, token)
	}

	unit := unitSeconds[m[2]]
	if magnitude > maxSeconds/unit {
		return 0, fmt.Errorf("%w: %q exceeds the maximum representable span", ErrInvalidDuration, token)
	}

	return time.Duration(magnitude*unit) * time.Second, nil
}
