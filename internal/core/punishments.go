package core

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxMuteDuration caps admin-issued mutes
const MaxMuteDuration = 366 * 24 * time.Hour

var muteDurationPattern = regexp.MustCompile(`^(\d+)(m|h|d)?$`)

// ParseMuteDuration parses durations such as "10m", "1h", "1d" or a bare number of minutes.
// Results are capped at MaxMuteDuration.
func ParseMuteDuration(input string) (time.Duration, bool) {
	m := muteDurationPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(input)))
	if m == nil {
		return 0, false
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return MaxMuteDuration, true
	}
	if err != nil || n < 1 {
		return 0, false
	}

	unit := time.Minute
	switch m[2] {
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}

	if n > int64(MaxMuteDuration/unit) {
		return MaxMuteDuration, true
	}
	return time.Duration(n) * unit, true
}
