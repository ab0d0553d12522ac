package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration converts a setting value into a time.Duration. Strings may
// be a Go duration ("30s", "1m30s") or a number of seconds; numeric values
// are seconds.
func ParseDuration(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case string:
		return parseDurationString(v)
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case time.Duration:
		return v, nil
	default:
		return 0, fmt.Errorf("unsupported duration type %T", raw)
	}
}

func parseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
