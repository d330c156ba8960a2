package segment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultDurationText is the allotment given to a segment whose configured
// duration cannot be parsed.
const DefaultDurationText = "01:00"

// DefaultDuration is DefaultDurationText in seconds.
const DefaultDuration = 60

var ErrInvalidDuration = errors.New("invalid mm:ss duration")

// ParseDuration parses a "mm:ss" allotment into seconds. Minutes may exceed
// two digits; seconds must be below 60.
func ParseDuration(text string) (int, error) {
	mins, secs, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok || mins == "" || secs == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, text)
	}

	m, err := parseDigits(mins)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, text)
	}
	s, err := parseDigits(secs)
	if err != nil || s >= 60 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, text)
	}
	return m*60 + s, nil
}

// ParseDurationOr returns the parsed duration, or fallback when text is malformed.
func ParseDurationOr(text string, fallback int) int {
	secs, err := ParseDuration(text)
	if err != nil {
		return fallback
	}
	return secs
}

func parseDigits(s string) (int, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", r)
		}
	}
	return strconv.Atoi(s)
}

// FormatClock renders the magnitude of seconds as mm:ss. Negative values are
// shown without a sign; callers flag overtime separately.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = -seconds
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
