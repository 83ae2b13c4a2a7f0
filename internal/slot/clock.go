package slot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedTime   = errors.New("malformed time, expected HH:MM or HH:MM:SS")
	ErrMalformedDate   = errors.New("malformed date, expected YYYY-MM-DD")
	ErrInvalidDuration = errors.New("slot duration must be positive")
)

const dateLayout = "2006-01-02"

// Clock is a wall-clock time expressed as minutes since midnight.
// Values of 24:00 and beyond are legal results of ComputeEndTime.
type Clock int

// ParseClock parses "HH:MM" or "HH:MM:SS". Seconds are accepted so rule rows
// coming back from Postgres TIME columns can be fed in directly, but they are
// truncated.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}

	h, err := parseField(parts[0], 23)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	m, err := parseField(parts[1], 59)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	if len(parts) == 3 {
		if _, err := parseField(parts[2], 59); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
		}
	}

	return Clock(h*60 + m), nil
}

func parseField(s string, max int) (int, error) {
	if len(s) != 2 || !isDigit(s[0]) || !isDigit(s[1]) {
		return 0, errors.New("field must be two digits")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > max {
		return 0, errors.New("field out of range")
	}
	return n, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// String formats the clock as zero-padded HH:MM. No wraparound is applied, so
// 24*60+20 prints as "24:20".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add returns the clock shifted by the given number of minutes.
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD) as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	return d, nil
}

// FormatDate is the inverse of ParseDate.
func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}
