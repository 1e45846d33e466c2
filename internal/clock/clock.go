// Package clock is the injected time source for the schedule and gate logic.
// Nothing in the reconciliation path calls time.Now directly; callers pass a
// NowFunc so tests can pin the clock.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NowFunc supplies the current time.
type NowFunc func() time.Time

// System returns the wall clock.
func System() NowFunc { return time.Now }

// MinuteOf reduces an instant to minutes since local midnight, the
// granularity the whole daily schedule runs at.
func MinuteOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseHHMM converts an "HH:MM" string to minutes since midnight.
func ParseHHMM(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("malformed clock value %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("malformed clock value %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("malformed clock value %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return h*60 + m, nil
}
