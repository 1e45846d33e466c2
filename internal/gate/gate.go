// Package gate decides whether attendance marking is currently permitted.
// The policy is a fixed bell table of named periods; marking is allowed only
// while some period is in session.
package gate

import (
	"fmt"
	"strings"
	"time"

	"classboard/internal/clock"
)

// Period is one named interval of the institution's daily bell table. Start
// and End are minutes since midnight; containment is [Start, End). The table
// is configuration: periods are assumed non-overlapping and same-day, and
// are not validated here.
type Period struct {
	Name  string
	Start int
	End   int
}

// Window is the gate's verdict for one instant. UntilNext is nil when no
// period remains today.
type Window struct {
	Current   *Period
	Allowed   bool
	Reason    string
	UntilNext *time.Duration
}

// Evaluate locates the period containing now, if any. Outside all periods it
// reports the shortest wait until the next start. Pure function of its
// arguments; it performs no I/O.
func Evaluate(now time.Time, table []Period) Window {
	minute := clock.MinuteOf(now)

	for i := range table {
		if minute >= table[i].Start && minute < table[i].End {
			return Window{Current: &table[i], Allowed: true, Reason: table[i].Name}
		}
	}

	w := Window{Allowed: false, Reason: "Outside class hours"}
	next := -1
	for _, p := range table {
		if p.Start >= minute && (next == -1 || p.Start < next) {
			next = p.Start
		}
	}
	if next >= 0 {
		d := time.Duration(next-minute) * time.Minute
		w.UntilNext = &d
	}
	return w
}

// ParseTable parses a "Name=HH:MM-HH:MM,Name=..." bell table spec.
func ParseTable(spec string) ([]Period, error) {
	var table []Period
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, span, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("malformed period entry %q", entry)
		}
		from, to, ok := strings.Cut(span, "-")
		if !ok {
			return nil, fmt.Errorf("malformed period span %q", span)
		}
		start, err := clock.ParseHHMM(from)
		if err != nil {
			return nil, fmt.Errorf("period %q: %w", name, err)
		}
		end, err := clock.ParseHHMM(to)
		if err != nil {
			return nil, fmt.Errorf("period %q: %w", name, err)
		}
		if end <= start {
			return nil, fmt.Errorf("period %q ends before it starts", name)
		}
		table = append(table, Period{Name: strings.TrimSpace(name), Start: start, End: end})
	}
	return table, nil
}
