// Package reconcile merges three sources that disagree with each other — the
// daily timetable, the student's stored attendance records, and the current
// time — into one authoritative display status per class slot.
package reconcile

import (
	"strings"
	"time"

	"classboard/internal/campus"
	"classboard/internal/clock"
)

// Status is the display status of one scheduled subject.
type Status string

const (
	StatusStartsSoon Status = "starts_soon"
	StatusPending    Status = "pending"
	StatusPresent    Status = "present"
	StatusAbsent     Status = "absent"
)

// SubjectStatus is the reconciled view of one scheduled subject. Views are
// rebuilt from scratch on every pass and never mutated in place.
type SubjectStatus struct {
	SubjectID        string `json:"subject_id"`
	SubjectName      string `json:"subject_name"`
	SubjectCode      string `json:"subject_code"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	Status           Status `json:"status"`
	AttendanceMarked bool   `json:"attendance_marked"`
	IsCurrentPeriod  bool   `json:"is_current_period"`
	IsBeforeStart    bool   `json:"is_before_start"`
	IsAfterEnd       bool   `json:"is_after_end"`
}

// Reconcile computes the per-subject status list for one instant. A matched
// record is authoritative regardless of the time of day; without one the
// status follows the clock. Output order follows the schedule order.
// Reconcile never fails: malformed slot times degrade to StartsSoon, and a
// nil record set is valid input.
func Reconcile(periods []campus.Period, records []campus.Record, now time.Time) []SubjectStatus {
	views := make([]SubjectStatus, 0, len(periods))
	minute := clock.MinuteOf(now)

	for _, p := range periods {
		view := SubjectStatus{
			SubjectID:   p.SubjectID,
			SubjectName: p.SubjectName,
			SubjectCode: p.SubjectCode,
			StartTime:   p.StartTime,
			EndTime:     p.EndTime,
		}

		start, startErr := clock.ParseHHMM(p.StartTime)
		end, endErr := clock.ParseHHMM(p.EndTime)
		if startErr != nil || endErr != nil {
			// Fail closed: an unparseable slot counts as not started yet.
			view.IsBeforeStart = true
			view.Status = StatusStartsSoon
			views = append(views, view)
			continue
		}

		view.IsBeforeStart = minute < start
		view.IsCurrentPeriod = minute >= start && minute <= end
		view.IsAfterEnd = minute > end

		if rec := findRecord(p, records); rec != nil {
			view.AttendanceMarked = true
			if isAbsent(rec.Status) {
				view.Status = StatusAbsent
			} else {
				// present, late, and any unknown value all count as present.
				view.Status = StatusPresent
			}
		} else {
			switch {
			case view.IsAfterEnd:
				view.Status = StatusAbsent
			case view.IsCurrentPeriod:
				view.Status = StatusPending
			default:
				view.Status = StatusStartsSoon
			}
		}

		views = append(views, view)
	}
	return views
}

func isAbsent(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), "absent")
}
