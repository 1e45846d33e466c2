package reconcile

import (
	"strconv"
	"strings"

	"classboard/internal/campus"
)

// matcher reports whether a record belongs to a slot under one identity
// strategy.
type matcher func(campus.Period, campus.Record) bool

// Strategies ordered by key quality: numeric subject id, then subject code,
// then subject name. The services that produce records disagree on which
// keys they attach, hence the fallbacks.
var matchers = []matcher{matchBySubjectID, matchBySubjectCode, matchBySubjectName}

// findRecord picks the authoritative record for a slot. Strategies run in
// order across all records and the first hit wins, so an id match always
// beats a code or name match, and duplicates resolve to the earliest record
// under the strongest strategy.
func findRecord(p campus.Period, records []campus.Record) *campus.Record {
	for _, match := range matchers {
		for i := range records {
			if match(p, records[i]) {
				return &records[i]
			}
		}
	}
	return nil
}

func matchBySubjectID(p campus.Period, r campus.Record) bool {
	if r.SubjectID == nil {
		return false
	}
	want, err := strconv.Atoi(strings.TrimSpace(p.SubjectID))
	if err != nil {
		return false
	}
	got, err := strconv.Atoi(strings.TrimSpace(*r.SubjectID))
	if err != nil {
		// Non-numeric record id; leave this record to the other strategies.
		return false
	}
	return want == got
}

func matchBySubjectCode(p campus.Period, r campus.Record) bool {
	return r.SubjectCode != nil && p.SubjectCode != "" && *r.SubjectCode == p.SubjectCode
}

func matchBySubjectName(p campus.Period, r campus.Record) bool {
	return r.SubjectName != nil && p.SubjectName != "" && strings.EqualFold(*r.SubjectName, p.SubjectName)
}
