package calendar

import (
	"errors"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

// =============================================================================
// CALENDAR VERIFIER - Read-only gate run before declaration generation
// =============================================================================

// Report is the verifier's result. Conflicts are ordered by check, then by
// the position of the offending day in the calendar.
type Report struct {
	Valid     bool
	Conflicts []academic.Conflict
}

// Err joins every conflict, or returns nil for a valid calendar.
func (r Report) Err() error {
	if r.Valid {
		return nil
	}
	errs := make([]error, len(r.Conflicts))
	for i, c := range r.Conflicts {
		errs[i] = c
	}
	return errors.Join(errs...)
}

// Verify checks a built calendar against its semester's week definitions.
// Every conflict is collected; the days are never modified.
//
// Checks, in order:
//   - duplicate dates
//   - parity mismatch between a day and the week its label resolves to
//   - labels the semester does not define
//
// Days without a week label (extrapolated dates) are not checked against
// the week list.
func Verify(days []academic.CalendarDay, sem academic.Semester) Report {
	var conflicts []academic.Conflict

	counts := make(map[academic.Date]int, len(days))
	for _, d := range days {
		counts[d.Date]++
	}
	reported := make(map[academic.Date]bool)
	for _, d := range days {
		if n := counts[d.Date]; n > 1 && !reported[d.Date] {
			reported[d.Date] = true
			conflicts = append(conflicts, &academic.DuplicateDateConflict{Date: d.Date, Count: n})
		}
	}

	var unknown []academic.Conflict
	for _, d := range days {
		if d.SemesterWeek == "" {
			continue
		}
		expected, ok := sem.WeekType(d.SemesterWeek)
		if !ok {
			unknown = append(unknown, &academic.UnknownWeekConflict{Date: d.Date, Week: d.SemesterWeek})
			continue
		}
		// Vacation weeks carry no parity of their own.
		if expected == academic.WeekNone {
			continue
		}
		if d.OddEven != expected {
			conflicts = append(conflicts, &academic.ParityMismatchConflict{
				Date:     d.Date,
				Week:     d.SemesterWeek,
				Expected: expected,
				Actual:   d.OddEven,
			})
		}
	}
	conflicts = append(conflicts, unknown...)

	return Report{Valid: len(conflicts) == 0, Conflicts: conflicts}
}
