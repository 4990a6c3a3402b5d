/*
Package declaration expands recurring teaching-hour records over a calendar
and aggregates the occurrences into payroll declaration items.

PURPOSE:
  A teaching-hour record says "every (odd|even) Tuesday, 2h of course". The
  calendar says which Tuesdays are working days and which parity each one
  carries. This package joins the two.

PIPELINE:
  Match      record + calendar index + period -> []Occurrence   (matcher.go)
  Aggregate  records -> grouped, sorted items + summary         (aggregator.go)
  Service    verifier gate, period bound, finalize              (service.go)

PARITY:
  The matcher never computes parity from dates. A record's parity is only
  compared with the parity the calendar stored for that day, so manual
  calendar edits are honoured.

SEE ALSO:
  - calendar/builder.go: Produces the days matched here
  - coefficients.go: Pay coefficient table
*/
package declaration

import (
	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

// =============================================================================
// PATTERN MATCHER
// =============================================================================

// Occurrence is one date on which a record fires.
type Occurrence struct {
	Date   academic.Date
	Record academic.TeachingHourRecord
}

// Matches reports whether the record's weekly pattern fires on the day.
// All of the following must hold:
//   - the day is a working day and not a holiday
//   - the weekday equals the record's
//   - the record has no parity, or the same parity as the day
//   - a special record only fires in its special week
func Matches(r academic.TeachingHourRecord, day academic.CalendarDay) bool {
	if !day.IsWorkingDay || day.IsHoliday {
		return false
	}
	if day.Date.Weekday() != r.DayOfWeek {
		return false
	}
	if r.OddEven != academic.WeekNone && r.OddEven != day.OddEven {
		return false
	}
	if r.IsSpecial && day.SemesterWeek != r.SpecialWeek {
		return false
	}
	return true
}

// Match scans the period date by date and returns every occurrence of the
// record, ascending. Dates missing from the calendar never match.
func Match(r academic.TeachingHourRecord, calendar map[academic.Date]academic.CalendarDay, period academic.Period) []Occurrence {
	var out []Occurrence
	for date := period.Start; date.BeforeOrEqual(period.End); date = date.AddDays(1) {
		day, ok := calendar[date]
		if !ok {
			continue
		}
		if Matches(r, day) {
			out = append(out, Occurrence{Date: date, Record: r})
		}
	}
	return out
}
