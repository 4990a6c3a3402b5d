/*
Package calendar derives a semester's week sequence and its per-day calendar.

PURPOSE:
  The calendar is the single source of truth for which dates are working
  days and which parity (Odd/Even) each date carries. Teaching-hour records
  never re-derive parity; they only look it up here.

PIPELINE:
  GenerateWeeks  semester range -> []SemesterWeek        (weeks.go)
  Build          period + weeks -> []CalendarDay         (builder.go)
  Verify         days + semester -> Report{Conflicts}    (verifier.go)
  Service        stores + logging around the three above (service.go)

WEEK STRIDE:
  Week starts are produced by an RFC 5545 WEEKLY rule with DTSTART at the
  semester start and UNTIL at the semester end, so a week is emitted for
  every stride that starts on or before the end date. Parity alternates
  from StartsOdd and numbers are S01, S02, ...

EXAMPLE:
  weeks, err := calendar.GenerateWeeks(calendar.WeekInput{
      Start:     academic.MustParseDate("2024-10-01"),
      End:       academic.MustParseDate("2025-01-19"),
      StartsOdd: true,
  })
  // weeks[0] = {S01, 2024-10-01, Odd}, weeks[1] = {S02, 2024-10-08, Even}, ...

SEE ALSO:
  - academic/types.go: SemesterWeek, SpecialWeek, CalendarDay
  - declaration/matcher.go: Consumes the built calendar
*/
package calendar

import (
	"fmt"

	"github.com/teambition/rrule-go"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

// DefaultExtendedWeeks is the number of weeks appended to an extended
// semester when the caller does not say otherwise.
const DefaultExtendedWeeks = 2

// WeekInput is what GenerateWeeks needs.
type WeekInput struct {
	Start     academic.Date
	End       academic.Date
	StartsOdd bool

	// Extended programs (e.g. clinical rotations) run ExtendedWeeks past End.
	Extended      bool
	ExtendedWeeks int
}

// GenerateWeeks returns the ordered week sequence of a semester.
// It is pure: the same input always yields the same weeks.
func GenerateWeeks(in WeekInput) ([]academic.SemesterWeek, error) {
	if in.Start.IsZero() || in.End.IsZero() || !in.End.After(in.Start) {
		return nil, &academic.InvalidRangeError{Start: in.Start, End: in.End}
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.WEEKLY,
		Interval: 1,
		Dtstart:  in.Start.Time,
		Until:    in.End.Time,
	})
	if err != nil {
		return nil, fmt.Errorf("week rule: %w", err)
	}
	starts := rule.All()

	if in.Extended {
		extra := in.ExtendedWeeks
		if extra <= 0 {
			extra = DefaultExtendedWeeks
		}
		next := starts[len(starts)-1].AddDate(0, 0, academic.DaysPerWeek)
		ext, err := rrule.NewRRule(rrule.ROption{
			Freq:     rrule.WEEKLY,
			Interval: 1,
			Dtstart:  next,
			Count:    extra,
		})
		if err != nil {
			return nil, fmt.Errorf("extended week rule: %w", err)
		}
		starts = append(starts, ext.All()...)
	}

	weeks := make([]academic.SemesterWeek, len(starts))
	parity := academic.ParityFor(in.StartsOdd)
	for i, start := range starts {
		weeks[i] = academic.SemesterWeek{
			Number:    WeekNumber(i + 1),
			StartDate: academic.DateOf(start),
			WeekType:  parity,
		}
		parity = parity.Flip()
	}
	return weeks, nil
}

// RegenerateWeeks guards GenerateWeeks against silently replacing weeks
// that were already generated for the semester.
func RegenerateWeeks(existing []academic.SemesterWeek, in WeekInput, overwrite bool) ([]academic.SemesterWeek, error) {
	if len(existing) > 0 && !overwrite {
		return nil, &academic.AlreadyExistsError{
			What:  "semester weeks",
			Key:   in.Start.String() + ".." + in.End.String(),
			Count: len(existing),
		}
	}
	return GenerateWeeks(in)
}

// WeekNumber formats the 1-based week index as S01, S02, ..., S100.
func WeekNumber(n int) string {
	return fmt.Sprintf("S%02d", n)
}
