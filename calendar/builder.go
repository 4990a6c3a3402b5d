package calendar

import (
	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

// =============================================================================
// CALENDAR DAY BUILDER
// =============================================================================

// BuildInput is everything Build needs. Nothing is read from a store.
type BuildInput struct {
	Period       academic.Period
	Weeks        []academic.SemesterWeek
	SpecialWeeks []academic.SpecialWeek
	Holidays     []academic.Holiday

	// Overrides are manual days (exam days, local closures). They replace
	// the generated day with the same date.
	Overrides []academic.CalendarDay
}

// Build produces exactly one CalendarDay per date of the period, ascending.
//
// Precedence, lowest to highest:
//  1. regular week containing the date (parity + week number)
//  2. parity extrapolated from the closest week start, no week number
//  3. special weeks (relabel, or vacation = non-working)
//  4. holidays
//  5. weekends
//  6. manual overrides
//
// The holiday/weekend invariant holds on every returned day, overrides
// included.
func Build(in BuildInput) ([]academic.CalendarDay, error) {
	if err := in.Period.Validate(0); err != nil {
		return nil, err
	}

	overrides := make(map[academic.Date]academic.CalendarDay, len(in.Overrides))
	for _, o := range in.Overrides {
		if in.Period.Contains(o.Date) {
			overrides[o.Date] = o
		}
	}

	days := make([]academic.CalendarDay, 0, in.Period.Len())
	for _, date := range in.Period.Days() {
		if o, ok := overrides[date]; ok {
			o.Manual = true
			o.Normalize()
			days = append(days, o)
			continue
		}
		days = append(days, buildDay(date, in))
	}
	return days, nil
}

func buildDay(date academic.Date, in BuildInput) academic.CalendarDay {
	day := academic.CalendarDay{
		Date:         date,
		DayOfWeek:    date.Weekday(),
		IsWorkingDay: true,
	}

	if w, ok := owningWeek(date, in.Weeks); ok {
		day.OddEven = w.WeekType
		day.SemesterWeek = w.Number
	} else {
		day.OddEven = extrapolateParity(date, in.Weeks)
	}

	for _, sw := range in.SpecialWeeks {
		if !sw.Period().Contains(date) {
			continue
		}
		day.SemesterWeek = sw.Name
		if sw.IsVacation() {
			day.IsWorkingDay = false
		} else {
			day.OddEven = sw.WeekType
		}
	}

	for _, h := range in.Holidays {
		if h.On(date) {
			day.IsHoliday = true
			day.HolidayName = h.Name
			break
		}
	}

	day.Normalize()
	return day
}

// owningWeek finds the week with start <= date < start+7.
func owningWeek(date academic.Date, weeks []academic.SemesterWeek) (academic.SemesterWeek, bool) {
	for _, w := range weeks {
		if w.Contains(date) {
			return w, true
		}
	}
	return academic.SemesterWeek{}, false
}

// extrapolateParity continues the alternation of the closest week start
// across dates no generated week covers. Ties go to the earlier week.
func extrapolateParity(date academic.Date, weeks []academic.SemesterWeek) academic.WeekType {
	if len(weeks) == 0 {
		return academic.WeekNone
	}

	closest := weeks[0]
	best := abs(academic.DaysBetween(closest.StartDate, date))
	for _, w := range weeks[1:] {
		if d := abs(academic.DaysBetween(w.StartDate, date)); d < best {
			closest, best = w, d
		}
	}

	strides := floorDiv(academic.DaysBetween(closest.StartDate, date), academic.DaysPerWeek)
	if strides%2 != 0 {
		return closest.WeekType.Flip()
	}
	return closest.WeekType
}

// Index keys days by date for O(1) lookup. A duplicated date keeps its
// last occurrence; run Verify first to detect duplicates.
func Index(days []academic.CalendarDay) map[academic.Date]academic.CalendarDay {
	idx := make(map[academic.Date]academic.CalendarDay, len(days))
	for _, d := range days {
		idx[d.Date] = d
	}
	return idx
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
