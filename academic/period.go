package academic

// =============================================================================
// PERIOD - Inclusive date range every calendar and declaration is built for
// =============================================================================

// Period is the inclusive range [Start, End].
//
// Examples:
//   - Semester 1, 2024/2025: 2024-10-01 .. 2025-01-19
//   - Monthly declaration:   2024-10-01 .. 2024-10-31
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewPeriod builds a period; it does not validate it.
func NewPeriod(start, end Date) Period {
	return Period{Start: start, End: end}
}

// Contains returns true if the date is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Len returns the number of days in the period, 0 for an inverted period.
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Days returns all days in the period in ascending order.
func (p Period) Days() []Date {
	days := make([]Date, 0, p.Len())
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Validate rejects inverted periods and, when maxDays > 0, periods longer
// than maxDays.
func (p Period) Validate(maxDays int) error {
	if p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	if maxDays > 0 && p.Len() > maxDays {
		return &PeriodTooLongError{Period: p, Days: p.Len(), MaxDays: maxDays}
	}
	return nil
}

// Overlaps reports whether two periods share at least one day.
func (p Period) Overlaps(o Period) bool {
	return !p.End.Before(o.Start) && !o.End.Before(p.Start)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
