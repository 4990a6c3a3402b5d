package academic

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// DATE - Day-granularity calendar date (every fact in this system is per day)
// =============================================================================

// DateLayout is the canonical text form of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar date normalized to midnight UTC.
type Date struct {
	Time time.Time
}

// NewDate returns the date for year/month/day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals in tests and presets.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int                { return d.Time.Year() }
func (d Date) Month() time.Month        { return d.Time.Month() }
func (d Date) Day() int                 { return d.Time.Day() }
func (d Date) Weekday() time.Weekday    { return d.Time.Weekday() }
func (d Date) IsZero() bool             { return d.Time.IsZero() }
func (d Date) IsWeekend() bool          { wd := d.Weekday(); return wd == time.Saturday || wd == time.Sunday }
func (d Date) String() string           { return d.Time.Format(DateLayout) }
func (d Date) SameMonthDay(o Date) bool { return d.Month() == o.Month() && d.Day() == o.Day() }

// DaysBetween returns to - from in whole days (negative when to is earlier).
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// =============================================================================
// ENCODING - JSON and SQL both use YYYY-MM-DD
// =============================================================================

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = DateOf(v.UTC())
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// =============================================================================
// HOLIDAYS - Public holidays and the sources that supply them
// =============================================================================

// Holiday is a public holiday. Recurring holidays repeat on the same
// month/day every year.
type Holiday struct {
	ID        string `json:"id,omitempty"`
	Date      Date   `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring,omitempty"`
}

// On reports whether the holiday falls on date.
func (h Holiday) On(date Date) bool {
	if h.Recurring {
		return h.Date.SameMonthDay(date)
	}
	return h.Date.Equal(date)
}

// InYear returns the holiday's concrete date for the given year. A
// recurring 29 February has no date in common years and reports false.
func (h Holiday) InYear(year int) (Date, bool) {
	if !h.Recurring {
		return h.Date, true
	}
	d := NewDate(year, h.Date.Month(), h.Date.Day())
	if d.Month() != h.Date.Month() {
		return Date{}, false
	}
	return d, true
}

// HolidaySource is the external holiday provider. The engine only consumes
// an already-fetched list; failures are returned to the caller untouched.
type HolidaySource interface {
	HolidaysForYear(ctx context.Context, year int) ([]Holiday, error)
}

// NoHolidays is a HolidaySource that never returns anything.
type NoHolidays struct{}

func (NoHolidays) HolidaysForYear(context.Context, int) ([]Holiday, error) { return nil, nil }

// HolidaysForPeriod collects holidays for every year the period touches.
func HolidaysForPeriod(ctx context.Context, src HolidaySource, p Period) ([]Holiday, error) {
	if src == nil {
		return nil, nil
	}
	var out []Holiday
	for year := p.Start.Year(); year <= p.End.Year(); year++ {
		hs, err := src.HolidaysForYear(ctx, year)
		if err != nil {
			return nil, fmt.Errorf("holidays for %d: %w", year, err)
		}
		for _, h := range hs {
			date, ok := h.InYear(year)
			if !ok {
				continue
			}
			h.Date = date
			h.Recurring = false
			if p.Contains(h.Date) {
				out = append(out, h)
			}
		}
	}
	return out, nil
}
