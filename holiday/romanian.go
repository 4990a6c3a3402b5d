/*
Package holiday supplies public holidays to the calendar builder.

PURPOSE:
  The calendar builder consumes an already-fetched holiday list through
  academic.HolidaySource. This package provides the sources:

  Romanian:  Legal holidays of the Romanian Labour Code, movable feasts
             computed from the Orthodox Easter date
  ICSSource: Any ICS feed (webcal:// or https://), all-day events only
  Merge:     Union of several sources, first name wins per date

FAILURES:
  Sources return errors untouched. They never retry; the calendar service
  decides what to do with a failing source.

SEE ALSO:
  - academic/time.go: Holiday, HolidaySource, HolidaysForPeriod
  - api/scheduler.go: Periodic refresh of the ICS feed into the store
*/
package holiday

import (
	"context"
	"sort"
	"time"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

// =============================================================================
// ROMANIAN LEGAL HOLIDAYS
// =============================================================================

// Romanian is the legal holiday calendar of Romania.
type Romanian struct{}

var _ academic.HolidaySource = Romanian{}

type fixedHoliday struct {
	month time.Month
	day   int
	name  string
	since int // first year the holiday applies, 0 = always
}

var fixedHolidays = []fixedHoliday{
	{time.January, 1, "Anul Nou", 0},
	{time.January, 2, "Anul Nou", 0},
	{time.January, 6, "Boboteaza", 2024},
	{time.January, 7, "Sfântul Ioan Botezătorul", 2024},
	{time.January, 24, "Ziua Unirii Principatelor Române", 2017},
	{time.May, 1, "Ziua Muncii", 0},
	{time.June, 1, "Ziua Copilului", 2017},
	{time.August, 15, "Adormirea Maicii Domnului", 0},
	{time.November, 30, "Sfântul Andrei", 0},
	{time.December, 1, "Ziua Națională a României", 0},
	{time.December, 25, "Crăciunul", 0},
	{time.December, 26, "Crăciunul", 0},
}

// HolidaysForYear returns the holidays of the year sorted by date.
func (Romanian) HolidaysForYear(_ context.Context, year int) ([]academic.Holiday, error) {
	return RomanianHolidays(year), nil
}

// RomanianHolidays lists the legal holidays of a year, sorted by date.
func RomanianHolidays(year int) []academic.Holiday {
	var out []academic.Holiday
	add := func(date academic.Date, name string) {
		out = append(out, academic.Holiday{Date: date, Name: name})
	}

	easter := OrthodoxEaster(year)
	movable := []struct {
		offset int
		name   string
	}{
		{-2, "Vinerea Mare"},
		{0, "Paștele"},
		{1, "Paștele"},
		{49, "Rusaliile"},
		{50, "Rusaliile"},
	}

	for _, f := range fixedHolidays {
		if f.since == 0 || year >= f.since {
			add(academic.NewDate(year, f.month, f.day), f.name)
		}
	}
	for _, m := range movable {
		add(easter.AddDays(m.offset), m.name)
	}

	sortByDate(out)
	return out
}

// OrthodoxEaster returns the Gregorian date of Orthodox Easter Sunday,
// computed with the Julian computus (Meeus) and shifted by the
// Julian-Gregorian difference of the century.
func OrthodoxEaster(year int) academic.Date {
	a := year % 4
	b := year % 7
	c := year % 19
	d := (19*c + 15) % 30
	e := (2*a + 4*b - d + 34) % 7
	month := (d + e + 114) / 31
	day := (d+e+114)%31 + 1

	julian := academic.NewDate(year, time.Month(month), day)
	return julian.AddDays(year/100 - year/400 - 2)
}

func sortByDate(hs []academic.Holiday) {
	sort.SliceStable(hs, func(i, j int) bool { return hs[i].Date.Before(hs[j].Date) })
}
