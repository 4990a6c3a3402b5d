package holiday

import (
	"context"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

// Merged is the union of several sources. For a date present in more than
// one source, the first source's name wins.
type Merged []academic.HolidaySource

// Merge combines sources; nil sources are skipped.
func Merge(sources ...academic.HolidaySource) Merged {
	out := make(Merged, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// HolidaysForYear queries every source in order and fails on the first error.
func (m Merged) HolidaysForYear(ctx context.Context, year int) ([]academic.Holiday, error) {
	seen := make(map[academic.Date]bool)
	var out []academic.Holiday
	for _, src := range m {
		hs, err := src.HolidaysForYear(ctx, year)
		if err != nil {
			return nil, err
		}
		for _, h := range hs {
			date, ok := h.InYear(year)
			if !ok || seen[date] {
				continue
			}
			seen[date] = true
			h.Date = date
			h.Recurring = false
			out = append(out, h)
		}
	}
	sortByDate(out)
	return out, nil
}
