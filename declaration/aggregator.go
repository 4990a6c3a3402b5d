package declaration

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

// =============================================================================
// DECLARATION AGGREGATOR
// =============================================================================

// AggregateInput is everything Aggregate needs. Records must belong to the
// same calendar; the calendar must already have passed verification.
type AggregateInput struct {
	Key          academic.CalendarKey
	Records      []academic.TeachingHourRecord
	Calendar     map[academic.Date]academic.CalendarDay
	Period       academic.Period
	Coefficients *Coefficients
}

// Aggregate expands every record over the period, merges items
// colliding on (post, discipline, activity type, groups, date), sorts them
// by date and computes the summary.
//
// The declaration is always returned. When validation fails Valid is false
// and the error says why, so callers can still show a preview.
// Output depends only on the input: no clock, no randomness.
func Aggregate(in AggregateInput) (academic.Declaration, error) {
	decl := academic.Declaration{Key: in.Key, Period: in.Period}

	var (
		items []academic.DeclarationItem
		index = make(map[academic.ItemKey]int)
		used  = make(map[string]bool)
	)
	for _, r := range in.Records {
		for _, occ := range Match(r, in.Calendar, in.Period) {
			if r.ID != "" && !used[r.ID] {
				used[r.ID] = true
				decl.RecordIDs = append(decl.RecordIDs, r.ID)
			}
			item := rawItem(occ, in.Coefficients)
			if i, ok := index[item.Key()]; ok {
				items[i] = merge(items[i], item)
				continue
			}
			index[item.Key()] = len(items)
			items = append(items, item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Date.Before(items[j].Date) })

	decl.Items = items
	decl.Summary = Summarize(items)

	if err := validate(items, in.Period, len(in.Records)); err != nil {
		return decl, err
	}
	decl.Valid = true
	return decl, nil
}

func rawItem(occ Occurrence, coefficients *Coefficients) academic.DeclarationItem {
	r := occ.Record
	item := academic.DeclarationItem{
		PostNumber:     r.PostNumber,
		PostGrade:      r.PostGrade,
		Date:           occ.Date,
		DisciplineName: r.DisciplineName,
		ActivityType:   r.ActivityType,
		Groups:         r.Group,
		Coefficient:    coefficients.Lookup(r.ActivityType, r.Kind),
		TotalHours:     r.Hours,
	}
	item.SetCounts(r.Counts())
	return item
}

// merge sums hours into the first item; grade and coefficient stay the
// first item's.
func merge(first, next academic.DeclarationItem) academic.DeclarationItem {
	first.SetCounts(first.Counts().Add(next.Counts()))
	first.TotalHours = first.TotalHours.Add(next.TotalHours)
	return first
}

func validate(items []academic.DeclarationItem, period academic.Period, records int) error {
	if len(items) == 0 {
		return &academic.NoActivityError{Period: period, Records: records}
	}

	var problems []academic.ItemProblem
	for i, item := range items {
		var missing []string
		if item.Date.IsZero() {
			missing = append(missing, "date")
		}
		if item.DisciplineName == "" {
			missing = append(missing, "discipline_name")
		}
		if !item.TotalHours.IsPositive() {
			missing = append(missing, "total_hours")
		}
		if item.ActivityType == "" {
			missing = append(missing, "activity_type")
		}
		if len(missing) > 0 {
			problems = append(problems, academic.ItemProblem{Index: i, Fields: missing})
		}
	}
	if len(problems) > 0 {
		return &academic.IncompleteItemError{Problems: problems}
	}
	return nil
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summarize totals the items. Breakdowns are sorted by key.
func Summarize(items []academic.DeclarationItem) academic.Summary {
	s := academic.Summary{
		CourseHours:   decimal.Zero,
		SeminarHours:  decimal.Zero,
		LabHours:      decimal.Zero,
		ProjectHours:  decimal.Zero,
		TotalHours:    decimal.Zero,
		WeightedHours: decimal.Zero,
	}
	days := make(map[academic.Date]bool)
	byActivity := make(map[string]*academic.Breakdown)
	byDiscipline := make(map[string]*academic.Breakdown)

	for _, item := range items {
		s.CourseHours = s.CourseHours.Add(item.CourseHours)
		s.SeminarHours = s.SeminarHours.Add(item.SeminarHours)
		s.LabHours = s.LabHours.Add(item.LabHours)
		s.ProjectHours = s.ProjectHours.Add(item.ProjectHours)
		s.TotalHours = s.TotalHours.Add(item.TotalHours)
		s.WeightedHours = s.WeightedHours.Add(item.TotalHours.Mul(item.Coefficient))
		days[item.Date] = true

		addBreakdown(byActivity, string(item.ActivityType), item.TotalHours)
		addBreakdown(byDiscipline, item.DisciplineName, item.TotalHours)
	}

	s.DistinctDays = len(days)
	s.ByActivityType = sortedBreakdowns(byActivity)
	s.ByDiscipline = sortedBreakdowns(byDiscipline)
	return s
}

func addBreakdown(m map[string]*academic.Breakdown, key string, hours decimal.Decimal) {
	b, ok := m[key]
	if !ok {
		b = &academic.Breakdown{Key: key, Hours: decimal.Zero}
		m[key] = b
	}
	b.Count++
	b.Hours = b.Hours.Add(hours)
}

func sortedBreakdowns(m map[string]*academic.Breakdown) []academic.Breakdown {
	out := make([]academic.Breakdown, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
