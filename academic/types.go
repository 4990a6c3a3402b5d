/*
Package academic provides the core data model of the calendar and declaration engine.

PURPOSE:
  This package contains the types shared by every other package: dates and
  periods, semester weeks, calendar days, recurring teaching-hour records and
  the declaration items produced from them. It holds no algorithms beyond
  small invariant checks; generation lives in calendar/, expansion and
  aggregation in declaration/.

KEY CONCEPTS IN THIS FILE (types.go):
  - WeekType: Odd/Even parity label of a teaching week
  - SemesterWeek / SpecialWeek: the week sequence of a semester
  - CalendarDay: one materialized date with parity and working status
  - TeachingHourRecord: a weekly commitment (tagged union of hour kinds)
  - DeclarationItem / Summary / Declaration: aggregated payroll output

DESIGN PRINCIPLES:
  1. The calendar is the single source of parity and working-day facts
  2. Precision: hours and coefficients use decimal.Decimal
  3. A record carries exactly one hour kind and one hours value

SEE ALSO:
  - time.go: Date and Holiday
  - period.go: Period
  - store.go: Persistence interfaces
*/
package academic

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WEEK PARITY
// =============================================================================

// WeekType is the parity label of a teaching week. The empty value means
// "no parity" on a calendar day and "every week" on a teaching-hour record.
type WeekType string

const (
	WeekNone WeekType = ""
	WeekEven WeekType = "Even"
	WeekOdd  WeekType = "Odd"
)

// Flip returns the opposite parity; WeekNone stays WeekNone.
func (w WeekType) Flip() WeekType {
	switch w {
	case WeekOdd:
		return WeekEven
	case WeekEven:
		return WeekOdd
	default:
		return WeekNone
	}
}

// Valid reports whether w is one of the known values.
func (w WeekType) Valid() bool {
	return w == WeekNone || w == WeekEven || w == WeekOdd
}

// ParseWeekType accepts "odd"/"even" in any case, plus the Romanian
// "impar"/"par" labels used by faculty timetables.
func ParseWeekType(s string) (WeekType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return WeekNone, nil
	case "odd", "impar":
		return WeekOdd, nil
	case "even", "par":
		return WeekEven, nil
	default:
		return WeekNone, fmt.Errorf("unknown week type %q", s)
	}
}

// ParityFor returns Odd when odd is true, Even otherwise.
func ParityFor(odd bool) WeekType {
	if odd {
		return WeekOdd
	}
	return WeekEven
}

// =============================================================================
// SEMESTER WEEKS
// =============================================================================

// DaysPerWeek is the stride between consecutive week starts.
const DaysPerWeek = 7

// SemesterWeek is one regular (or extended) teaching week.
type SemesterWeek struct {
	Number    string   `json:"week_number"` // "S01", "S02", ...
	StartDate Date     `json:"start_date"`
	WeekType  WeekType `json:"week_type"`
}

// EndDate is the last day of the week.
func (w SemesterWeek) EndDate() Date { return w.StartDate.AddDays(DaysPerWeek - 1) }

// Contains reports whether date falls inside the week.
func (w SemesterWeek) Contains(date Date) bool {
	return date.AfterOrEqual(w.StartDate) && date.Before(w.StartDate.AddDays(DaysPerWeek))
}

// SpecialWeek is an extra week for extended programs or a vacation/closure
// period. A special week without WeekType makes its whole range non-working.
type SpecialWeek struct {
	Name      string   `json:"name"`
	StartDate Date     `json:"start_date"`
	EndDate   Date     `json:"end_date"`
	WeekType  WeekType `json:"week_type,omitempty"`
}

// IsVacation reports whether the special week is a non-working period.
func (s SpecialWeek) IsVacation() bool { return s.WeekType == WeekNone }

// Period returns the inclusive range of the special week.
func (s SpecialWeek) Period() Period { return Period{Start: s.StartDate, End: s.EndDate} }

// Validate checks the name and range.
func (s SpecialWeek) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("special week: %w", &RecordError{Reason: "name is required"})
	}
	if s.StartDate.IsZero() || s.EndDate.IsZero() || s.EndDate.Before(s.StartDate) {
		return &InvalidRangeError{Start: s.StartDate, End: s.EndDate}
	}
	if !s.WeekType.Valid() {
		return fmt.Errorf("special week %s: unknown week type %q: %w", s.Name, s.WeekType, ErrInvalidRange)
	}
	return nil
}

// =============================================================================
// KEYS
// =============================================================================

// SemesterKey identifies a faculty's semester configuration.
type SemesterKey struct {
	Faculty      string `json:"faculty"`
	AcademicYear string `json:"academic_year"` // e.g. "2024/2025"
	Semester     int    `json:"semester"`      // 1 or 2
}

func (k SemesterKey) String() string {
	return fmt.Sprintf("%s/%s/S%d", k.Faculty, k.AcademicYear, k.Semester)
}

// CalendarKey identifies a user's calendar (and teaching-hour records).
type CalendarKey struct {
	UserID       string `json:"user_id"`
	AcademicYear string `json:"academic_year"`
	Semester     int    `json:"semester"`
}

func (k CalendarKey) String() string {
	return fmt.Sprintf("%s/%s/S%d", k.UserID, k.AcademicYear, k.Semester)
}

// =============================================================================
// SEMESTER - Configuration the calendar is derived from
// =============================================================================

// Semester is a faculty semester with its generated week sequence.
type Semester struct {
	Key          SemesterKey    `json:"key"`
	StartDate    Date           `json:"start_date"`
	EndDate      Date           `json:"end_date"`
	StartsOdd    bool           `json:"starts_odd"`
	Extended     bool           `json:"extended"`
	Weeks        []SemesterWeek `json:"weeks"`
	SpecialWeeks []SpecialWeek  `json:"special_weeks,omitempty"`
	Version      int            `json:"version"`
}

// Period covers the semester dates plus any generated or special week
// reaching past EndDate.
func (s Semester) Period() Period {
	end := s.EndDate
	for _, w := range s.Weeks {
		if w.EndDate().After(end) {
			end = w.EndDate()
		}
	}
	for _, sw := range s.SpecialWeeks {
		if sw.EndDate.After(end) {
			end = sw.EndDate
		}
	}
	return Period{Start: s.StartDate, End: end}
}

// WeekType resolves a week label against the regular weeks first, then the
// special weeks. ok is false for unknown labels.
func (s Semester) WeekType(label string) (WeekType, bool) {
	for _, w := range s.Weeks {
		if w.Number == label {
			return w.WeekType, true
		}
	}
	for _, sw := range s.SpecialWeeks {
		if sw.Name == label {
			return sw.WeekType, true
		}
	}
	return WeekNone, false
}

// =============================================================================
// CALENDAR DAY
// =============================================================================

// CalendarDay is one materialized date of a calendar.
// Invariant: IsWorkingDay is false whenever IsHoliday is true or the date
// falls on a weekend.
type CalendarDay struct {
	Date         Date         `json:"date"`
	DayOfWeek    time.Weekday `json:"day_of_week"`
	IsWorkingDay bool         `json:"is_working_day"`
	OddEven      WeekType     `json:"odd_even"`
	SemesterWeek string       `json:"semester_week"`
	IsHoliday    bool         `json:"is_holiday"`
	HolidayName  string       `json:"holiday_name,omitempty"`
	Manual       bool         `json:"manual,omitempty"` // hand-entered, survives regeneration
}

// Normalize re-applies the working-day invariant.
func (d *CalendarDay) Normalize() {
	d.DayOfWeek = d.Date.Weekday()
	if d.IsHoliday || d.Date.IsWeekend() {
		d.IsWorkingDay = false
	}
}

// =============================================================================
// HOUR KINDS & ACTIVITY TYPES
// =============================================================================

// HourKind says which kind of teaching an hours value counts.
type HourKind string

const (
	KindCourse  HourKind = "course"
	KindSeminar HourKind = "seminar"
	KindLab     HourKind = "lab"
	KindProject HourKind = "project"
)

// HourKinds lists every kind in declaration column order.
var HourKinds = []HourKind{KindCourse, KindSeminar, KindLab, KindProject}

func (k HourKind) Valid() bool {
	switch k {
	case KindCourse, KindSeminar, KindLab, KindProject:
		return true
	}
	return false
}

// ActivityType is the study program variant an activity is paid under.
type ActivityType string

const (
	ActivityLR ActivityType = "LR" // Bachelor, Romanian
	ActivityLE ActivityType = "LE" // Bachelor, English
	ActivityMR ActivityType = "MR" // Master, Romanian
	ActivityME ActivityType = "ME" // Master, English
)

// ActivityTypes lists every activity type.
var ActivityTypes = []ActivityType{ActivityLR, ActivityLE, ActivityMR, ActivityME}

func (a ActivityType) Valid() bool {
	switch a {
	case ActivityLR, ActivityLE, ActivityMR, ActivityME:
		return true
	}
	return false
}

// =============================================================================
// HOUR COUNTS - The four-column form used by timetables and declarations
// =============================================================================

// HourCounts carries one value per hour kind.
type HourCounts struct {
	Course  decimal.Decimal `json:"course_hours"`
	Seminar decimal.Decimal `json:"seminar_hours"`
	Lab     decimal.Decimal `json:"lab_hours"`
	Project decimal.Decimal `json:"project_hours"`
}

// NewHourCounts builds counts from plain numbers.
func NewHourCounts(course, seminar, lab, project float64) HourCounts {
	return HourCounts{
		Course:  decimal.NewFromFloat(course),
		Seminar: decimal.NewFromFloat(seminar),
		Lab:     decimal.NewFromFloat(lab),
		Project: decimal.NewFromFloat(project),
	}
}

// CountsFor returns counts with only kind set to hours.
func CountsFor(kind HourKind, hours decimal.Decimal) HourCounts {
	var c HourCounts
	c.Set(kind, hours)
	return c
}

// Get returns the value of one kind.
func (c HourCounts) Get(kind HourKind) decimal.Decimal {
	switch kind {
	case KindCourse:
		return c.Course
	case KindSeminar:
		return c.Seminar
	case KindLab:
		return c.Lab
	case KindProject:
		return c.Project
	}
	return decimal.Zero
}

// Set overwrites the value of one kind.
func (c *HourCounts) Set(kind HourKind, v decimal.Decimal) {
	switch kind {
	case KindCourse:
		c.Course = v
	case KindSeminar:
		c.Seminar = v
	case KindLab:
		c.Lab = v
	case KindProject:
		c.Project = v
	}
}

// Add sums two counts column by column.
func (c HourCounts) Add(o HourCounts) HourCounts {
	return HourCounts{
		Course:  c.Course.Add(o.Course),
		Seminar: c.Seminar.Add(o.Seminar),
		Lab:     c.Lab.Add(o.Lab),
		Project: c.Project.Add(o.Project),
	}
}

// Total is the sum of all four columns.
func (c HourCounts) Total() decimal.Decimal {
	return c.Course.Add(c.Seminar).Add(c.Lab).Add(c.Project)
}

// Single returns the one non-zero kind. Exactly one column must be
// positive and the others zero.
func (c HourCounts) Single() (HourKind, decimal.Decimal, error) {
	var (
		kind  HourKind
		hours decimal.Decimal
		found int
	)
	for _, k := range HourKinds {
		v := c.Get(k)
		if v.IsNegative() {
			return "", decimal.Zero, &RecordError{Reason: fmt.Sprintf("%s hours are negative", k)}
		}
		if v.IsPositive() {
			kind, hours = k, v
			found++
		}
	}
	if found != 1 {
		return "", decimal.Zero, &RecordError{
			Reason: fmt.Sprintf("exactly one hour kind must be non-zero, got %d", found),
		}
	}
	return kind, hours, nil
}

// =============================================================================
// TEACHING-HOUR RECORD - A recurring weekly commitment
// =============================================================================

// TeachingHourRecord describes a weekly teaching slot. It fires on every
// working day with the right weekday, parity and (for special records)
// week label.
type TeachingHourRecord struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	AcademicYear   string          `json:"academic_year"`
	Semester       int             `json:"semester"`
	DayOfWeek      time.Weekday    `json:"day_of_week"`
	OddEven        WeekType        `json:"odd_even"` // "" = every week
	IsSpecial      bool            `json:"is_special"`
	SpecialWeek    string          `json:"special_week,omitempty"`
	ActivityType   ActivityType    `json:"activity_type"`
	Kind           HourKind        `json:"hour_kind"`
	Hours          decimal.Decimal `json:"hours"`
	DisciplineName string          `json:"discipline_name"`
	Group          string          `json:"group"`
	PostNumber     string          `json:"post_number"`
	PostGrade      string          `json:"post_grade"`
	Processed      bool            `json:"processed_in_declaration"`
}

// CalendarKey returns the key of the calendar the record belongs to.
func (r TeachingHourRecord) CalendarKey() CalendarKey {
	return CalendarKey{UserID: r.UserID, AcademicYear: r.AcademicYear, Semester: r.Semester}
}

// Counts returns the record in the four-column form.
func (r TeachingHourRecord) Counts() HourCounts {
	return CountsFor(r.Kind, r.Hours)
}

// SetCounts fills Kind/Hours from the four-column form, enforcing the
// single-hour-kind invariant.
func (r *TeachingHourRecord) SetCounts(c HourCounts) error {
	kind, hours, err := c.Single()
	if err != nil {
		if re, ok := err.(*RecordError); ok {
			re.RecordID = r.ID
		}
		return err
	}
	r.Kind, r.Hours = kind, hours
	return nil
}

// Validate enforces the record invariants. It runs when a record is created
// or edited, never during declaration generation.
func (r TeachingHourRecord) Validate() error {
	fail := func(reason string) error { return &RecordError{RecordID: r.ID, Reason: reason} }

	if r.DayOfWeek < time.Sunday || r.DayOfWeek > time.Saturday {
		return fail(fmt.Sprintf("day of week %d out of range", r.DayOfWeek))
	}
	if !r.OddEven.Valid() {
		return fail(fmt.Sprintf("unknown parity %q", r.OddEven))
	}
	if r.IsSpecial && strings.TrimSpace(r.SpecialWeek) == "" {
		return fail("special record needs a special week")
	}
	if !r.IsSpecial && r.SpecialWeek != "" {
		return fail("special week set on a regular record")
	}
	if !r.ActivityType.Valid() {
		return fail(fmt.Sprintf("unknown activity type %q", r.ActivityType))
	}
	if !r.Kind.Valid() {
		return fail(fmt.Sprintf("unknown hour kind %q", r.Kind))
	}
	if !r.Hours.IsPositive() {
		return fail("hours must be positive")
	}
	if strings.TrimSpace(r.DisciplineName) == "" {
		return fail("discipline name is required")
	}
	if r.Semester != 1 && r.Semester != 2 {
		return fail(fmt.Sprintf("semester must be 1 or 2, got %d", r.Semester))
	}
	return nil
}

// =============================================================================
// DECLARATION OUTPUT
// =============================================================================

// ItemKey is the grouping key of declaration items.
type ItemKey struct {
	PostNumber     string
	DisciplineName string
	ActivityType   ActivityType
	Groups         string
	Date           Date
}

// DeclarationItem is one concrete dated occurrence of a teaching activity.
type DeclarationItem struct {
	PostNumber     string          `json:"post_number"`
	PostGrade      string          `json:"post_grade"`
	Date           Date            `json:"date"`
	DisciplineName string          `json:"discipline_name"`
	ActivityType   ActivityType    `json:"activity_type"`
	Groups         string          `json:"groups"`
	CourseHours    decimal.Decimal `json:"course_hours"`
	SeminarHours   decimal.Decimal `json:"seminar_hours"`
	LabHours       decimal.Decimal `json:"lab_hours"`
	ProjectHours   decimal.Decimal `json:"project_hours"`
	Coefficient    decimal.Decimal `json:"coefficient"`
	TotalHours     decimal.Decimal `json:"total_hours"`
}

// Key returns the item's grouping key.
func (i DeclarationItem) Key() ItemKey {
	return ItemKey{
		PostNumber:     i.PostNumber,
		DisciplineName: i.DisciplineName,
		ActivityType:   i.ActivityType,
		Groups:         i.Groups,
		Date:           i.Date,
	}
}

// Counts returns the four hour columns.
func (i DeclarationItem) Counts() HourCounts {
	return HourCounts{Course: i.CourseHours, Seminar: i.SeminarHours, Lab: i.LabHours, Project: i.ProjectHours}
}

// SetCounts overwrites the four hour columns.
func (i *DeclarationItem) SetCounts(c HourCounts) {
	i.CourseHours, i.SeminarHours, i.LabHours, i.ProjectHours = c.Course, c.Seminar, c.Lab, c.Project
}

// Breakdown is a count + hours total for one activity type or discipline.
type Breakdown struct {
	Key   string          `json:"key"`
	Count int             `json:"count"`
	Hours decimal.Decimal `json:"hours"`
}

// Summary aggregates a declaration's items.
type Summary struct {
	CourseHours    decimal.Decimal `json:"course_hours"`
	SeminarHours   decimal.Decimal `json:"seminar_hours"`
	LabHours       decimal.Decimal `json:"lab_hours"`
	ProjectHours   decimal.Decimal `json:"project_hours"`
	TotalHours     decimal.Decimal `json:"total_hours"`
	WeightedHours  decimal.Decimal `json:"weighted_hours"` // Σ TotalHours × Coefficient
	DistinctDays   int             `json:"distinct_days"`
	ByActivityType []Breakdown     `json:"by_activity_type"`
	ByDiscipline   []Breakdown     `json:"by_discipline"`
}

// Declaration is a generated list of items for one calendar and period.
type Declaration struct {
	ID        string            `json:"id,omitempty"`
	Key       CalendarKey       `json:"key"`
	Period    Period            `json:"period"`
	Items     []DeclarationItem `json:"items"`
	Summary   Summary           `json:"summary"`
	Valid     bool              `json:"is_valid"`
	Stale     bool              `json:"stale,omitempty"`
	RecordIDs []string          `json:"record_ids,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
}
