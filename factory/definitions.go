/*
Package factory converts JSON definitions into engine types.

PURPOSE:
  Semester definitions, coefficient tables and teaching-hour records arrive
  as JSON (admin UI, config files, imports from the faculty timetable). The
  factory validates them and builds the Go values the calendar and
  declaration packages work with.

JSON SCHEMAS:
  Semester:
    {
      "faculty": "ETTI",
      "academic_year": "2024/2025",
      "semester": 1,
      "start_date": "2024-10-01",
      "end_date": "2025-01-19",
      "starts_odd": true,
      "extended": false,
      "special_weeks": [
        {"name": "Winter break", "start_date": "2024-12-23", "end_date": "2025-01-05"}
      ]
    }

  Coefficients (activity type -> hour kind -> multiplier):
    {
      "default": 1,
      "coefficients": {
        "LR": {"course": 2, "seminar": 1, "lab": 1, "project": 1}
      }
    }

  Teaching-hour record (four-column timetable form, exactly one non-zero):
    {
      "user_id": "prof-1", "academic_year": "2024/2025", "semester": 1,
      "day_of_week": "Tuesday", "odd_even": "Odd",
      "activity_type": "LR", "course_hours": 2,
      "discipline_name": "Algorithms", "group": "221",
      "post_number": "12", "post_grade": "Lecturer"
    }

USAGE:
  def, specials, err := factory.ParseSemester(jsonStr)
  coefficients, err := factory.ParseCoefficients(factory.StandardCoefficientsJSON())

SEE ALSO:
  - calendar/service.go: Consumes SemesterDefinition
  - declaration/coefficients.go: Coefficient table
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
	"github.com/ULBS/platacuora-timetech-sub000/calendar"
	"github.com/ULBS/platacuora-timetech-sub000/declaration"
)

// =============================================================================
// SEMESTER
// =============================================================================

// SemesterJSON is the JSON representation of a semester definition.
type SemesterJSON struct {
	Faculty      string            `json:"faculty"`
	AcademicYear string            `json:"academic_year"`
	Semester     int               `json:"semester"`
	StartDate    string            `json:"start_date"`
	EndDate      string            `json:"end_date"`
	StartsOdd    bool              `json:"starts_odd"`
	Extended     bool              `json:"extended,omitempty"`
	SpecialWeeks []SpecialWeekJSON `json:"special_weeks,omitempty"`
}

// SpecialWeekJSON is a special week; an empty week_type means vacation.
type SpecialWeekJSON struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	WeekType  string `json:"week_type,omitempty"`
}

// ParseSemester parses a semester definition and its special weeks.
func ParseSemester(jsonStr string) (calendar.SemesterDefinition, []academic.SpecialWeek, error) {
	var sj SemesterJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return calendar.SemesterDefinition{}, nil, fmt.Errorf("invalid semester JSON: %w", err)
	}
	return sj.ToDefinition()
}

// ToDefinition validates the JSON form and converts it.
func (sj SemesterJSON) ToDefinition() (calendar.SemesterDefinition, []academic.SpecialWeek, error) {
	if strings.TrimSpace(sj.Faculty) == "" {
		return calendar.SemesterDefinition{}, nil, fmt.Errorf("faculty is required")
	}
	if strings.TrimSpace(sj.AcademicYear) == "" {
		return calendar.SemesterDefinition{}, nil, fmt.Errorf("academic_year is required")
	}
	if sj.Semester != 1 && sj.Semester != 2 {
		return calendar.SemesterDefinition{}, nil, fmt.Errorf("semester must be 1 or 2, got %d", sj.Semester)
	}
	start, err := academic.ParseDate(sj.StartDate)
	if err != nil {
		return calendar.SemesterDefinition{}, nil, fmt.Errorf("start_date: %w", err)
	}
	end, err := academic.ParseDate(sj.EndDate)
	if err != nil {
		return calendar.SemesterDefinition{}, nil, fmt.Errorf("end_date: %w", err)
	}
	if !end.After(start) {
		return calendar.SemesterDefinition{}, nil, &academic.InvalidRangeError{Start: start, End: end}
	}

	specials := make([]academic.SpecialWeek, 0, len(sj.SpecialWeeks))
	for i, swj := range sj.SpecialWeeks {
		sw, err := swj.ToSpecialWeek()
		if err != nil {
			return calendar.SemesterDefinition{}, nil, fmt.Errorf("special_weeks[%d]: %w", i, err)
		}
		specials = append(specials, sw)
	}

	return calendar.SemesterDefinition{
		Key: academic.SemesterKey{
			Faculty:      sj.Faculty,
			AcademicYear: sj.AcademicYear,
			Semester:     sj.Semester,
		},
		StartDate: start,
		EndDate:   end,
		StartsOdd: sj.StartsOdd,
		Extended:  sj.Extended,
	}, specials, nil
}

// ToSpecialWeek parses and validates one special week.
func (swj SpecialWeekJSON) ToSpecialWeek() (academic.SpecialWeek, error) {
	start, err := academic.ParseDate(swj.StartDate)
	if err != nil {
		return academic.SpecialWeek{}, err
	}
	end, err := academic.ParseDate(swj.EndDate)
	if err != nil {
		return academic.SpecialWeek{}, err
	}
	wt, err := academic.ParseWeekType(swj.WeekType)
	if err != nil {
		return academic.SpecialWeek{}, err
	}
	sw := academic.SpecialWeek{Name: strings.TrimSpace(swj.Name), StartDate: start, EndDate: end, WeekType: wt}
	return sw, sw.Validate()
}

// =============================================================================
// COEFFICIENTS
// =============================================================================

// CoefficientsJSON is the JSON representation of a coefficient table.
type CoefficientsJSON struct {
	Default      *float64                      `json:"default,omitempty"`
	Coefficients map[string]map[string]float64 `json:"coefficients"`
}

// ParseCoefficients parses a coefficient table.
func ParseCoefficients(jsonStr string) (*declaration.Coefficients, error) {
	var cj CoefficientsJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, fmt.Errorf("invalid coefficients JSON: %w", err)
	}
	def := 1.0
	if cj.Default != nil {
		def = *cj.Default
	}
	return BuildCoefficients(def, cj.Coefficients)
}

// BuildCoefficients builds a table from activity -> kind -> value. Keys are
// case-insensitive ("lr"/"LR", "Course"/"course").
func BuildCoefficients(def float64, values map[string]map[string]float64) (*declaration.Coefficients, error) {
	if def < 0 {
		return nil, fmt.Errorf("default coefficient is negative")
	}
	table := declaration.NewCoefficients(decimal.NewFromFloat(def))
	for activity, kinds := range values {
		at := academic.ActivityType(strings.ToUpper(strings.TrimSpace(activity)))
		for kind, v := range kinds {
			hk := academic.HourKind(strings.ToLower(strings.TrimSpace(kind)))
			if err := table.Set(at, hk, decimal.NewFromFloat(v)); err != nil {
				return nil, err
			}
		}
	}
	return table, nil
}

// StandardCoefficientsJSON is the default table: a course hour counts
// double, Master and English-taught programs carry a premium.
func StandardCoefficientsJSON() string {
	return `{
		"default": 1,
		"coefficients": {
			"LR": {"course": 2,   "seminar": 1,    "lab": 1,    "project": 1},
			"LE": {"course": 2.5, "seminar": 1.25, "lab": 1.25, "project": 1.25},
			"MR": {"course": 2.5, "seminar": 1.5,  "lab": 1.5,  "project": 1.5},
			"ME": {"course": 3,   "seminar": 1.75, "lab": 1.75, "project": 1.75}
		}
	}`
}

// =============================================================================
// TEACHING-HOUR RECORDS
// =============================================================================

// RecordJSON is the four-column form of a teaching-hour record.
type RecordJSON struct {
	ID             string  `json:"id,omitempty"`
	UserID         string  `json:"user_id"`
	AcademicYear   string  `json:"academic_year"`
	Semester       int     `json:"semester"`
	DayOfWeek      string  `json:"day_of_week"`
	OddEven        string  `json:"odd_even,omitempty"`
	IsSpecial      bool    `json:"is_special,omitempty"`
	SpecialWeek    string  `json:"special_week,omitempty"`
	ActivityType   string  `json:"activity_type"`
	CourseHours    float64 `json:"course_hours,omitempty"`
	SeminarHours   float64 `json:"seminar_hours,omitempty"`
	LabHours       float64 `json:"lab_hours,omitempty"`
	ProjectHours   float64 `json:"project_hours,omitempty"`
	DisciplineName string  `json:"discipline_name"`
	Group          string  `json:"group,omitempty"`
	PostNumber     string  `json:"post_number,omitempty"`
	PostGrade      string  `json:"post_grade,omitempty"`
}

// ParseRecord parses a record in the four-column form.
func ParseRecord(jsonStr string) (academic.TeachingHourRecord, error) {
	var rj RecordJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return academic.TeachingHourRecord{}, fmt.Errorf("invalid record JSON: %w", err)
	}
	return rj.ToRecord()
}

// ToRecord converts and validates the record.
func (rj RecordJSON) ToRecord() (academic.TeachingHourRecord, error) {
	day, err := ParseWeekday(rj.DayOfWeek)
	if err != nil {
		return academic.TeachingHourRecord{}, &academic.RecordError{RecordID: rj.ID, Reason: err.Error()}
	}
	parity, err := academic.ParseWeekType(rj.OddEven)
	if err != nil {
		return academic.TeachingHourRecord{}, &academic.RecordError{RecordID: rj.ID, Reason: err.Error()}
	}

	r := academic.TeachingHourRecord{
		ID:             rj.ID,
		UserID:         rj.UserID,
		AcademicYear:   rj.AcademicYear,
		Semester:       rj.Semester,
		DayOfWeek:      day,
		OddEven:        parity,
		IsSpecial:      rj.IsSpecial,
		SpecialWeek:    strings.TrimSpace(rj.SpecialWeek),
		ActivityType:   academic.ActivityType(strings.ToUpper(strings.TrimSpace(rj.ActivityType))),
		DisciplineName: strings.TrimSpace(rj.DisciplineName),
		Group:          rj.Group,
		PostNumber:     rj.PostNumber,
		PostGrade:      rj.PostGrade,
	}
	if err := r.SetCounts(academic.NewHourCounts(rj.CourseHours, rj.SeminarHours, rj.LabHours, rj.ProjectHours)); err != nil {
		return academic.TeachingHourRecord{}, err
	}
	return r, r.Validate()
}

// RecordToJSON converts a record back to the four-column form.
func RecordToJSON(r academic.TeachingHourRecord) RecordJSON {
	c := r.Counts()
	return RecordJSON{
		ID:             r.ID,
		UserID:         r.UserID,
		AcademicYear:   r.AcademicYear,
		Semester:       r.Semester,
		DayOfWeek:      r.DayOfWeek.String(),
		OddEven:        string(r.OddEven),
		IsSpecial:      r.IsSpecial,
		SpecialWeek:    r.SpecialWeek,
		ActivityType:   string(r.ActivityType),
		CourseHours:    c.Course.InexactFloat64(),
		SeminarHours:   c.Seminar.InexactFloat64(),
		LabHours:       c.Lab.InexactFloat64(),
		ProjectHours:   c.Project.InexactFloat64(),
		DisciplineName: r.DisciplineName,
		Group:          r.Group,
		PostNumber:     r.PostNumber,
		PostGrade:      r.PostGrade,
	}
}

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday, "luni": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "marti": time.Tuesday, "marți": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "miercuri": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "joi": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "vineri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "sambata": time.Saturday, "sâmbătă": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday, "duminica": time.Sunday, "duminică": time.Sunday,
}

// ParseWeekday accepts English names and abbreviations and the Romanian
// names used in faculty timetables.
func ParseWeekday(s string) (time.Weekday, error) {
	if wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]; ok {
		return wd, nil
	}
	return time.Sunday, fmt.Errorf("unknown day of week %q", s)
}
