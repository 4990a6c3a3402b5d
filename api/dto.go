/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types that
  already carry JSON tags (academic.Semester, academic.CalendarDay,
  academic.Declaration, academic.Holiday) are returned as they are; the
  types here cover request bodies and the shapes that differ from the
  domain model.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Semesters:    factory.SemesterJSON (request), academic.Semester (response)
  Calendars:    BuildCalendarRequest, SpecialDayRequest, VerifyReportDTO
  Records:      factory.RecordJSON (four-column form, both directions)
  Declarations: DeclarationRequest
  Scenarios:    ScenarioDTO, LoadScenarioRequest

ACADEMIC YEARS IN PATHS:
  "2024/2025" cannot travel as one path segment, so path parameters use
  "2024-2025". Query parameters and bodies accept either form.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/definitions.go: SemesterJSON, RecordJSON
*/
package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
	"github.com/ULBS/platacuora-timetech-sub000/calendar"
)

// =============================================================================
// CALENDARS
// =============================================================================

// BuildCalendarRequest asks for a user's calendar to be (re)built from a
// faculty semester.
type BuildCalendarRequest struct {
	Faculty      string `json:"faculty"`
	UserID       string `json:"user_id"`
	AcademicYear string `json:"academic_year"`
	Semester     int    `json:"semester"`
}

// SpecialDayRequest is a hand-entered calendar day.
type SpecialDayRequest struct {
	Date         string `json:"date"`
	IsWorkingDay bool   `json:"is_working_day"`
	OddEven      string `json:"odd_even,omitempty"`
	SemesterWeek string `json:"semester_week,omitempty"`
	IsHoliday    bool   `json:"is_holiday,omitempty"`
	HolidayName  string `json:"holiday_name,omitempty"`
}

// ToDay converts the request into a calendar day.
func (r SpecialDayRequest) ToDay() (academic.CalendarDay, error) {
	date, err := academic.ParseDate(r.Date)
	if err != nil {
		return academic.CalendarDay{}, fmt.Errorf("date: %w", academic.ErrInvalidPeriod)
	}
	parity, err := academic.ParseWeekType(r.OddEven)
	if err != nil {
		return academic.CalendarDay{}, fmt.Errorf("odd_even: %v: %w", err, academic.ErrInvalidRange)
	}
	return academic.CalendarDay{
		Date:         date,
		IsWorkingDay: r.IsWorkingDay,
		OddEven:      parity,
		SemesterWeek: r.SemesterWeek,
		IsHoliday:    r.IsHoliday,
		HolidayName:  r.HolidayName,
	}, nil
}

// ConflictDTO is one verifier conflict.
type ConflictDTO struct {
	Kind    string `json:"kind"`
	Date    string `json:"date"`
	Message string `json:"message"`
}

// VerifyReportDTO is the verifier result.
type VerifyReportDTO struct {
	Valid     bool          `json:"is_valid"`
	Conflicts []ConflictDTO `json:"conflicts"`
}

func toReportDTO(r calendar.Report) VerifyReportDTO {
	return VerifyReportDTO{Valid: r.Valid, Conflicts: toConflictDTOs(r.Conflicts)}
}

func toConflictDTOs(conflicts []academic.Conflict) []ConflictDTO {
	dtos := make([]ConflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		dtos = append(dtos, ConflictDTO{
			Kind:    conflictKind(c),
			Date:    c.ConflictDate().String(),
			Message: c.Error(),
		})
	}
	return dtos
}

func conflictKind(err error) string {
	switch {
	case errors.Is(err, academic.ErrDuplicateDate):
		return "duplicate_date"
	case errors.Is(err, academic.ErrParityMismatch):
		return "parity_mismatch"
	case errors.Is(err, academic.ErrUnknownWeek):
		return "unknown_week"
	default:
		return "other"
	}
}

// =============================================================================
// DECLARATIONS
// =============================================================================

// DeclarationRequest selects the calendar, semester and period of a
// declaration.
type DeclarationRequest struct {
	Faculty      string `json:"faculty"`
	UserID       string `json:"user_id"`
	AcademicYear string `json:"academic_year"`
	Semester     int    `json:"semester"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
}

func (r DeclarationRequest) keys() (academic.SemesterKey, academic.CalendarKey) {
	year := normalizeYear(r.AcademicYear)
	return academic.SemesterKey{Faculty: r.Faculty, AcademicYear: year, Semester: r.Semester},
		academic.CalendarKey{UserID: r.UserID, AcademicYear: year, Semester: r.Semester}
}

func (r DeclarationRequest) period() (academic.Period, error) {
	start, err := academic.ParseDate(r.StartDate)
	if err != nil {
		return academic.Period{}, fmt.Errorf("start_date: %w", academic.ErrInvalidPeriod)
	}
	end, err := academic.ParseDate(r.EndDate)
	if err != nil {
		return academic.Period{}, fmt.Errorf("end_date: %w", academic.ErrInvalidPeriod)
	}
	return academic.NewPeriod(start, end), nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// HolidayRequest creates a holiday.
type HolidayRequest struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response. Declaration carries the
// invalid preview when items are incomplete.
type ErrorResponse struct {
	Error       string                `json:"error"`
	Code        string                `json:"code,omitempty"`
	Details     any                   `json:"details,omitempty"`
	Declaration *academic.Declaration `json:"declaration,omitempty"`
}

// normalizeYear accepts "2024-2025" and "2024/2025".
func normalizeYear(s string) string {
	return strings.Replace(strings.TrimSpace(s), "-", "/", 1)
}
