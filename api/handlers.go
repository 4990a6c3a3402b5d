/*
handlers.go - HTTP API handlers for the calendar and declaration engine

PURPOSE:
  Exposes the calendar and declaration services via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Semesters:
    POST   /api/semesters                                 Generate weeks (?overwrite=true)
    GET    /api/semesters/{faculty}/{year}/{semester}     Semester with weeks
    POST   /api/semesters/{faculty}/{year}/{semester}/special-weeks

  Calendars:
    POST   /api/calendars/build                           Build a user's calendar
    GET    /api/calendars/{user}/{year}/{semester}        Stored calendar days
    POST   /api/calendars/{user}/{year}/{semester}/days   Manual day
    GET    /api/calendars/verify                          Verifier report

  Teaching hours:
    GET    /api/teaching-hours                            Records of a calendar
    POST   /api/teaching-hours                            Create or update a record
    DELETE /api/teaching-hours/{id}                       Delete an unprocessed record

  Declarations:
    POST   /api/declarations/preview                      Aggregate without saving
    POST   /api/declarations                              Finalize and lock records
    GET    /api/declarations                              Stored declarations of a calendar
    GET    /api/declarations/{id}

  Holidays:
    GET    /api/holidays, POST /api/holidays
    POST   /api/holidays/defaults                         Romanian legal holidays
    POST   /api/holidays/refresh                          Re-import the ICS feed
    DELETE /api/holidays/{id}

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Calendars, Declarations: domain services
  - Holidays: holiday store for the admin endpoints
  - Refresher: optional ICS import job

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (regeneration without overwrite, locked record, version)
  - 422: Calendar fails verification, no activity, incomplete items
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Put the server behind a gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
	"github.com/ULBS/platacuora-timetech-sub000/calendar"
	"github.com/ULBS/platacuora-timetech-sub000/declaration"
	"github.com/ULBS/platacuora-timetech-sub000/factory"
	"github.com/ULBS/platacuora-timetech-sub000/holiday"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Calendars    *calendar.Service
	Declarations *declaration.Service
	Holidays     academic.HolidayStore
	Refresher    *HolidayRefresher

	log *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over the two services and the holiday store.
func NewHandler(cals *calendar.Service, decls *declaration.Service, holidays academic.HolidayStore, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Calendars:    cals,
		Declarations: decls,
		Holidays:     holidays,
		log:          log,
	}
}

// Health reports whether the store answers.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Holidays.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// =============================================================================
// SEMESTER ENDPOINTS
// =============================================================================

// GenerateSemester generates (or regenerates) a semester's weeks and stores
// the special weeks sent along.
// POST /api/semesters?overwrite=true
func (h *Handler) GenerateSemester(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req factory.SemesterJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	def, specials, err := req.ToDefinition()
	if err != nil {
		h.writeServiceError(w, "Invalid semester", err)
		return
	}

	overwrite, _ := strconv.ParseBool(r.URL.Query().Get("overwrite"))
	sem, err := h.Calendars.GenerateWeeks(ctx, def, overwrite)
	if err != nil {
		h.writeServiceError(w, "Failed to generate weeks", err)
		return
	}
	for _, sw := range specials {
		if sem, err = h.Calendars.AddSpecialWeek(ctx, def.Key, sw); err != nil {
			h.writeServiceError(w, "Failed to save special week", err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, sem)
}

// GetSemester returns a semester with its weeks.
// GET /api/semesters/{faculty}/{year}/{semester}
func (h *Handler) GetSemester(w http.ResponseWriter, r *http.Request) {
	key, ok := semesterKeyFromPath(w, r)
	if !ok {
		return
	}
	sem, err := h.Calendars.Semester(r.Context(), key)
	if err != nil {
		h.writeServiceError(w, "Failed to get semester", err)
		return
	}
	writeJSON(w, http.StatusOK, sem)
}

// AddSpecialWeek adds or replaces a named special week.
// POST /api/semesters/{faculty}/{year}/{semester}/special-weeks
func (h *Handler) AddSpecialWeek(w http.ResponseWriter, r *http.Request) {
	key, ok := semesterKeyFromPath(w, r)
	if !ok {
		return
	}

	var req factory.SpecialWeekJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	sw, err := req.ToSpecialWeek()
	if err != nil {
		h.writeServiceError(w, "Invalid special week", err)
		return
	}

	sem, err := h.Calendars.AddSpecialWeek(r.Context(), key, sw)
	if err != nil {
		h.writeServiceError(w, "Failed to save special week", err)
		return
	}
	writeJSON(w, http.StatusCreated, sem)
}

// =============================================================================
// CALENDAR ENDPOINTS
// =============================================================================

// BuildCalendar builds a user's calendar from a faculty semester.
// POST /api/calendars/build
func (h *Handler) BuildCalendar(w http.ResponseWriter, r *http.Request) {
	var req BuildCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Faculty == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "faculty and user_id are required", nil)
		return
	}

	year := normalizeYear(req.AcademicYear)
	days, err := h.Calendars.BuildCalendar(r.Context(),
		academic.SemesterKey{Faculty: req.Faculty, AcademicYear: year, Semester: req.Semester},
		academic.CalendarKey{UserID: req.UserID, AcademicYear: year, Semester: req.Semester},
	)
	if err != nil {
		h.writeServiceError(w, "Failed to build calendar", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"days": days, "count": len(days)})
}

// GetCalendar returns a user's stored calendar.
// GET /api/calendars/{user}/{year}/{semester}
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	key, ok := calendarKeyFromPath(w, r)
	if !ok {
		return
	}
	days, err := h.Calendars.Calendar(r.Context(), key)
	if err != nil {
		h.writeServiceError(w, "Failed to get calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "count": len(days)})
}

// AddSpecialDay stores a manual calendar day.
// POST /api/calendars/{user}/{year}/{semester}/days
func (h *Handler) AddSpecialDay(w http.ResponseWriter, r *http.Request) {
	key, ok := calendarKeyFromPath(w, r)
	if !ok {
		return
	}

	var req SpecialDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := req.ToDay()
	if err != nil {
		h.writeServiceError(w, "Invalid day", err)
		return
	}

	saved, err := h.Calendars.AddSpecialDay(r.Context(), key, day)
	if err != nil {
		h.writeServiceError(w, "Failed to save day", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// VerifyCalendar runs the verifier on a stored calendar.
// GET /api/calendars/verify?faculty=&user_id=&academic_year=&semester=
func (h *Handler) VerifyCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	calKey, ok := calendarKeyFromQuery(w, r)
	if !ok {
		return
	}
	semKey := academic.SemesterKey{Faculty: q.Get("faculty"), AcademicYear: calKey.AcademicYear, Semester: calKey.Semester}

	report, err := h.Calendars.Verify(r.Context(), semKey, calKey)
	if err != nil {
		h.writeServiceError(w, "Failed to verify calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// =============================================================================
// TEACHING-HOUR ENDPOINTS
// =============================================================================

// ListRecords returns a calendar's records in the four-column form.
// GET /api/teaching-hours?user_id=&academic_year=&semester=
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	key, ok := calendarKeyFromQuery(w, r)
	if !ok {
		return
	}
	records, err := h.Declarations.Records(r.Context(), key)
	if err != nil {
		h.writeServiceError(w, "Failed to list records", err)
		return
	}

	dtos := make([]factory.RecordJSON, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, factory.RecordToJSON(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveRecord creates or updates a record.
// POST /api/teaching-hours
func (h *Handler) SaveRecord(w http.ResponseWriter, r *http.Request) {
	var req factory.RecordJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.AcademicYear = normalizeYear(req.AcademicYear)

	rec, err := req.ToRecord()
	if err != nil {
		h.writeServiceError(w, "Invalid record", err)
		return
	}
	saved, err := h.Declarations.SaveRecord(r.Context(), rec)
	if err != nil {
		h.writeServiceError(w, "Failed to save record", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.RecordToJSON(saved))
}

// DeleteRecord deletes an unprocessed record.
// DELETE /api/teaching-hours/{id}
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Declarations.DeleteRecord(r.Context(), id); err != nil {
		h.writeServiceError(w, "Failed to delete record", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// DECLARATION ENDPOINTS
// =============================================================================

// PreviewDeclaration aggregates a period without saving.
// POST /api/declarations/preview
func (h *Handler) PreviewDeclaration(w http.ResponseWriter, r *http.Request) {
	h.declare(w, r, false)
}

// FinalizeDeclaration saves a declaration and locks its records.
// POST /api/declarations
func (h *Handler) FinalizeDeclaration(w http.ResponseWriter, r *http.Request) {
	h.declare(w, r, true)
}

func (h *Handler) declare(w http.ResponseWriter, r *http.Request, finalize bool) {
	var req DeclarationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := req.period()
	if err != nil {
		h.writeServiceError(w, "Invalid period", err)
		return
	}
	semKey, calKey := req.keys()

	if !finalize {
		decl, err := h.Declarations.Preview(r.Context(), semKey, calKey, period)
		if err != nil {
			h.writeDeclarationError(w, "Failed to preview declaration", decl, err)
			return
		}
		writeJSON(w, http.StatusOK, decl)
		return
	}

	decl, err := h.Declarations.Finalize(r.Context(), semKey, calKey, period)
	if err != nil {
		h.writeDeclarationError(w, "Failed to finalize declaration", decl, err)
		return
	}
	writeJSON(w, http.StatusCreated, decl)
}

// ListDeclarations returns a calendar's stored declarations.
// GET /api/declarations?user_id=&academic_year=&semester=
func (h *Handler) ListDeclarations(w http.ResponseWriter, r *http.Request) {
	key, ok := calendarKeyFromQuery(w, r)
	if !ok {
		return
	}
	decls, err := h.Declarations.Declarations(r.Context(), key)
	if err != nil {
		h.writeServiceError(w, "Failed to list declarations", err)
		return
	}
	if decls == nil {
		decls = []academic.Declaration{}
	}
	writeJSON(w, http.StatusOK, decls)
}

// GetDeclaration returns one stored declaration.
// GET /api/declarations/{id}
func (h *Handler) GetDeclaration(w http.ResponseWriter, r *http.Request) {
	decl, err := h.Declarations.Declaration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get declaration", err)
		return
	}
	writeJSON(w, http.StatusOK, decl)
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// ListHolidays returns all holidays.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Holidays.ListHolidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get holidays", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"holidays": holidays})
}

// CreateHoliday creates a new holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Date == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Date and name are required", nil)
		return
	}
	date, err := academic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	hol := academic.Holiday{ID: uuid.New().String(), Date: date, Name: req.Name, Recurring: req.Recurring}
	if err := h.Holidays.SaveHoliday(r.Context(), hol); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "created", "holiday": hol})
}

// DeleteHoliday deletes a holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Holidays.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "Failed to delete holiday", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// AddDefaultHolidays stores the Romanian legal holidays of a year
// (?year=, default current year).
// POST /api/holidays/defaults
func (h *Handler) AddDefaultHolidays(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y < 1900 || y > 2200 {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}

	defaults := holiday.RomanianHolidays(year)
	for _, hol := range defaults {
		if err := h.Holidays.SaveHoliday(r.Context(), hol); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "created", "count": len(defaults), "year": year})
}

// RefreshHolidays runs the ICS import immediately.
// POST /api/holidays/refresh
func (h *Handler) RefreshHolidays(w http.ResponseWriter, r *http.Request) {
	if h.Refresher == nil {
		writeError(w, http.StatusNotFound, "No holiday feed configured", nil)
		return
	}
	n, err := h.Refresher.RunNow(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Holiday feed refresh failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "refreshed", "count": n})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDeclarationError keeps the invalid declaration in the body when the
// failure is incomplete items, so the preview can still be shown.
func (h *Handler) writeDeclarationError(w http.ResponseWriter, message string, decl academic.Declaration, err error) {
	status, resp := h.errorResponse(message, err)
	if errors.Is(err, academic.ErrIncompleteItem) {
		resp.Declaration = &decl
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps domain errors to a status code. Verifier and
// completeness failures carry structured details.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	status, resp := h.errorResponse(message, err)
	writeJSON(w, status, resp)
}

func (h *Handler) errorResponse(message string, err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: message, Details: err.Error()}

	var status int
	switch {
	case academic.IsNotFound(err):
		status, resp.Code = http.StatusNotFound, "not_found"
	case academic.IsConflict(err):
		status, resp.Code = http.StatusConflict, "conflict"
	case academic.IsUnprocessable(err):
		status, resp.Code = http.StatusUnprocessableEntity, "unprocessable"
	case academic.IsClientError(err):
		status, resp.Code = http.StatusBadRequest, "invalid"
	default:
		h.log.Error(message, zap.Error(err))
		status = http.StatusInternalServerError
	}

	var invalid *declaration.CalendarInvalidError
	var incomplete *academic.IncompleteItemError
	switch {
	case errors.As(err, &invalid):
		resp.Details = toConflictDTOs(invalid.Report.Conflicts)
	case errors.As(err, &incomplete):
		resp.Details = incomplete.Problems
	}
	return status, resp
}

func semesterKeyFromPath(w http.ResponseWriter, r *http.Request) (academic.SemesterKey, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "semester"))
	if err != nil || (n != 1 && n != 2) {
		writeError(w, http.StatusBadRequest, "semester must be 1 or 2", err)
		return academic.SemesterKey{}, false
	}
	return academic.SemesterKey{
		Faculty:      chi.URLParam(r, "faculty"),
		AcademicYear: normalizeYear(chi.URLParam(r, "year")),
		Semester:     n,
	}, true
}

func calendarKeyFromPath(w http.ResponseWriter, r *http.Request) (academic.CalendarKey, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "semester"))
	if err != nil || (n != 1 && n != 2) {
		writeError(w, http.StatusBadRequest, "semester must be 1 or 2", err)
		return academic.CalendarKey{}, false
	}
	return academic.CalendarKey{
		UserID:       chi.URLParam(r, "user"),
		AcademicYear: normalizeYear(chi.URLParam(r, "year")),
		Semester:     n,
	}, true
}

func calendarKeyFromQuery(w http.ResponseWriter, r *http.Request) (academic.CalendarKey, bool) {
	q := r.URL.Query()
	n, err := strconv.Atoi(q.Get("semester"))
	if err != nil || (n != 1 && n != 2) {
		writeError(w, http.StatusBadRequest, "semester must be 1 or 2", err)
		return academic.CalendarKey{}, false
	}
	if q.Get("user_id") == "" || q.Get("academic_year") == "" {
		writeError(w, http.StatusBadRequest, "user_id and academic_year are required", nil)
		return academic.CalendarKey{}, false
	}
	return academic.CalendarKey{
		UserID:       q.Get("user_id"),
		AcademicYear: normalizeYear(q.Get("academic_year")),
		Semester:     n,
	}, true
}
