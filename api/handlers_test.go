/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Error mapping (400/404/409/422)
- Semester generation, calendar verification, manual days
- Record validation and locking
- Holiday administration
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
	"github.com/ULBS/platacuora-timetech-sub000/calendar"
	"github.com/ULBS/platacuora-timetech-sub000/declaration"
	"github.com/ULBS/platacuora-timetech-sub000/factory"
	"github.com/ULBS/platacuora-timetech-sub000/store/sqlite"
)

func setupTestHandler(t *testing.T) (*Handler, *chi.Mux) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	coefficients, err := factory.ParseCoefficients(factory.StandardCoefficientsJSON())
	if err != nil {
		t.Fatalf("Failed to parse coefficients: %v", err)
	}

	log := zap.NewNop()
	h := NewHandler(
		calendar.NewService(store, store, log, 0),
		declaration.NewService(store, coefficients, log, 0),
		store,
		log,
	)
	return h, NewRouter(h, nil)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

const semesterBody = `{
	"faculty": "ETTI",
	"academic_year": "2024/2025",
	"semester": 1,
	"start_date": "2024-09-30",
	"end_date": "2024-10-27",
	"starts_odd": true
}`

func TestHealth(t *testing.T) {
	_, router := setupTestHandler(t)
	expectStatus(t, do(t, router, http.MethodGet, "/health", nil), http.StatusOK)
}

func TestGenerateSemester_OverwriteRequired(t *testing.T) {
	// GIVEN: A generated semester
	// WHEN: It is generated again without overwrite
	// THEN: 409, and with overwrite=true it succeeds at the next version
	_, router := setupTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/semesters", semesterBody)
	expectStatus(t, rec, http.StatusCreated)
	sem := decode[map[string]any](t, rec)
	if weeks := sem["weeks"].([]any); len(weeks) != 4 {
		t.Errorf("Expected 4 weeks, got %d", len(weeks))
	}

	rec = do(t, router, http.MethodPost, "/api/semesters", semesterBody)
	expectStatus(t, rec, http.StatusConflict)
	if resp := decode[ErrorResponse](t, rec); resp.Code != "conflict" {
		t.Errorf("Expected code conflict, got %q", resp.Code)
	}

	rec = do(t, router, http.MethodPost, "/api/semesters?overwrite=true", semesterBody)
	expectStatus(t, rec, http.StatusCreated)
	if v := decode[map[string]any](t, rec)["version"]; v != float64(2) {
		t.Errorf("Expected version 2, got %v", v)
	}
}

func TestGenerateSemester_InvalidRange(t *testing.T) {
	_, router := setupTestHandler(t)
	rec := do(t, router, http.MethodPost, "/api/semesters", `{
		"faculty": "ETTI", "academic_year": "2024/2025", "semester": 1,
		"start_date": "2024-10-27", "end_date": "2024-09-30"
	}`)
	expectStatus(t, rec, http.StatusBadRequest)

	expectStatus(t, do(t, router, http.MethodPost, "/api/semesters", `{`), http.StatusBadRequest)
}

func TestGetSemester(t *testing.T) {
	_, router := setupTestHandler(t)

	expectStatus(t, do(t, router, http.MethodGet, "/api/semesters/ETTI/2024-2025/1", nil), http.StatusNotFound)
	expectStatus(t, do(t, router, http.MethodGet, "/api/semesters/ETTI/2024-2025/3", nil), http.StatusBadRequest)

	expectStatus(t, do(t, router, http.MethodPost, "/api/semesters", semesterBody), http.StatusCreated)
	rec := do(t, router, http.MethodGet, "/api/semesters/ETTI/2024-2025/1", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, router, http.MethodPost, "/api/semesters/ETTI/2024-2025/1/special-weeks",
		`{"name": "Exam week", "start_date": "2024-10-28", "end_date": "2024-11-03", "week_type": "odd"}`)
	expectStatus(t, rec, http.StatusCreated)
	sem := decode[map[string]any](t, rec)
	if specials := sem["special_weeks"].([]any); len(specials) != 1 {
		t.Errorf("Expected 1 special week, got %d", len(specials))
	}
}

func TestVerifyCalendar_ManualDayBreaksParity(t *testing.T) {
	// GIVEN: A built calendar
	// WHEN: A manual day claims the wrong parity for its week
	// THEN: Verification reports a parity mismatch and previews are refused with 422
	_, router := setupTestHandler(t)

	expectStatus(t, do(t, router, http.MethodPost, "/api/semesters", semesterBody), http.StatusCreated)
	rec := do(t, router, http.MethodPost, "/api/calendars/build", BuildCalendarRequest{
		Faculty: "ETTI", UserID: "prof-1", AcademicYear: "2024/2025", Semester: 1,
	})
	expectStatus(t, rec, http.StatusCreated)
	if n := decode[map[string]any](t, rec)["count"]; n != float64(28) {
		t.Errorf("Expected 28 days, got %v", n)
	}

	verifyPath := "/api/calendars/verify?faculty=ETTI&user_id=prof-1&academic_year=2024-2025&semester=1"
	report := decode[VerifyReportDTO](t, do(t, router, http.MethodGet, verifyPath, nil))
	if !report.Valid {
		t.Fatalf("Expected a valid calendar, got %+v", report.Conflicts)
	}

	rec = do(t, router, http.MethodPost, "/api/calendars/prof-1/2024-2025/1/days", SpecialDayRequest{
		Date: "2024-10-02", IsWorkingDay: true, OddEven: "even", SemesterWeek: "S01",
	})
	expectStatus(t, rec, http.StatusCreated)

	report = decode[VerifyReportDTO](t, do(t, router, http.MethodGet, verifyPath, nil))
	if report.Valid || len(report.Conflicts) != 1 {
		t.Fatalf("Expected one conflict, got %+v", report)
	}
	if report.Conflicts[0].Kind != "parity_mismatch" || report.Conflicts[0].Date != "2024-10-02" {
		t.Errorf("Unexpected conflict %+v", report.Conflicts[0])
	}

	rec = do(t, router, http.MethodPost, "/api/teaching-hours", factory.RecordJSON{
		UserID: "prof-1", AcademicYear: "2024/2025", Semester: 1,
		DayOfWeek: "Tuesday", ActivityType: "LR", CourseHours: 2, DisciplineName: "Algorithms",
	})
	expectStatus(t, rec, http.StatusCreated)

	rec = do(t, router, http.MethodPost, "/api/declarations/preview", DeclarationRequest{
		Faculty: "ETTI", UserID: "prof-1", AcademicYear: "2024/2025", Semester: 1,
		StartDate: "2024-10-01", EndDate: "2024-10-20",
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	resp := decode[ErrorResponse](t, rec)
	if resp.Code != "unprocessable" {
		t.Errorf("Expected code unprocessable, got %q", resp.Code)
	}
	if details, ok := resp.Details.([]any); !ok || len(details) != 1 {
		t.Errorf("Expected the conflict list as details, got %v", resp.Details)
	}
}

func TestPreview_IncompleteItemsKeepDeclaration(t *testing.T) {
	// GIVEN: A record stored without a discipline name (bypassing validation)
	// WHEN: Previewing and finalizing October 1-20
	// THEN: Both answer 422 with the problems and the invalid declaration
	h, router := setupTestHandler(t)

	expectStatus(t, do(t, router, http.MethodPost, "/api/semesters", semesterBody), http.StatusCreated)
	expectStatus(t, do(t, router, http.MethodPost, "/api/calendars/build", BuildCalendarRequest{
		Faculty: "ETTI", UserID: "prof-1", AcademicYear: "2024/2025", Semester: 1,
	}), http.StatusCreated)

	st := h.Holidays.(*sqlite.Store)
	if err := st.SaveRecord(context.Background(), academic.TeachingHourRecord{
		ID: "no-name", UserID: "prof-1", AcademicYear: "2024/2025", Semester: 1,
		DayOfWeek: time.Tuesday, ActivityType: academic.ActivityLR,
		Kind: academic.KindCourse, Hours: decimal.NewFromInt(2),
	}); err != nil {
		t.Fatalf("Failed to store record: %v", err)
	}

	req := DeclarationRequest{
		Faculty: "ETTI", UserID: "prof-1", AcademicYear: "2024/2025", Semester: 1,
		StartDate: "2024-10-01", EndDate: "2024-10-20",
	}
	for _, path := range []string{"/api/declarations/preview", "/api/declarations"} {
		rec := do(t, router, http.MethodPost, path, req)
		expectStatus(t, rec, http.StatusUnprocessableEntity)

		resp := decode[ErrorResponse](t, rec)
		if resp.Declaration == nil {
			t.Fatalf("%s: expected the invalid declaration in the body", path)
		}
		if resp.Declaration.Valid || len(resp.Declaration.Items) != 3 {
			t.Errorf("%s: expected 3 items in an invalid declaration, got valid=%v items=%d",
				path, resp.Declaration.Valid, len(resp.Declaration.Items))
		}
		if problems, ok := resp.Details.([]any); !ok || len(problems) != 3 {
			t.Errorf("%s: expected 3 item problems, got %v", path, resp.Details)
		}
	}

	stored := decode[[]academic.Declaration](t, do(t, router, http.MethodGet,
		"/api/declarations?user_id=prof-1&academic_year=2024-2025&semester=1", nil))
	if len(stored) != 0 {
		t.Errorf("Expected nothing stored, got %d declarations", len(stored))
	}
}

func TestAddSpecialDay_Invalid(t *testing.T) {
	_, router := setupTestHandler(t)
	rec := do(t, router, http.MethodPost, "/api/calendars/prof-1/2024-2025/1/days", SpecialDayRequest{Date: "tomorrow"})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = do(t, router, http.MethodPost, "/api/calendars/prof-1/2024-2025/1/days", SpecialDayRequest{Date: "2024-10-02", OddEven: "sometimes"})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestSaveRecord_Validation(t *testing.T) {
	_, router := setupTestHandler(t)

	// Two hour columns in one record
	rec := do(t, router, http.MethodPost, "/api/teaching-hours", factory.RecordJSON{
		UserID: "prof-1", AcademicYear: "2024/2025", Semester: 1,
		DayOfWeek: "Monday", ActivityType: "LR", CourseHours: 2, LabHours: 2, DisciplineName: "Algorithms",
	})
	expectStatus(t, rec, http.StatusBadRequest)

	// Special record without a special week
	rec = do(t, router, http.MethodPost, "/api/teaching-hours", factory.RecordJSON{
		UserID: "prof-1", AcademicYear: "2024/2025", Semester: 1, IsSpecial: true,
		DayOfWeek: "Monday", ActivityType: "LR", CourseHours: 2, DisciplineName: "Algorithms",
	})
	expectStatus(t, rec, http.StatusBadRequest)

	expectStatus(t, do(t, router, http.MethodDelete, "/api/teaching-hours/missing", nil), http.StatusNotFound)
	expectStatus(t, do(t, router, http.MethodGet, "/api/teaching-hours?user_id=prof-1&academic_year=2024-2025", nil), http.StatusBadRequest)
}

func TestPreview_PeriodBound(t *testing.T) {
	_, router := setupTestHandler(t)
	rec := do(t, router, http.MethodPost, "/api/declarations/preview", DeclarationRequest{
		Faculty: "ETTI", UserID: "prof-1", AcademicYear: "2024/2025", Semester: 1,
		StartDate: "2024-09-30", EndDate: "2025-06-30",
	})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = do(t, router, http.MethodPost, "/api/declarations/preview", DeclarationRequest{
		Faculty: "ETTI", UserID: "prof-1", AcademicYear: "2024/2025", Semester: 1,
		StartDate: "2024-10-31", EndDate: "2024-10-01",
	})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestHolidays(t *testing.T) {
	// GIVEN: An empty holiday table
	// WHEN: The Romanian defaults for 2024 are added twice and one holiday is created
	// THEN: The table holds each default once plus the created one
	_, router := setupTestHandler(t)

	rec := do(t, router, http.MethodPost, "/api/holidays/defaults?year=2024", nil)
	expectStatus(t, rec, http.StatusCreated)
	count := decode[map[string]any](t, rec)["count"].(float64)
	expectStatus(t, do(t, router, http.MethodPost, "/api/holidays/defaults?year=2024", nil), http.StatusCreated)

	rec = do(t, router, http.MethodPost, "/api/holidays", HolidayRequest{Date: "2024-11-15", Name: "Ziua Universității"})
	expectStatus(t, rec, http.StatusCreated)

	type listResponse struct {
		Holidays []struct {
			ID   string `json:"id"`
			Date string `json:"date"`
			Name string `json:"name"`
		} `json:"holidays"`
	}
	list := decode[listResponse](t, do(t, router, http.MethodGet, "/api/holidays", nil))
	if len(list.Holidays) != int(count)+1 {
		t.Fatalf("Expected %d holidays, got %d", int(count)+1, len(list.Holidays))
	}

	expectStatus(t, do(t, router, http.MethodDelete, "/api/holidays/"+list.Holidays[0].ID, nil), http.StatusOK)
	expectStatus(t, do(t, router, http.MethodDelete, "/api/holidays/"+list.Holidays[0].ID, nil), http.StatusNotFound)

	expectStatus(t, do(t, router, http.MethodPost, "/api/holidays", HolidayRequest{Name: "No date"}), http.StatusBadRequest)
	expectStatus(t, do(t, router, http.MethodPost, "/api/holidays/defaults?year=abc", nil), http.StatusBadRequest)
	expectStatus(t, do(t, router, http.MethodPost, "/api/holidays/refresh", nil), http.StatusNotFound)
}
