/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with a realistic
	semester, a built calendar and recurring teaching-hour records, ready
	for a declaration preview.

AVAILABLE SCENARIOS:

	etti-2024-s1:     First semester 2024/2025, odd start, winter break
	master-2025-s2:   Second semester, extended mode, Easter break

HOW SCENARIOS WORK:
 1. Parse the semester definition via factory
 2. Generate weeks with overwrite, store the special weeks
 3. Build the demo user's calendar
 4. Save the teaching-hour records (four-column JSON form)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "etti-2024-s1"}

NOTE:

	Scenarios overwrite the semester and calendar they touch. Records of
	the demo user that a finalized declaration already locked make the
	load fail with 409.

SEE ALSO:
  - factory/definitions.go: Semester and record JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
	"github.com/ULBS/platacuora-timetech-sub000/factory"
)

// DemoUser owns the calendars and records created by scenarios.
const DemoUser = "prof-demo"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	semester string
	records  []string
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "etti-2024-s1",
			Name:        "ETTI 2024/2025, semester 1",
			Description: "14 weeks from 30 Sep, odd first week, two-week winter break",
		},
		semester: `{
			"faculty": "ETTI",
			"academic_year": "2024/2025",
			"semester": 1,
			"start_date": "2024-09-30",
			"end_date": "2025-01-19",
			"starts_odd": true,
			"special_weeks": [
				{"name": "Winter break", "start_date": "2024-12-23", "end_date": "2025-01-05"}
			]
		}`,
		records: []string{
			`{"id": "demo-s1-alg-course", "user_id": "prof-demo", "academic_year": "2024/2025", "semester": 1,
			  "day_of_week": "Tuesday", "odd_even": "odd", "activity_type": "LR", "course_hours": 2,
			  "discipline_name": "Algorithms", "group": "221", "post_number": "12", "post_grade": "Lecturer"}`,
			`{"id": "demo-s1-alg-lab", "user_id": "prof-demo", "academic_year": "2024/2025", "semester": 1,
			  "day_of_week": "Thursday", "odd_even": "even", "activity_type": "LR", "lab_hours": 2,
			  "discipline_name": "Algorithms", "group": "221", "post_number": "12", "post_grade": "Lecturer"}`,
			`{"id": "demo-s1-db-seminar", "user_id": "prof-demo", "academic_year": "2024/2025", "semester": 1,
			  "day_of_week": "Monday", "activity_type": "LE", "seminar_hours": 1,
			  "discipline_name": "Databases", "group": "231E", "post_number": "12", "post_grade": "Lecturer"}`,
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "master-2025-s2",
			Name:        "Master 2024/2025, semester 2 (extended)",
			Description: "Extended mode adds two weeks after the last regular week; Easter break",
		},
		semester: `{
			"faculty": "ETTI",
			"academic_year": "2024/2025",
			"semester": 2,
			"start_date": "2025-02-24",
			"end_date": "2025-06-08",
			"starts_odd": true,
			"extended": true,
			"special_weeks": [
				{"name": "Easter break", "start_date": "2025-04-18", "end_date": "2025-04-27"}
			]
		}`,
		records: []string{
			`{"id": "demo-s2-ml-course", "user_id": "prof-demo", "academic_year": "2024/2025", "semester": 2,
			  "day_of_week": "Wednesday", "activity_type": "ME", "course_hours": 2,
			  "discipline_name": "Machine Learning", "group": "M1", "post_number": "12", "post_grade": "Lecturer"}`,
			`{"id": "demo-s2-ml-project", "user_id": "prof-demo", "academic_year": "2024/2025", "semester": 2,
			  "day_of_week": "Friday", "odd_even": "even", "activity_type": "MR", "project_hours": 1.5,
			  "discipline_name": "Machine Learning", "group": "M1", "post_number": "12", "post_grade": "Lecturer"}`,
		},
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var found *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			found = &scenarios[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.loadScenario(r.Context(), *found); err != nil {
		h.writeServiceError(w, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADER
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	def, specials, err := factory.ParseSemester(s.semester)
	if err != nil {
		return err
	}
	if _, err := h.Calendars.GenerateWeeks(ctx, def, true); err != nil {
		return err
	}
	for _, sw := range specials {
		if _, err := h.Calendars.AddSpecialWeek(ctx, def.Key, sw); err != nil {
			return err
		}
	}

	calKey := academic.CalendarKey{UserID: DemoUser, AcademicYear: def.Key.AcademicYear, Semester: def.Key.Semester}
	if _, err := h.Calendars.BuildCalendar(ctx, def.Key, calKey); err != nil {
		return err
	}

	for _, js := range s.records {
		rec, err := factory.ParseRecord(js)
		if err != nil {
			return err
		}
		if _, err := h.Declarations.SaveRecord(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
