/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario loads and produces the declaration a user of
	the demo would expect:
	- Semesters and calendars are built
	- Records land on the right dates
	- Finalizing locks the records and the declared period

These tests double as end-to-end tests of the HTTP surface.
*/
package api

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

func TestScenarios_AllLoad(t *testing.T) {
	_, router := setupTestHandler(t)

	list := decode[[]ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios", nil))
	if len(list) != len(scenarios) {
		t.Fatalf("Expected %d scenarios, got %d", len(scenarios), len(list))
	}
	for _, s := range list {
		rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: s.ID})
		expectStatus(t, rec, http.StatusOK)
	}

	current := decode[ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios/current", nil))
	if current.ID != list[len(list)-1].ID {
		t.Errorf("Expected current scenario %s, got %s", list[len(list)-1].ID, current.ID)
	}

	expectStatus(t, do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"}), http.StatusBadRequest)
}

func TestScenario_OctoberDeclaration(t *testing.T) {
	// GIVEN: The etti-2024-s1 scenario (week S01 starts Monday 30 Sep, odd)
	// WHEN: October is previewed
	// THEN: Odd Tuesdays 1, 15, 29 carry the course, even Thursdays 10, 24
	//       the lab, every Monday from 7 Oct the seminar (14h in 9 items)
	_, router := setupTestHandler(t)
	expectStatus(t, do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "etti-2024-s1"}), http.StatusOK)

	october := DeclarationRequest{
		Faculty: "ETTI", UserID: DemoUser, AcademicYear: "2024/2025", Semester: 1,
		StartDate: "2024-10-01", EndDate: "2024-10-31",
	}

	rec := do(t, router, http.MethodPost, "/api/declarations/preview", october)
	expectStatus(t, rec, http.StatusOK)
	decl := decode[academic.Declaration](t, rec)

	if len(decl.Items) != 9 {
		t.Fatalf("Expected 9 items, got %d", len(decl.Items))
	}
	if !decl.Summary.TotalHours.Equal(decimal.NewFromInt(14)) {
		t.Errorf("Expected 14 total hours, got %s", decl.Summary.TotalHours)
	}
	if decl.Summary.DistinctDays != 9 {
		t.Errorf("Expected 9 distinct days, got %d", decl.Summary.DistinctDays)
	}
	if decl.Items[0].Date.String() != "2024-10-01" || decl.Items[0].DisciplineName != "Algorithms" {
		t.Errorf("Expected the Algorithms course on 2024-10-01 first, got %s %s", decl.Items[0].Date, decl.Items[0].DisciplineName)
	}
	// 3×2h course at 2, 2×2h lab at 1, 4×1h LE seminar at 1.25
	if !decl.Summary.WeightedHours.Equal(decimal.NewFromInt(21)) {
		t.Errorf("Expected 21 weighted hours, got %s", decl.Summary.WeightedHours)
	}

	// Finalize locks the records
	rec = do(t, router, http.MethodPost, "/api/declarations", october)
	expectStatus(t, rec, http.StatusCreated)
	final := decode[academic.Declaration](t, rec)
	if final.ID == "" || len(final.RecordIDs) != 3 {
		t.Fatalf("Expected a stored declaration over 3 records, got id=%q records=%v", final.ID, final.RecordIDs)
	}

	expectStatus(t, do(t, router, http.MethodGet, "/api/declarations/"+final.ID, nil), http.StatusOK)
	stored := decode[[]academic.Declaration](t, do(t, router, http.MethodGet,
		"/api/declarations?user_id="+DemoUser+"&academic_year=2024-2025&semester=1", nil))
	if len(stored) != 1 {
		t.Errorf("Expected 1 stored declaration, got %d", len(stored))
	}

	expectStatus(t, do(t, router, http.MethodDelete, "/api/teaching-hours/demo-s1-alg-course", nil), http.StatusConflict)

	// Locked records still recur: October can be previewed but not declared twice
	expectStatus(t, do(t, router, http.MethodPost, "/api/declarations/preview", october), http.StatusOK)
	rec = do(t, router, http.MethodPost, "/api/declarations", october)
	expectStatus(t, rec, http.StatusConflict)
	if e := decode[ErrorResponse](t, rec); e.Code != "conflict" {
		t.Errorf("Expected conflict code, got %q", e.Code)
	}

	// November: odd Tuesdays 12, 26, even Thursdays 7, 21, four Mondays (12h)
	november := october
	november.StartDate, november.EndDate = "2024-11-01", "2024-11-30"
	rec = do(t, router, http.MethodPost, "/api/declarations", november)
	expectStatus(t, rec, http.StatusCreated)
	nov := decode[academic.Declaration](t, rec)
	if len(nov.Items) != 8 || !nov.Summary.TotalHours.Equal(decimal.NewFromInt(12)) {
		t.Errorf("Expected 8 items and 12 hours in November, got %d items and %s", len(nov.Items), nov.Summary.TotalHours)
	}

	// Reloading the scenario tries to rewrite locked records
	expectStatus(t, do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "etti-2024-s1"}), http.StatusConflict)
}

func TestScenario_WinterBreakHasNoItems(t *testing.T) {
	_, router := setupTestHandler(t)
	expectStatus(t, do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "etti-2024-s1"}), http.StatusOK)

	rec := do(t, router, http.MethodPost, "/api/declarations/preview", DeclarationRequest{
		Faculty: "ETTI", UserID: DemoUser, AcademicYear: "2024/2025", Semester: 1,
		StartDate: "2024-12-23", EndDate: "2025-01-05",
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
}
