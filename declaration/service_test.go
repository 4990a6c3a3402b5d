package declaration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
	"github.com/ULBS/platacuora-timetech-sub000/academic/store"
	"github.com/ULBS/platacuora-timetech-sub000/calendar"
	"github.com/ULBS/platacuora-timetech-sub000/declaration"
)

var (
	semKey = academic.SemesterKey{Faculty: "ETTI", AcademicYear: "2024/2025", Semester: 1}
	calKey = academic.CalendarKey{UserID: "prof-1", AcademicYear: "2024/2025", Semester: 1}
)

// setup generates a 3-week semester from 2024-10-01 and builds prof-1's calendar.
func setup(t *testing.T) (*store.Memory, *calendar.Service, *declaration.Service) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	cal := calendar.NewService(mem, mem, zap.NewNop(), 0)
	_, err := cal.GenerateWeeks(ctx, calendar.SemesterDefinition{
		Key:       semKey,
		StartDate: d("2024-10-01"),
		EndDate:   d("2024-10-21"),
		StartsOdd: true,
	}, false)
	require.NoError(t, err)
	_, err = cal.BuildCalendar(ctx, semKey, calKey)
	require.NoError(t, err)

	return mem, cal, declaration.NewService(mem, nil, zap.NewNop(), 0)
}

func TestService_PreviewAndFinalize(t *testing.T) {
	// GIVEN: A built calendar and one Tuesday/Odd course record
	// WHEN: Finalizing the declaration
	// THEN: It is stored, the record is locked and further edits fail

	ctx := context.Background()
	mem, _, svc := setup(t)

	rec, err := svc.SaveRecord(ctx, record("", time.Tuesday, academic.WeekOdd, academic.KindCourse, 2))
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	period := academic.NewPeriod(d("2024-10-01"), d("2024-10-21"))
	preview, err := svc.Preview(ctx, semKey, calKey, period)
	require.NoError(t, err)
	assert.Len(t, preview.Items, 2)
	assert.Empty(t, preview.ID)

	decl, err := svc.Finalize(ctx, semKey, calKey, period)
	require.NoError(t, err)
	require.NotEmpty(t, decl.ID)
	assert.Equal(t, preview.Items, decl.Items)

	stored, err := mem.GetDeclaration(ctx, decl.ID)
	require.NoError(t, err)
	assert.True(t, stored.Valid)

	locked, err := mem.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, locked.Processed)

	_, err = svc.SaveRecord(ctx, rec)
	assert.ErrorIs(t, err, academic.ErrRecordLocked)
	assert.ErrorIs(t, svc.DeleteRecord(ctx, rec.ID), academic.ErrRecordLocked)

	// a locked record still recurs: the preview is unchanged
	again, err := svc.Preview(ctx, semKey, calKey, period)
	require.NoError(t, err)
	assert.Equal(t, preview.Items, again.Items)
}

// setupTwoMonths generates a semester from 2024-10-01 to 2024-11-30 and
// stores an every-week Tuesday course.
func setupTwoMonths(t *testing.T) (*store.Memory, *calendar.Service, *declaration.Service) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	cal := calendar.NewService(mem, mem, zap.NewNop(), 0)
	_, err := cal.GenerateWeeks(ctx, calendar.SemesterDefinition{
		Key:       semKey,
		StartDate: d("2024-10-01"),
		EndDate:   d("2024-11-30"),
		StartsOdd: true,
	}, false)
	require.NoError(t, err)
	_, err = cal.BuildCalendar(ctx, semKey, calKey)
	require.NoError(t, err)

	svc := declaration.NewService(mem, nil, zap.NewNop(), 0)
	_, err = svc.SaveRecord(ctx, record("", time.Tuesday, academic.WeekNone, academic.KindCourse, 2))
	require.NoError(t, err)
	return mem, cal, svc
}

func TestService_FinalizeMonthByMonth(t *testing.T) {
	// GIVEN: An every-week Tuesday course and a finalized October
	// WHEN: November is previewed and finalized
	// THEN: The locked record still recurs: 4 Tuesdays, 8 hours, 2 declarations stored

	ctx := context.Background()
	mem, _, svc := setupTwoMonths(t)
	october := academic.NewPeriod(d("2024-10-01"), d("2024-10-31"))
	november := academic.NewPeriod(d("2024-11-01"), d("2024-11-30"))

	oct, err := svc.Finalize(ctx, semKey, calKey, october)
	require.NoError(t, err)
	assert.Len(t, oct.Items, 5)

	preview, err := svc.Preview(ctx, semKey, calKey, november)
	require.NoError(t, err)
	require.Len(t, preview.Items, 4)
	assert.Equal(t, "2024-11-05", preview.Items[0].Date.String())
	assert.True(t, preview.Summary.TotalHours.Equal(hours(8)))

	nov, err := svc.Finalize(ctx, semKey, calKey, november)
	require.NoError(t, err)
	assert.Equal(t, oct.RecordIDs, nov.RecordIDs)

	stored, err := mem.ListDeclarations(ctx, calKey)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestService_FinalizeRefusesOverlappingPeriod(t *testing.T) {
	// GIVEN: A finalized October
	// WHEN: October again, or a period straddling 31 October, is finalized
	// THEN: Both are refused with the stored declaration's id and nothing is saved

	ctx := context.Background()
	mem, _, svc := setupTwoMonths(t)
	october := academic.NewPeriod(d("2024-10-01"), d("2024-10-31"))

	first, err := svc.Finalize(ctx, semKey, calKey, october)
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, semKey, calKey, october)
	var declared *academic.AlreadyDeclaredError
	require.ErrorAs(t, err, &declared)
	assert.Equal(t, first.ID, declared.DeclarationID)
	assert.True(t, academic.IsConflict(err))

	_, err = svc.Finalize(ctx, semKey, calKey, academic.NewPeriod(d("2024-10-31"), d("2024-11-15")))
	assert.ErrorIs(t, err, academic.ErrAlreadyDeclared)

	// previews stay available for declared periods
	_, err = svc.Preview(ctx, semKey, calKey, october)
	assert.NoError(t, err)

	stored, err := mem.ListDeclarations(ctx, calKey)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestService_FinalizeRefusesInvalidDeclaration(t *testing.T) {
	ctx := context.Background()
	mem, _, svc := setup(t)

	rec, err := svc.SaveRecord(ctx, record("", time.Saturday, academic.WeekNone, academic.KindCourse, 2))
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, semKey, calKey, academic.NewPeriod(d("2024-10-01"), d("2024-10-21")))
	assert.ErrorIs(t, err, academic.ErrNoActivity)

	decls, err := mem.ListDeclarations(ctx, calKey)
	require.NoError(t, err)
	assert.Empty(t, decls)

	unlocked, err := mem.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, unlocked.Processed)
}

func TestService_PreviewRejectsLongPeriod(t *testing.T) {
	_, _, svc := setup(t)

	_, err := svc.Preview(context.Background(), semKey, calKey, academic.NewPeriod(d("2024-01-01"), d("2024-12-31")))
	var tooLong *academic.PeriodTooLongError
	require.ErrorAs(t, err, &tooLong)
	assert.Equal(t, declaration.DefaultMaxPeriodDays, tooLong.MaxDays)
}

func TestService_PreviewGatesOnVerifier(t *testing.T) {
	// GIVEN: A calendar day whose parity was edited to disagree with its week
	// WHEN: Previewing
	// THEN: ErrCalendarInvalid carrying the parity conflict

	ctx := context.Background()
	mem, _, svc := setup(t)
	_, err := svc.SaveRecord(ctx, record("", time.Tuesday, academic.WeekOdd, academic.KindCourse, 2))
	require.NoError(t, err)

	require.NoError(t, mem.SaveDay(ctx, calKey, academic.CalendarDay{
		Date:         d("2024-10-08"),
		IsWorkingDay: true,
		OddEven:      academic.WeekOdd,
		SemesterWeek: "S02",
	}))

	_, err = svc.Preview(ctx, semKey, calKey, academic.NewPeriod(d("2024-10-01"), d("2024-10-21")))
	assert.ErrorIs(t, err, academic.ErrCalendarInvalid)
	assert.ErrorIs(t, err, academic.ErrParityMismatch)

	var invalid *declaration.CalendarInvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Len(t, invalid.Report.Conflicts, 1)
}

func TestService_RebuildMarksDeclarationsStale(t *testing.T) {
	ctx := context.Background()
	mem, cal, svc := setup(t)
	_, err := svc.SaveRecord(ctx, record("", time.Tuesday, academic.WeekOdd, academic.KindCourse, 2))
	require.NoError(t, err)

	decl, err := svc.Finalize(ctx, semKey, calKey, academic.NewPeriod(d("2024-10-01"), d("2024-10-21")))
	require.NoError(t, err)
	assert.False(t, decl.Stale)

	_, err = cal.BuildCalendar(ctx, semKey, calKey)
	require.NoError(t, err)

	stored, err := mem.GetDeclaration(ctx, decl.ID)
	require.NoError(t, err)
	assert.True(t, stored.Stale)

	// a stale declaration no longer blocks its period
	redo, err := svc.Finalize(ctx, semKey, calKey, academic.NewPeriod(d("2024-10-01"), d("2024-10-21")))
	require.NoError(t, err)
	assert.NotEqual(t, decl.ID, redo.ID)
}

func TestService_SaveRecordValidates(t *testing.T) {
	_, _, svc := setup(t)
	r := record("", time.Monday, academic.WeekOdd, academic.KindCourse, 0)

	_, err := svc.SaveRecord(context.Background(), r)
	assert.ErrorIs(t, err, academic.ErrInvalidRecord)
}

func TestService_DeleteUnknownRecord(t *testing.T) {
	_, _, svc := setup(t)
	assert.ErrorIs(t, svc.DeleteRecord(context.Background(), "missing"), academic.ErrNotFound)
}

func TestService_PreviewWithoutCalendar(t *testing.T) {
	_, _, svc := setup(t)
	other := academic.CalendarKey{UserID: "prof-2", AcademicYear: "2024/2025", Semester: 1}

	_, err := svc.Preview(context.Background(), semKey, other, academic.NewPeriod(d("2024-10-01"), d("2024-10-21")))
	assert.ErrorIs(t, err, academic.ErrNotFound)
}
