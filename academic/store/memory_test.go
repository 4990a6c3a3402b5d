package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
	"github.com/ULBS/platacuora-timetech-sub000/academic/store"
)

var key = academic.SemesterKey{Faculty: "ETTI", AcademicYear: "2024/2025", Semester: 1}

func TestMemory_SemesterOptimisticVersioning(t *testing.T) {
	// GIVEN: A stored semester at version 1
	// WHEN: Two writers both save from version 1
	// THEN: The second one gets ErrConcurrentModification

	ctx := context.Background()
	m := store.NewMemory()

	saved, err := m.SaveSemester(ctx, academic.Semester{Key: key, StartDate: academic.MustParseDate("2024-10-01")})
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)

	first, err := m.SaveSemester(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Version)

	_, err = m.SaveSemester(ctx, saved)
	assert.ErrorIs(t, err, academic.ErrConcurrentModification)
	assert.True(t, academic.IsRetryable(err))
}

func TestMemory_GetSemesterNotFound(t *testing.T) {
	_, err := store.NewMemory().GetSemester(context.Background(), key)
	assert.ErrorIs(t, err, academic.ErrNotFound)
}

func TestMemory_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.SaveRecord(ctx, academic.TeachingHourRecord{ID: "r1", UserID: "prof-1"}))

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(st academic.Store) error {
		require.NoError(t, st.MarkProcessed(ctx, []string{"r1"}))
		require.NoError(t, st.SaveDeclaration(ctx, academic.Declaration{ID: "d1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	r, err := m.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, r.Processed)
	_, err = m.GetDeclaration(ctx, "d1")
	assert.ErrorIs(t, err, academic.ErrNotFound)
}

func TestMemory_RecordsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	ck := academic.CalendarKey{UserID: "prof-1", AcademicYear: "2024/2025", Semester: 1}

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, m.SaveRecord(ctx, academic.TeachingHourRecord{ID: id, UserID: "prof-1", AcademicYear: "2024/2025", Semester: 1}))
	}
	require.NoError(t, m.SaveRecord(ctx, academic.TeachingHourRecord{ID: "x", UserID: "prof-2", AcademicYear: "2024/2025", Semester: 1}))
	require.NoError(t, m.DeleteRecord(ctx, "a"))

	recs, err := m.ListRecords(ctx, ck)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
}

func TestMemory_HolidaysForYear(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.SaveHoliday(ctx, academic.Holiday{Date: academic.MustParseDate("2000-12-25"), Name: "Christmas", Recurring: true}))
	require.NoError(t, m.SaveHoliday(ctx, academic.Holiday{Date: academic.MustParseDate("2024-11-30"), Name: "St Andrew"}))
	require.NoError(t, m.SaveHoliday(ctx, academic.Holiday{Date: academic.MustParseDate("2024-11-30"), Name: "St Andrew"}))

	all, err := m.ListHolidays(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "upsert by date and name")

	hs, err := m.HolidaysForYear(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, "Christmas", hs[0].Name)
}
