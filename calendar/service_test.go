package calendar_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
	"github.com/ULBS/platacuora-timetech-sub000/academic/store"
	"github.com/ULBS/platacuora-timetech-sub000/calendar"
)

var semKey = academic.SemesterKey{Faculty: "ETTI", AcademicYear: "2024/2025", Semester: 1}

// racingStore lets another writer save the semester just before the
// service's next `races` saves land.
type racingStore struct {
	*store.Memory
	races int
	saves int
}

func (r *racingStore) SaveSemester(ctx context.Context, s academic.Semester) (academic.Semester, error) {
	r.saves++
	if r.races > 0 {
		r.races--
		current, err := r.Memory.GetSemester(ctx, s.Key)
		if err != nil {
			return academic.Semester{}, err
		}
		if _, err := r.Memory.SaveSemester(ctx, current); err != nil {
			return academic.Semester{}, err
		}
	}
	return r.Memory.SaveSemester(ctx, s)
}

func definition() calendar.SemesterDefinition {
	return calendar.SemesterDefinition{
		Key:       semKey,
		StartDate: d("2024-10-01"),
		EndDate:   d("2024-10-21"),
		StartsOdd: true,
	}
}

func TestService_GenerateWeeksRetriesConcurrentWrite(t *testing.T) {
	// GIVEN: A stored semester and a writer that saves it once more mid-regeneration
	// WHEN: Regenerating with overwrite
	// THEN: The service re-reads and succeeds on the second save

	ctx := context.Background()
	st := &racingStore{Memory: store.NewMemory()}
	svc := calendar.NewService(st, nil, zap.NewNop(), 0)

	_, err := svc.GenerateWeeks(ctx, definition(), false)
	require.NoError(t, err)

	st.races, st.saves = 1, 0
	sem, err := svc.GenerateWeeks(ctx, definition(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, st.saves)
	assert.Equal(t, 3, sem.Version)
	assert.Len(t, sem.Weeks, 3)
}

func TestService_GenerateWeeksGivesUpAfterRepeatedConflicts(t *testing.T) {
	ctx := context.Background()
	st := &racingStore{Memory: store.NewMemory()}
	svc := calendar.NewService(st, nil, zap.NewNop(), 0)

	_, err := svc.GenerateWeeks(ctx, definition(), false)
	require.NoError(t, err)

	st.races, st.saves = 10, 0
	_, err = svc.GenerateWeeks(ctx, definition(), true)
	assert.ErrorIs(t, err, academic.ErrConcurrentModification)
	assert.Equal(t, 3, st.saves)
}

func TestService_GenerateWeeksConflictIsNotRetried(t *testing.T) {
	ctx := context.Background()
	st := &racingStore{Memory: store.NewMemory()}
	svc := calendar.NewService(st, nil, zap.NewNop(), 0)

	_, err := svc.GenerateWeeks(ctx, definition(), false)
	require.NoError(t, err)

	st.saves = 0
	_, err = svc.GenerateWeeks(ctx, definition(), false)
	assert.ErrorIs(t, err, academic.ErrAlreadyExists)
	assert.Zero(t, st.saves)
}
