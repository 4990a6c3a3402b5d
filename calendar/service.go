package calendar

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

// =============================================================================
// SERVICE - Stores and logging around the pure calendar functions
// =============================================================================

// SemesterDefinition is the faculty input weeks are generated from.
type SemesterDefinition struct {
	Key       academic.SemesterKey
	StartDate academic.Date
	EndDate   academic.Date
	StartsOdd bool
	Extended  bool
}

// Service loads inputs, runs the calendar pipeline and persists results.
type Service struct {
	store         academic.Store
	holidays      academic.HolidaySource
	log           *zap.Logger
	extendedWeeks int
}

// NewService creates a calendar service. A nil holiday source means no
// holidays; extendedWeeks <= 0 falls back to DefaultExtendedWeeks.
func NewService(store academic.Store, holidays academic.HolidaySource, log *zap.Logger, extendedWeeks int) *Service {
	if holidays == nil {
		holidays = academic.NoHolidays{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if extendedWeeks <= 0 {
		extendedWeeks = DefaultExtendedWeeks
	}
	return &Service{store: store, holidays: holidays, log: log, extendedWeeks: extendedWeeks}
}

// saveAttempts bounds retries after a concurrent semester write.
const saveAttempts = 3

// GenerateWeeks (re)generates a semester's week sequence and stores it.
// Existing special weeks are kept. A concurrent write is retried against
// the fresh semester.
func (s *Service) GenerateWeeks(ctx context.Context, def SemesterDefinition, overwrite bool) (academic.Semester, error) {
	var (
		sem academic.Semester
		err error
	)
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		sem, err = s.generateWeeks(ctx, def, overwrite)
		if !academic.IsRetryable(err) {
			break
		}
		s.log.Warn("semester changed concurrently, retrying",
			zap.String("semester", def.Key.String()),
			zap.Int("attempt", attempt),
		)
	}
	return sem, err
}

func (s *Service) generateWeeks(ctx context.Context, def SemesterDefinition, overwrite bool) (academic.Semester, error) {
	existing, err := s.store.GetSemester(ctx, def.Key)
	if err != nil && !errors.Is(err, academic.ErrNotFound) {
		return academic.Semester{}, err
	}

	weeks, err := RegenerateWeeks(existing.Weeks, WeekInput{
		Start:         def.StartDate,
		End:           def.EndDate,
		StartsOdd:     def.StartsOdd,
		Extended:      def.Extended,
		ExtendedWeeks: s.extendedWeeks,
	}, overwrite)
	if err != nil {
		var exists *academic.AlreadyExistsError
		if errors.As(err, &exists) {
			exists.Key = def.Key.String()
		}
		return academic.Semester{}, err
	}

	sem := academic.Semester{
		Key:          def.Key,
		StartDate:    def.StartDate,
		EndDate:      def.EndDate,
		StartsOdd:    def.StartsOdd,
		Extended:     def.Extended,
		Weeks:        weeks,
		SpecialWeeks: existing.SpecialWeeks,
		Version:      existing.Version,
	}
	saved, err := s.store.SaveSemester(ctx, sem)
	if err != nil {
		return academic.Semester{}, fmt.Errorf("save semester %s: %w", def.Key, err)
	}

	s.log.Info("semester weeks generated",
		zap.String("semester", def.Key.String()),
		zap.Int("weeks", len(weeks)),
		zap.Bool("regenerated", len(existing.Weeks) > 0),
		zap.Int("version", saved.Version),
	)
	return saved, nil
}

// AddSpecialWeek adds a special week, replacing one with the same name.
func (s *Service) AddSpecialWeek(ctx context.Context, key academic.SemesterKey, sw academic.SpecialWeek) (academic.Semester, error) {
	if err := sw.Validate(); err != nil {
		return academic.Semester{}, err
	}
	sem, err := s.store.GetSemester(ctx, key)
	if err != nil {
		return academic.Semester{}, err
	}

	replaced := false
	for i, existing := range sem.SpecialWeeks {
		if existing.Name == sw.Name {
			sem.SpecialWeeks[i] = sw
			replaced = true
			break
		}
	}
	if !replaced {
		sem.SpecialWeeks = append(sem.SpecialWeeks, sw)
	}

	saved, err := s.store.SaveSemester(ctx, sem)
	if err != nil {
		return academic.Semester{}, fmt.Errorf("save semester %s: %w", key, err)
	}
	s.log.Info("special week saved",
		zap.String("semester", key.String()),
		zap.String("name", sw.Name),
		zap.Bool("vacation", sw.IsVacation()),
	)
	return saved, nil
}

// Semester returns a stored semester.
func (s *Service) Semester(ctx context.Context, key academic.SemesterKey) (academic.Semester, error) {
	return s.store.GetSemester(ctx, key)
}

// Calendar returns a user's stored calendar.
func (s *Service) Calendar(ctx context.Context, key academic.CalendarKey) ([]academic.CalendarDay, error) {
	return s.store.GetCalendar(ctx, key)
}

// BuildCalendar rebuilds a user's calendar from the semester and the
// holiday source. Manual days already in the calendar survive. Every
// declaration built from the previous calendar is flagged stale.
func (s *Service) BuildCalendar(ctx context.Context, semKey academic.SemesterKey, calKey academic.CalendarKey) ([]academic.CalendarDay, error) {
	if err := checkKeys(semKey, calKey); err != nil {
		return nil, err
	}
	sem, err := s.store.GetSemester(ctx, semKey)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.GetCalendar(ctx, calKey)
	if err != nil {
		return nil, err
	}

	var manual []academic.CalendarDay
	for _, d := range existing {
		if d.Manual {
			manual = append(manual, d)
		}
	}

	period := sem.Period()
	holidays, err := academic.HolidaysForPeriod(ctx, s.holidays, period)
	if err != nil {
		return nil, err
	}

	days, err := Build(BuildInput{
		Period:       period,
		Weeks:        sem.Weeks,
		SpecialWeeks: sem.SpecialWeeks,
		Holidays:     holidays,
		Overrides:    manual,
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceCalendar(ctx, calKey, days); err != nil {
		return nil, fmt.Errorf("save calendar %s: %w", calKey, err)
	}

	stale, err := s.store.MarkStale(ctx, calKey)
	if err != nil {
		return nil, err
	}

	s.log.Info("calendar built",
		zap.String("calendar", calKey.String()),
		zap.String("semester", semKey.String()),
		zap.Int("days", len(days)),
		zap.Int("holidays", len(holidays)),
		zap.Int("manual_days", len(manual)),
		zap.Int("stale_declarations", stale),
	)
	return days, nil
}

// AddSpecialDay stores a hand-entered day (exam day, local closure).
// It wins over generated values and survives later rebuilds.
func (s *Service) AddSpecialDay(ctx context.Context, key academic.CalendarKey, day academic.CalendarDay) (academic.CalendarDay, error) {
	if day.Date.IsZero() {
		return academic.CalendarDay{}, fmt.Errorf("special day without date: %w", academic.ErrInvalidPeriod)
	}
	if !day.OddEven.Valid() {
		return academic.CalendarDay{}, fmt.Errorf("special day %s: unknown parity %q: %w", day.Date, day.OddEven, academic.ErrInvalidRange)
	}
	day.Manual = true
	day.Normalize()

	if err := s.store.SaveDay(ctx, key, day); err != nil {
		return academic.CalendarDay{}, fmt.Errorf("save day %s: %w", day.Date, err)
	}
	if _, err := s.store.MarkStale(ctx, key); err != nil {
		return academic.CalendarDay{}, err
	}

	s.log.Info("special day saved",
		zap.String("calendar", key.String()),
		zap.Stringer("date", day.Date),
		zap.Bool("working", day.IsWorkingDay),
	)
	return day, nil
}

// Verify loads a calendar and its semester and runs the verifier.
func (s *Service) Verify(ctx context.Context, semKey academic.SemesterKey, calKey academic.CalendarKey) (Report, error) {
	sem, err := s.store.GetSemester(ctx, semKey)
	if err != nil {
		return Report{}, err
	}
	days, err := s.store.GetCalendar(ctx, calKey)
	if err != nil {
		return Report{}, err
	}

	report := Verify(days, sem)
	if !report.Valid {
		s.log.Warn("calendar verification failed",
			zap.String("calendar", calKey.String()),
			zap.Int("conflicts", len(report.Conflicts)),
		)
	}
	return report, nil
}

func checkKeys(semKey academic.SemesterKey, calKey academic.CalendarKey) error {
	if semKey.AcademicYear != calKey.AcademicYear || semKey.Semester != calKey.Semester {
		return fmt.Errorf("calendar %s does not belong to semester %s: %w", calKey, semKey, academic.ErrInvalidPeriod)
	}
	return nil
}
