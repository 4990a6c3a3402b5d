package declaration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
	"github.com/ULBS/platacuora-timetech-sub000/calendar"
)

// DefaultMaxPeriodDays bounds a declaration period when no limit is configured.
const DefaultMaxPeriodDays = 180

// CalendarInvalidError carries the verifier report of a calendar that was
// about to be used for a declaration.
type CalendarInvalidError struct {
	Key    academic.CalendarKey
	Report calendar.Report
}

func (e *CalendarInvalidError) Error() string {
	return fmt.Sprintf("calendar %s failed verification with %d conflicts", e.Key, len(e.Report.Conflicts))
}

func (e *CalendarInvalidError) Unwrap() []error {
	return []error{academic.ErrCalendarInvalid, e.Report.Err()}
}

// =============================================================================
// SERVICE
// =============================================================================

// Service runs previews and finalizes declarations, and guards the
// teaching-hour record lifecycle.
type Service struct {
	store         academic.TxStore
	coefficients  *Coefficients
	maxPeriodDays int
	log           *zap.Logger
	now           func() time.Time
}

func NewService(store academic.TxStore, coefficients *Coefficients, log *zap.Logger, maxPeriodDays int) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if maxPeriodDays <= 0 {
		maxPeriodDays = DefaultMaxPeriodDays
	}
	return &Service{
		store:         store,
		coefficients:  coefficients,
		maxPeriodDays: maxPeriodDays,
		log:           log,
		now:           time.Now,
	}
}

// Preview builds the declaration for the period without storing anything.
// The calendar must pass verification first.
func (s *Service) Preview(ctx context.Context, semKey academic.SemesterKey, calKey academic.CalendarKey, period academic.Period) (academic.Declaration, error) {
	return s.preview(ctx, s.store, semKey, calKey, period)
}

func (s *Service) preview(ctx context.Context, st academic.Store, semKey academic.SemesterKey, calKey academic.CalendarKey, period academic.Period) (academic.Declaration, error) {
	if err := period.Validate(s.maxPeriodDays); err != nil {
		return academic.Declaration{}, err
	}

	sem, err := st.GetSemester(ctx, semKey)
	if err != nil {
		return academic.Declaration{}, err
	}
	days, err := st.GetCalendar(ctx, calKey)
	if err != nil {
		return academic.Declaration{}, err
	}
	if len(days) == 0 {
		return academic.Declaration{}, fmt.Errorf("calendar %s has not been built: %w", calKey, academic.ErrNotFound)
	}

	if report := calendar.Verify(days, sem); !report.Valid {
		return academic.Declaration{}, &CalendarInvalidError{Key: calKey, Report: report}
	}

	records, err := st.ListRecords(ctx, calKey)
	if err != nil {
		return academic.Declaration{}, err
	}

	return Aggregate(AggregateInput{
		Key:          calKey,
		Records:      records,
		Calendar:     calendar.Index(days),
		Period:       period,
		Coefficients: s.coefficients,
	})
}

// Finalize stores a valid declaration and locks the records it used
// against edits. A period overlapping a stored, non-stale declaration of
// the same calendar is refused. All writes happen in one transaction.
func (s *Service) Finalize(ctx context.Context, semKey academic.SemesterKey, calKey academic.CalendarKey, period academic.Period) (academic.Declaration, error) {
	var decl academic.Declaration
	err := s.store.WithTx(ctx, func(st academic.Store) error {
		var err error
		decl, err = s.preview(ctx, st, semKey, calKey, period)
		if err != nil {
			return err
		}
		if err := ensureUndeclared(ctx, st, calKey, period); err != nil {
			return err
		}

		decl.ID = uuid.New().String()
		decl.CreatedAt = s.now().UTC()
		if err := st.SaveDeclaration(ctx, decl); err != nil {
			return fmt.Errorf("save declaration: %w", err)
		}
		return st.MarkProcessed(ctx, decl.RecordIDs)
	})
	if err != nil {
		return decl, err
	}

	s.log.Info("declaration finalized",
		zap.String("declaration", decl.ID),
		zap.String("calendar", calKey.String()),
		zap.Stringer("period", decl.Period),
		zap.Int("items", len(decl.Items)),
		zap.String("total_hours", decl.Summary.TotalHours.String()),
		zap.Int("records_locked", len(decl.RecordIDs)),
	)
	return decl, nil
}

func ensureUndeclared(ctx context.Context, st academic.Store, key academic.CalendarKey, period academic.Period) error {
	stored, err := st.ListDeclarations(ctx, key)
	if err != nil {
		return err
	}
	for _, d := range stored {
		if !d.Stale && d.Period.Overlaps(period) {
			return &academic.AlreadyDeclaredError{DeclarationID: d.ID, Declared: d.Period, Requested: period}
		}
	}
	return nil
}

// Declaration returns a stored declaration.
func (s *Service) Declaration(ctx context.Context, id string) (academic.Declaration, error) {
	return s.store.GetDeclaration(ctx, id)
}

// Declarations lists a calendar's stored declarations.
func (s *Service) Declarations(ctx context.Context, key academic.CalendarKey) ([]academic.Declaration, error) {
	return s.store.ListDeclarations(ctx, key)
}

// =============================================================================
// RECORD LIFECYCLE
// =============================================================================

// Records lists a calendar's teaching-hour records.
func (s *Service) Records(ctx context.Context, key academic.CalendarKey) ([]academic.TeachingHourRecord, error) {
	return s.store.ListRecords(ctx, key)
}

// SaveRecord validates and stores a record. A record already consumed by a
// declaration cannot be changed.
func (s *Service) SaveRecord(ctx context.Context, r academic.TeachingHourRecord) (academic.TeachingHourRecord, error) {
	if err := s.ensureEditable(ctx, r.ID); err != nil {
		return academic.TeachingHourRecord{}, err
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.Processed = false
	if err := r.Validate(); err != nil {
		return academic.TeachingHourRecord{}, err
	}
	if err := s.store.SaveRecord(ctx, r); err != nil {
		return academic.TeachingHourRecord{}, fmt.Errorf("save record %s: %w", r.ID, err)
	}
	return r, nil
}

// DeleteRecord removes an unprocessed record.
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	if _, err := s.store.GetRecord(ctx, id); err != nil {
		return err
	}
	if err := s.ensureEditable(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteRecord(ctx, id)
}

func (s *Service) ensureEditable(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	existing, err := s.store.GetRecord(ctx, id)
	if errors.Is(err, academic.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.Processed {
		return fmt.Errorf("record %s: %w", id, academic.ErrRecordLocked)
	}
	return nil
}
