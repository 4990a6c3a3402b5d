/*
store.go - Persistence interfaces for semesters, calendars, records and declarations

PURPOSE:
  Defines the boundary between the engine and the database. The calendar and
  declaration services only talk to these interfaces; the engine functions
  themselves (GenerateWeeks, Build, Verify, Match, Aggregate) never touch a
  store.

KEY INTERFACES:
  SemesterStore:     Semester definitions and their generated weeks
  CalendarStore:     Materialized calendar days per user calendar
  TeachingHourStore: Recurring teaching-hour records
  DeclarationStore:  Finalized declarations
  HolidayStore:      Public holidays (also a HolidaySource)
  TxStore:           All of the above plus atomic multi-table writes

OPTIMISTIC VERSIONING:
  SaveSemester compares the caller's Semester.Version with the stored one.
  A mismatch returns ErrConcurrentModification; the stored version is bumped
  on every successful write.

NOT FOUND:
  Single-object getters return ErrNotFound. List methods return an empty
  slice instead.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite with embedded migrations
  - academic/store/memory.go: In-memory for tests and development

SEE ALSO:
  - calendar/service.go: Uses SemesterStore, CalendarStore, DeclarationStore
  - declaration/service.go: Uses every interface through TxStore
*/
package academic

import "context"

// =============================================================================
// SEMESTERS
// =============================================================================

type SemesterStore interface {
	// GetSemester returns ErrNotFound when the semester was never generated.
	GetSemester(ctx context.Context, key SemesterKey) (Semester, error)

	// SaveSemester inserts or replaces the semester. It returns the stored
	// copy with its new Version.
	SaveSemester(ctx context.Context, s Semester) (Semester, error)
}

// =============================================================================
// CALENDARS
// =============================================================================

type CalendarStore interface {
	// GetCalendar returns the days of a calendar ordered by date.
	GetCalendar(ctx context.Context, key CalendarKey) ([]CalendarDay, error)

	// ReplaceCalendar atomically swaps every day of the calendar.
	ReplaceCalendar(ctx context.Context, key CalendarKey, days []CalendarDay) error

	// SaveDay upserts one day by date.
	SaveDay(ctx context.Context, key CalendarKey, day CalendarDay) error
}

// =============================================================================
// TEACHING-HOUR RECORDS
// =============================================================================

type TeachingHourStore interface {
	GetRecord(ctx context.Context, id string) (TeachingHourRecord, error)

	// ListRecords returns the records of a calendar in insertion order.
	ListRecords(ctx context.Context, key CalendarKey) ([]TeachingHourRecord, error)

	// SaveRecord inserts or replaces a record by ID.
	SaveRecord(ctx context.Context, r TeachingHourRecord) error

	DeleteRecord(ctx context.Context, id string) error

	// MarkProcessed flags records used by a finalized declaration; they stay
	// active for later periods but can no longer be edited.
	MarkProcessed(ctx context.Context, ids []string) error
}

// =============================================================================
// DECLARATIONS
// =============================================================================

type DeclarationStore interface {
	SaveDeclaration(ctx context.Context, d Declaration) error
	GetDeclaration(ctx context.Context, id string) (Declaration, error)
	ListDeclarations(ctx context.Context, key CalendarKey) ([]Declaration, error)

	// MarkStale flags every declaration of the calendar as built from an
	// outdated calendar. It returns how many were flagged.
	MarkStale(ctx context.Context, key CalendarKey) (int, error)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayStore interface {
	HolidaySource

	ListHolidays(ctx context.Context) ([]Holiday, error)

	// SaveHoliday upserts by (date, name).
	SaveHoliday(ctx context.Context, h Holiday) error

	DeleteHoliday(ctx context.Context, id string) error
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store bundles every interface.
type Store interface {
	SemesterStore
	CalendarStore
	TeachingHourStore
	DeclarationStore
	HolidayStore
}

// TxStore wraps Store with transaction support.
// If fn returns an error every write made through its Store is rolled back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
