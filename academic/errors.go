/*
errors.go - Centralized error types for the calendar and declaration engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The calendar and declaration packages return these; the api package maps
  them to HTTP status codes.

ERROR CATEGORIES:
  1. Range errors    - Semester or declaration period is malformed
  2. State errors    - Regeneration without overwrite, locked records,
                       periods already declared
  3. Calendar errors - Conflicts found by the calendar verifier
  4. Output errors   - Declaration has no items or incomplete items

USAGE:
  Every structured error unwraps to a sentinel:

    if errors.Is(err, academic.ErrParityMismatch) {
        // show the calendar conflicts to the user
    }

SEE ALSO:
  - calendar/verifier.go: Produces the calendar conflicts
  - declaration/aggregator.go: Produces NoActivityError / IncompleteItemError
  - api/handlers.go: Maps errors to status codes
*/
package academic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRange is returned when a semester end date is not after its start.
	ErrInvalidRange = errors.New("invalid range: end must be after start")

	// ErrInvalidPeriod is returned when a period is malformed or too long.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrAlreadyExists is returned when data would be regenerated without overwrite.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound is returned when a semester, calendar or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRecordLocked is returned when a teaching-hour record already consumed
	// by a declaration is edited or deleted.
	ErrRecordLocked = errors.New("record already processed in a declaration")

	// ErrAlreadyDeclared is returned when a period overlaps a stored,
	// non-stale declaration of the same calendar.
	ErrAlreadyDeclared = errors.New("period already declared")

	// ErrInvalidRecord is returned when a teaching-hour record violates its invariants.
	ErrInvalidRecord = errors.New("invalid teaching-hour record")

	// ErrDuplicateDate marks a calendar with the same date more than once.
	ErrDuplicateDate = errors.New("duplicate calendar date")

	// ErrParityMismatch marks a calendar day whose parity disagrees with its week.
	ErrParityMismatch = errors.New("week parity mismatch")

	// ErrUnknownWeek marks a calendar day labelled with a week the semester lacks.
	ErrUnknownWeek = errors.New("unknown semester week")

	// ErrCalendarInvalid is returned when a calendar fails verification and is
	// used for declaration generation anyway.
	ErrCalendarInvalid = errors.New("calendar failed verification")

	// ErrNoActivity is returned when a declaration period yields no occurrences.
	ErrNoActivity = errors.New("no teaching activity in period")

	// ErrIncompleteItem is returned when generated items miss required fields.
	ErrIncompleteItem = errors.New("incomplete declaration item")

	// ErrConcurrentModification is returned when optimistic versioning detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidRangeError reports a semester whose end date is not after its start.
type InvalidRangeError struct {
	Start Date
	End   Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: end %s is not after start %s", e.End, e.Start)
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// AlreadyExistsError reports an attempt to regenerate existing data
// without the overwrite flag.
type AlreadyExistsError struct {
	What  string // e.g. "semester weeks"
	Key   string
	Count int
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s for %s already exist (%d entries); pass overwrite to regenerate",
		e.What, e.Key, e.Count)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

// PeriodTooLongError reports a period over the configured day bound.
type PeriodTooLongError struct {
	Period  Period
	Days    int
	MaxDays int
}

func (e *PeriodTooLongError) Error() string {
	return fmt.Sprintf("period %s spans %d days, maximum is %d", e.Period, e.Days, e.MaxDays)
}

func (e *PeriodTooLongError) Unwrap() error { return ErrInvalidPeriod }

// AlreadyDeclaredError reports the stored declaration a new period overlaps.
type AlreadyDeclaredError struct {
	DeclarationID string
	Declared      Period
	Requested     Period
}

func (e *AlreadyDeclaredError) Error() string {
	return fmt.Sprintf("period %s overlaps declaration %s covering %s",
		e.Requested, e.DeclarationID, e.Declared)
}

func (e *AlreadyDeclaredError) Unwrap() error { return ErrAlreadyDeclared }

// RecordError reports which invariant a teaching-hour record breaks.
type RecordError struct {
	RecordID string
	Reason   string
}

func (e *RecordError) Error() string {
	if e.RecordID == "" {
		return "invalid teaching-hour record: " + e.Reason
	}
	return fmt.Sprintf("invalid teaching-hour record %s: %s", e.RecordID, e.Reason)
}

func (e *RecordError) Unwrap() error { return ErrInvalidRecord }

// =============================================================================
// CALENDAR CONFLICTS - Collected by the verifier, never short-circuited
// =============================================================================

// Conflict is one calendar-integrity problem.
type Conflict interface {
	error
	ConflictDate() Date
}

// DuplicateDateConflict reports a date present more than once in a calendar.
type DuplicateDateConflict struct {
	Date  Date
	Count int
}

func (c *DuplicateDateConflict) Error() string {
	return fmt.Sprintf("date %s appears %d times", c.Date, c.Count)
}

func (c *DuplicateDateConflict) Unwrap() error      { return ErrDuplicateDate }
func (c *DuplicateDateConflict) ConflictDate() Date { return c.Date }

// ParityMismatchConflict reports a day whose parity disagrees with the
// semester's authoritative week list.
type ParityMismatchConflict struct {
	Date     Date
	Week     string
	Expected WeekType
	Actual   WeekType
}

func (c *ParityMismatchConflict) Error() string {
	return fmt.Sprintf("date %s in week %s: expected parity %q, got %q",
		c.Date, c.Week, c.Expected, c.Actual)
}

func (c *ParityMismatchConflict) Unwrap() error      { return ErrParityMismatch }
func (c *ParityMismatchConflict) ConflictDate() Date { return c.Date }

// UnknownWeekConflict reports a day labelled with a week the semester does
// not define.
type UnknownWeekConflict struct {
	Date Date
	Week string
}

func (c *UnknownWeekConflict) Error() string {
	return fmt.Sprintf("date %s references unknown week %s", c.Date, c.Week)
}

func (c *UnknownWeekConflict) Unwrap() error      { return ErrUnknownWeek }
func (c *UnknownWeekConflict) ConflictDate() Date { return c.Date }

// =============================================================================
// DECLARATION ERRORS
// =============================================================================

// NoActivityError reports a declaration period without any occurrence.
type NoActivityError struct {
	Period  Period
	Records int
}

func (e *NoActivityError) Error() string {
	return fmt.Sprintf("no teaching activity in %s (%d records checked)", e.Period, e.Records)
}

func (e *NoActivityError) Unwrap() error { return ErrNoActivity }

// ItemProblem lists the missing fields of one declaration item.
type ItemProblem struct {
	Index  int      `json:"index"`
	Fields []string `json:"fields"`
}

// IncompleteItemError lists every item failing the completeness check.
type IncompleteItemError struct {
	Problems []ItemProblem
}

func (e *IncompleteItemError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = fmt.Sprintf("item %d: %s", p.Index, strings.Join(p.Fields, ","))
	}
	return "incomplete declaration items: " + strings.Join(parts, "; ")
}

func (e *IncompleteItemError) Unwrap() error { return ErrIncompleteItem }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidRecord)
}

// IsConflict returns true if the error conflicts with stored state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrRecordLocked) ||
		errors.Is(err, ErrAlreadyDeclared) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsUnprocessable returns true if the input is well-formed but the calendar
// or declaration built from it is not usable.
func IsUnprocessable(err error) bool {
	return errors.Is(err, ErrCalendarInvalid) ||
		errors.Is(err, ErrNoActivity) ||
		errors.Is(err, ErrIncompleteItem)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
