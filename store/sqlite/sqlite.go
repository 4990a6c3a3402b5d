/*
Package sqlite provides a SQLite-backed implementation of the academic stores.

PURPOSE:
  Implements every persistence interface of the engine (academic.TxStore)
  on SQLite. The engine only needs load-all/save-all semantics per key, so
  the schema is a handful of flat tables.

INTERFACES IMPLEMENTED:
  academic.SemesterStore:     semesters + semester_weeks + special_weeks
  academic.CalendarStore:     calendar_days
  academic.TeachingHourStore: teaching_hours
  academic.DeclarationStore:  declarations (items and summary as JSON)
  academic.HolidayStore:      holidays
  academic.TxStore:           WithTx over a single *sql.Tx

OPTIMISTIC VERSIONING:
  semesters.version is compared and bumped inside the same transaction as
  the week rows, so two concurrent regenerations of one semester cannot
  both win. The loser gets academic.ErrConcurrentModification.

CONNECTIONS:
  The pool is capped at one connection. SQLite serializes writers anyway,
  and ":memory:" databases only exist per connection.

WAL MODE:
  Files are opened with WAL and foreign keys enabled.

MIGRATION:
  Versioned SQL files under sql/ are embedded and applied on New() through
  sqlmigrator (darwin dialect).

USAGE:
  store, err := sqlite.New("./data/platacuora.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - academic/store.go: Interface definitions
  - academic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements academic.TxStore using SQLite.
type Store struct {
	db *sql.DB
	q  querier
	tx *sql.Tx // set on the view handed to WithTx callbacks
}

var _ academic.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, q: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection (used by the health endpoint).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. Nested calls reuse the
// outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(academic.Store) error) error {
	return s.atomic(ctx, func(ts *Store) error { return fn(ts) })
}

func (s *Store) atomic(ctx context.Context, fn func(*Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Store{db: s.db, q: sqlTx, tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// SEMESTERS
// =============================================================================

func (s *Store) GetSemester(ctx context.Context, key academic.SemesterKey) (academic.Semester, error) {
	sem := academic.Semester{Key: key}
	err := s.q.QueryRowContext(ctx, `
		SELECT start_date, end_date, starts_odd, extended, version
		FROM semesters
		WHERE faculty = ? AND academic_year = ? AND semester = ?
	`, key.Faculty, key.AcademicYear, key.Semester).Scan(
		&sem.StartDate, &sem.EndDate, &sem.StartsOdd, &sem.Extended, &sem.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return academic.Semester{}, fmt.Errorf("semester %s: %w", key, academic.ErrNotFound)
	}
	if err != nil {
		return academic.Semester{}, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT week_number, start_date, week_type
		FROM semester_weeks
		WHERE faculty = ? AND academic_year = ? AND semester = ?
		ORDER BY start_date ASC, week_number ASC
	`, key.Faculty, key.AcademicYear, key.Semester)
	if err != nil {
		return academic.Semester{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var w academic.SemesterWeek
		var wt string
		if err := rows.Scan(&w.Number, &w.StartDate, &wt); err != nil {
			return academic.Semester{}, err
		}
		w.WeekType = academic.WeekType(wt)
		sem.Weeks = append(sem.Weeks, w)
	}
	if err := rows.Err(); err != nil {
		return academic.Semester{}, err
	}

	specials, err := s.q.QueryContext(ctx, `
		SELECT name, start_date, end_date, week_type
		FROM special_weeks
		WHERE faculty = ? AND academic_year = ? AND semester = ?
		ORDER BY position ASC
	`, key.Faculty, key.AcademicYear, key.Semester)
	if err != nil {
		return academic.Semester{}, err
	}
	defer specials.Close()
	for specials.Next() {
		var sw academic.SpecialWeek
		var wt string
		if err := specials.Scan(&sw.Name, &sw.StartDate, &sw.EndDate, &wt); err != nil {
			return academic.Semester{}, err
		}
		sw.WeekType = academic.WeekType(wt)
		sem.SpecialWeeks = append(sem.SpecialWeeks, sw)
	}
	return sem, specials.Err()
}

// SaveSemester replaces the semester and its weeks if the caller's version
// matches the stored one.
func (s *Store) SaveSemester(ctx context.Context, sem academic.Semester) (academic.Semester, error) {
	err := s.atomic(ctx, func(ts *Store) error {
		k := sem.Key
		var current int
		err := ts.q.QueryRowContext(ctx, `
			SELECT version FROM semesters
			WHERE faculty = ? AND academic_year = ? AND semester = ?
		`, k.Faculty, k.AcademicYear, k.Semester).Scan(&current)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			current = 0
		case err != nil:
			return err
		}
		if current != sem.Version {
			return fmt.Errorf("semester %s at version %d, have %d: %w",
				k, current, sem.Version, academic.ErrConcurrentModification)
		}
		sem.Version = current + 1

		if _, err := ts.q.ExecContext(ctx, `
			INSERT INTO semesters (faculty, academic_year, semester, start_date, end_date, starts_odd, extended, version, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(faculty, academic_year, semester) DO UPDATE SET
				start_date = excluded.start_date,
				end_date = excluded.end_date,
				starts_odd = excluded.starts_odd,
				extended = excluded.extended,
				version = excluded.version,
				updated_at = excluded.updated_at
		`, k.Faculty, k.AcademicYear, k.Semester, sem.StartDate, sem.EndDate,
			sem.StartsOdd, sem.Extended, sem.Version, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}

		if _, err := ts.q.ExecContext(ctx,
			`DELETE FROM semester_weeks WHERE faculty = ? AND academic_year = ? AND semester = ?`,
			k.Faculty, k.AcademicYear, k.Semester); err != nil {
			return err
		}
		for _, w := range sem.Weeks {
			if _, err := ts.q.ExecContext(ctx, `
				INSERT INTO semester_weeks (faculty, academic_year, semester, week_number, start_date, week_type)
				VALUES (?, ?, ?, ?, ?, ?)
			`, k.Faculty, k.AcademicYear, k.Semester, w.Number, w.StartDate, string(w.WeekType)); err != nil {
				return fmt.Errorf("week %s: %w", w.Number, err)
			}
		}

		if _, err := ts.q.ExecContext(ctx,
			`DELETE FROM special_weeks WHERE faculty = ? AND academic_year = ? AND semester = ?`,
			k.Faculty, k.AcademicYear, k.Semester); err != nil {
			return err
		}
		for i, sw := range sem.SpecialWeeks {
			if _, err := ts.q.ExecContext(ctx, `
				INSERT INTO special_weeks (faculty, academic_year, semester, position, name, start_date, end_date, week_type)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, k.Faculty, k.AcademicYear, k.Semester, i, sw.Name, sw.StartDate, sw.EndDate, string(sw.WeekType)); err != nil {
				if isUniqueConstraintError(err) {
					return &academic.AlreadyExistsError{What: "special week", Key: sw.Name, Count: 1}
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return academic.Semester{}, err
	}
	return sem, nil
}

// =============================================================================
// CALENDARS
// =============================================================================

func (s *Store) GetCalendar(ctx context.Context, key academic.CalendarKey) ([]academic.CalendarDay, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT date, day_of_week, is_working_day, odd_even, semester_week, is_holiday, holiday_name, manual
		FROM calendar_days
		WHERE user_id = ? AND academic_year = ? AND semester = ?
		ORDER BY date ASC
	`, key.UserID, key.AcademicYear, key.Semester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := []academic.CalendarDay{}
	for rows.Next() {
		var (
			d           academic.CalendarDay
			dow         int
			oddEven     string
			holidayName sql.NullString
		)
		if err := rows.Scan(&d.Date, &dow, &d.IsWorkingDay, &oddEven, &d.SemesterWeek,
			&d.IsHoliday, &holidayName, &d.Manual); err != nil {
			return nil, err
		}
		d.DayOfWeek = time.Weekday(dow)
		d.OddEven = academic.WeekType(oddEven)
		d.HolidayName = holidayName.String
		days = append(days, d)
	}
	return days, rows.Err()
}

// ReplaceCalendar deletes every day of the calendar and inserts days.
func (s *Store) ReplaceCalendar(ctx context.Context, key academic.CalendarKey, days []academic.CalendarDay) error {
	return s.atomic(ctx, func(ts *Store) error {
		if _, err := ts.q.ExecContext(ctx,
			`DELETE FROM calendar_days WHERE user_id = ? AND academic_year = ? AND semester = ?`,
			key.UserID, key.AcademicYear, key.Semester); err != nil {
			return err
		}
		for _, d := range days {
			if err := ts.upsertDay(ctx, key, d); err != nil {
				return fmt.Errorf("day %s: %w", d.Date, err)
			}
		}
		return nil
	})
}

func (s *Store) SaveDay(ctx context.Context, key academic.CalendarKey, day academic.CalendarDay) error {
	return s.upsertDay(ctx, key, day)
}

func (s *Store) upsertDay(ctx context.Context, key academic.CalendarKey, d academic.CalendarDay) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO calendar_days (user_id, academic_year, semester, date, day_of_week, is_working_day,
			odd_even, semester_week, is_holiday, holiday_name, manual)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, academic_year, semester, date) DO UPDATE SET
			day_of_week = excluded.day_of_week,
			is_working_day = excluded.is_working_day,
			odd_even = excluded.odd_even,
			semester_week = excluded.semester_week,
			is_holiday = excluded.is_holiday,
			holiday_name = excluded.holiday_name,
			manual = excluded.manual
	`, key.UserID, key.AcademicYear, key.Semester, d.Date, int(d.Date.Weekday()), d.IsWorkingDay,
		string(d.OddEven), d.SemesterWeek, d.IsHoliday, nullString(d.HolidayName), d.Manual)
	return err
}

// =============================================================================
// TEACHING-HOUR RECORDS
// =============================================================================

const recordColumns = `id, user_id, academic_year, semester, day_of_week, odd_even, is_special, special_week,
	activity_type, hour_kind, hours, discipline_name, group_name, post_number, post_grade, processed`

func (s *Store) GetRecord(ctx context.Context, id string) (academic.TeachingHourRecord, error) {
	recs, err := s.queryRecords(ctx, `SELECT `+recordColumns+` FROM teaching_hours WHERE id = ?`, id)
	if err != nil {
		return academic.TeachingHourRecord{}, err
	}
	if len(recs) == 0 {
		return academic.TeachingHourRecord{}, fmt.Errorf("record %s: %w", id, academic.ErrNotFound)
	}
	return recs[0], nil
}

func (s *Store) ListRecords(ctx context.Context, key academic.CalendarKey) ([]academic.TeachingHourRecord, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+`
		FROM teaching_hours
		WHERE user_id = ? AND academic_year = ? AND semester = ?
		ORDER BY seq ASC
	`, key.UserID, key.AcademicYear, key.Semester)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]academic.TeachingHourRecord, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []academic.TeachingHourRecord
	for rows.Next() {
		var (
			r                                     academic.TeachingHourRecord
			dow                                   int
			oddEven, activity, kind, hours        string
			specialWeek, group, postNumber, grade sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.AcademicYear, &r.Semester, &dow, &oddEven,
			&r.IsSpecial, &specialWeek, &activity, &kind, &hours, &r.DisciplineName,
			&group, &postNumber, &grade, &r.Processed); err != nil {
			return nil, err
		}
		h, err := decimal.NewFromString(hours)
		if err != nil {
			return nil, fmt.Errorf("record %s: hours %q: %w", r.ID, hours, err)
		}
		r.DayOfWeek = time.Weekday(dow)
		r.OddEven = academic.WeekType(oddEven)
		r.SpecialWeek = specialWeek.String
		r.ActivityType = academic.ActivityType(activity)
		r.Kind = academic.HourKind(kind)
		r.Hours = h
		r.Group = group.String
		r.PostNumber = postNumber.String
		r.PostGrade = grade.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveRecord inserts or replaces a record. Replacing keeps its position.
func (s *Store) SaveRecord(ctx context.Context, r academic.TeachingHourRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO teaching_hours (id, user_id, academic_year, semester, day_of_week, odd_even, is_special,
			special_week, activity_type, hour_kind, hours, discipline_name, group_name, post_number,
			post_grade, processed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			academic_year = excluded.academic_year,
			semester = excluded.semester,
			day_of_week = excluded.day_of_week,
			odd_even = excluded.odd_even,
			is_special = excluded.is_special,
			special_week = excluded.special_week,
			activity_type = excluded.activity_type,
			hour_kind = excluded.hour_kind,
			hours = excluded.hours,
			discipline_name = excluded.discipline_name,
			group_name = excluded.group_name,
			post_number = excluded.post_number,
			post_grade = excluded.post_grade,
			processed = excluded.processed,
			updated_at = excluded.updated_at
	`, r.ID, r.UserID, r.AcademicYear, r.Semester, int(r.DayOfWeek), string(r.OddEven), r.IsSpecial,
		nullString(r.SpecialWeek), string(r.ActivityType), string(r.Kind), r.Hours.String(), r.DisciplineName,
		nullString(r.Group), nullString(r.PostNumber), nullString(r.PostGrade), r.Processed, now, now)
	return err
}

func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM teaching_hours WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "record", id)
}

func (s *Store) MarkProcessed(ctx context.Context, ids []string) error {
	return s.atomic(ctx, func(ts *Store) error {
		now := time.Now().UTC().Format(time.RFC3339)
		for _, id := range ids {
			res, err := ts.q.ExecContext(ctx,
				`UPDATE teaching_hours SET processed = TRUE, updated_at = ? WHERE id = ?`, now, id)
			if err != nil {
				return err
			}
			if err := requireAffected(res, "record", id); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// DECLARATIONS
// =============================================================================

func (s *Store) SaveDeclaration(ctx context.Context, d academic.Declaration) error {
	if d.ID == "" {
		return fmt.Errorf("declaration without id")
	}
	items, err := json.Marshal(d.Items)
	if err != nil {
		return err
	}
	summary, err := json.Marshal(d.Summary)
	if err != nil {
		return err
	}
	recordIDs, err := json.Marshal(d.RecordIDs)
	if err != nil {
		return err
	}
	created := d.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO declarations (id, user_id, academic_year, semester, period_start, period_end,
			is_valid, stale, items_json, summary_json, record_ids_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.Key.UserID, d.Key.AcademicYear, d.Key.Semester, d.Period.Start, d.Period.End,
		d.Valid, d.Stale, string(items), string(summary), string(recordIDs),
		created.UTC().Format(time.RFC3339Nano))
	if isUniqueConstraintError(err) {
		return &academic.AlreadyExistsError{What: "declaration", Key: d.ID, Count: 1}
	}
	return err
}

const declarationColumns = `id, user_id, academic_year, semester, period_start, period_end,
	is_valid, stale, items_json, summary_json, record_ids_json, created_at`

func (s *Store) GetDeclaration(ctx context.Context, id string) (academic.Declaration, error) {
	decls, err := s.queryDeclarations(ctx, `SELECT `+declarationColumns+` FROM declarations WHERE id = ?`, id)
	if err != nil {
		return academic.Declaration{}, err
	}
	if len(decls) == 0 {
		return academic.Declaration{}, fmt.Errorf("declaration %s: %w", id, academic.ErrNotFound)
	}
	return decls[0], nil
}

func (s *Store) ListDeclarations(ctx context.Context, key academic.CalendarKey) ([]academic.Declaration, error) {
	return s.queryDeclarations(ctx, `
		SELECT `+declarationColumns+`
		FROM declarations
		WHERE user_id = ? AND academic_year = ? AND semester = ?
		ORDER BY created_at ASC
	`, key.UserID, key.AcademicYear, key.Semester)
}

func (s *Store) queryDeclarations(ctx context.Context, query string, args ...any) ([]academic.Declaration, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []academic.Declaration
	for rows.Next() {
		var (
			d                              academic.Declaration
			items, summary, ids, createdAt string
		)
		if err := rows.Scan(&d.ID, &d.Key.UserID, &d.Key.AcademicYear, &d.Key.Semester,
			&d.Period.Start, &d.Period.End, &d.Valid, &d.Stale, &items, &summary, &ids, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(items), &d.Items); err != nil {
			return nil, fmt.Errorf("declaration %s items: %w", d.ID, err)
		}
		if err := json.Unmarshal([]byte(summary), &d.Summary); err != nil {
			return nil, fmt.Errorf("declaration %s summary: %w", d.ID, err)
		}
		if err := json.Unmarshal([]byte(ids), &d.RecordIDs); err != nil {
			return nil, fmt.Errorf("declaration %s records: %w", d.ID, err)
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) MarkStale(ctx context.Context, key academic.CalendarKey) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE declarations SET stale = TRUE
		WHERE user_id = ? AND academic_year = ? AND semester = ? AND stale = FALSE
	`, key.UserID, key.AcademicYear, key.Semester)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// HolidaysForYear returns the one-off holidays of the year plus every
// recurring holiday, moved into that year.
func (s *Store) HolidaysForYear(ctx context.Context, year int) ([]academic.Holiday, error) {
	hs, err := s.queryHolidays(ctx, `
		SELECT id, date, name, recurring
		FROM holidays
		WHERE recurring = TRUE OR strftime('%Y', date) = ?
		ORDER BY date ASC, name ASC
	`, fmt.Sprintf("%04d", year))
	if err != nil {
		return nil, err
	}
	out := hs[:0]
	for _, h := range hs {
		date, ok := h.InYear(year)
		if !ok {
			continue
		}
		h.Date = date
		out = append(out, h)
	}
	return out, nil
}

// ListHolidays returns all holidays (for the admin UI).
func (s *Store) ListHolidays(ctx context.Context) ([]academic.Holiday, error) {
	return s.queryHolidays(ctx, `SELECT id, date, name, recurring FROM holidays ORDER BY date ASC, name ASC`)
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]academic.Holiday, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holidays := []academic.Holiday{}
	for rows.Next() {
		var h academic.Holiday
		if err := rows.Scan(&h.ID, &h.Date, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// SaveHoliday upserts a holiday by (date, name).
func (s *Store) SaveHoliday(ctx context.Context, h academic.Holiday) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO holidays (id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date, name) DO UPDATE SET
			recurring = excluded.recurring
	`, h.ID, h.Date, h.Name, h.Recurring, time.Now().UTC().Format(time.RFC3339))
	return err
}

// DeleteHoliday deletes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res, "holiday", id)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func requireAffected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, academic.ErrNotFound)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
