// Package store provides in-memory implementations of the academic stores.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	txMu         sync.Mutex
	semesters    map[academic.SemesterKey]academic.Semester
	calendars    map[academic.CalendarKey]map[academic.Date]academic.CalendarDay
	records      map[string]academic.TeachingHourRecord
	recordOrder  []string
	declarations map[string]academic.Declaration
	holidays     map[string]academic.Holiday
}

var _ academic.TxStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		semesters:    make(map[academic.SemesterKey]academic.Semester),
		calendars:    make(map[academic.CalendarKey]map[academic.Date]academic.CalendarDay),
		records:      make(map[string]academic.TeachingHourRecord),
		declarations: make(map[string]academic.Declaration),
		holidays:     make(map[string]academic.Holiday),
	}
}

// =============================================================================
// SEMESTERS
// =============================================================================

func (m *Memory) GetSemester(_ context.Context, key academic.SemesterKey) (academic.Semester, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSemesterLocked(key)
}

func (m *Memory) getSemesterLocked(key academic.SemesterKey) (academic.Semester, error) {
	s, ok := m.semesters[key]
	if !ok {
		return academic.Semester{}, fmt.Errorf("semester %s: %w", key, academic.ErrNotFound)
	}
	return copySemester(s), nil
}

func (m *Memory) SaveSemester(_ context.Context, s academic.Semester) (academic.Semester, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveSemesterLocked(s)
}

func (m *Memory) saveSemesterLocked(s academic.Semester) (academic.Semester, error) {
	current, exists := m.semesters[s.Key]
	if exists && current.Version != s.Version {
		return academic.Semester{}, fmt.Errorf("semester %s at version %d, have %d: %w",
			s.Key, current.Version, s.Version, academic.ErrConcurrentModification)
	}
	if !exists && s.Version != 0 {
		return academic.Semester{}, fmt.Errorf("semester %s: %w", s.Key, academic.ErrConcurrentModification)
	}
	s = copySemester(s)
	s.Version++
	m.semesters[s.Key] = s
	return copySemester(s), nil
}

func copySemester(s academic.Semester) academic.Semester {
	s.Weeks = append([]academic.SemesterWeek(nil), s.Weeks...)
	s.SpecialWeeks = append([]academic.SpecialWeek(nil), s.SpecialWeeks...)
	return s
}

// =============================================================================
// CALENDARS
// =============================================================================

func (m *Memory) GetCalendar(_ context.Context, key academic.CalendarKey) ([]academic.CalendarDay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	days := make([]academic.CalendarDay, 0, len(m.calendars[key]))
	for _, d := range m.calendars[key] {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}

func (m *Memory) ReplaceCalendar(_ context.Context, key academic.CalendarKey, days []academic.CalendarDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byDate := make(map[academic.Date]academic.CalendarDay, len(days))
	for _, d := range days {
		byDate[d.Date] = d
	}
	m.calendars[key] = byDate
	return nil
}

func (m *Memory) SaveDay(_ context.Context, key academic.CalendarKey, day academic.CalendarDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.calendars[key] == nil {
		m.calendars[key] = make(map[academic.Date]academic.CalendarDay)
	}
	m.calendars[key][day.Date] = day
	return nil
}

// =============================================================================
// TEACHING-HOUR RECORDS
// =============================================================================

func (m *Memory) GetRecord(_ context.Context, id string) (academic.TeachingHourRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return academic.TeachingHourRecord{}, fmt.Errorf("record %s: %w", id, academic.ErrNotFound)
	}
	return r, nil
}

func (m *Memory) ListRecords(_ context.Context, key academic.CalendarKey) ([]academic.TeachingHourRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []academic.TeachingHourRecord
	for _, id := range m.recordOrder {
		if r := m.records[id]; r.CalendarKey() == key {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) SaveRecord(_ context.Context, r academic.TeachingHourRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if _, exists := m.records[r.ID]; !exists {
		m.recordOrder = append(m.recordOrder, r.ID)
	}
	m.records[r.ID] = r
	return nil
}

func (m *Memory) DeleteRecord(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("record %s: %w", id, academic.ErrNotFound)
	}
	delete(m.records, id)
	for i, rid := range m.recordOrder {
		if rid == id {
			m.recordOrder = append(m.recordOrder[:i], m.recordOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) MarkProcessed(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		r, ok := m.records[id]
		if !ok {
			return fmt.Errorf("record %s: %w", id, academic.ErrNotFound)
		}
		r.Processed = true
		m.records[id] = r
	}
	return nil
}

// =============================================================================
// DECLARATIONS
// =============================================================================

func (m *Memory) SaveDeclaration(_ context.Context, d academic.Declaration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.ID == "" {
		return fmt.Errorf("declaration without id")
	}
	d.Items = append([]academic.DeclarationItem(nil), d.Items...)
	m.declarations[d.ID] = d
	return nil
}

func (m *Memory) GetDeclaration(_ context.Context, id string) (academic.Declaration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.declarations[id]
	if !ok {
		return academic.Declaration{}, fmt.Errorf("declaration %s: %w", id, academic.ErrNotFound)
	}
	return d, nil
}

func (m *Memory) ListDeclarations(_ context.Context, key academic.CalendarKey) ([]academic.Declaration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []academic.Declaration
	for _, d := range m.declarations {
		if d.Key == key {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) MarkStale(_ context.Context, key academic.CalendarKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, d := range m.declarations {
		if d.Key == key && !d.Stale {
			d.Stale = true
			m.declarations[id] = d
			n++
		}
	}
	return n, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (m *Memory) HolidaysForYear(_ context.Context, year int) ([]academic.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []academic.Holiday
	for _, h := range m.holidays {
		if h.Recurring || h.Date.Year() == year {
			out = append(out, h)
		}
	}
	sortHolidays(out)
	return out, nil
}

func (m *Memory) ListHolidays(_ context.Context) ([]academic.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]academic.Holiday, 0, len(m.holidays))
	for _, h := range m.holidays {
		out = append(out, h)
	}
	sortHolidays(out)
	return out, nil
}

func (m *Memory) SaveHoliday(_ context.Context, h academic.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.holidays {
		if existing.Date.Equal(h.Date) && existing.Name == h.Name {
			existing.Recurring = h.Recurring
			m.holidays[id] = existing
			return nil
		}
	}
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	m.holidays[h.ID] = h
	return nil
}

func (m *Memory) DeleteHoliday(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.holidays[id]; !ok {
		return fmt.Errorf("holiday %s: %w", id, academic.ErrNotFound)
	}
	delete(m.holidays, id)
	return nil
}

func sortHolidays(hs []academic.Holiday) {
	sort.Slice(hs, func(i, j int) bool {
		if hs[i].Date.Equal(hs[j].Date) {
			return hs[i].Name < hs[j].Name
		}
		return hs[i].Date.Before(hs[j].Date)
	})
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against a view of the store and restores a snapshot when
// fn fails. The view shares the store's data; concurrent WithTx calls are
// serialized.
func (m *Memory) WithTx(_ context.Context, fn func(academic.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	semesters    map[academic.SemesterKey]academic.Semester
	calendars    map[academic.CalendarKey]map[academic.Date]academic.CalendarDay
	records      map[string]academic.TeachingHourRecord
	recordOrder  []string
	declarations map[string]academic.Declaration
	holidays     map[string]academic.Holiday
}

func (m *Memory) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := memorySnapshot{
		semesters:    make(map[academic.SemesterKey]academic.Semester, len(m.semesters)),
		calendars:    make(map[academic.CalendarKey]map[academic.Date]academic.CalendarDay, len(m.calendars)),
		records:      make(map[string]academic.TeachingHourRecord, len(m.records)),
		recordOrder:  append([]string(nil), m.recordOrder...),
		declarations: make(map[string]academic.Declaration, len(m.declarations)),
		holidays:     make(map[string]academic.Holiday, len(m.holidays)),
	}
	for k, v := range m.semesters {
		s.semesters[k] = copySemester(v)
	}
	for k, days := range m.calendars {
		cp := make(map[academic.Date]academic.CalendarDay, len(days))
		for d, v := range days {
			cp[d] = v
		}
		s.calendars[k] = cp
	}
	for k, v := range m.records {
		s.records[k] = v
	}
	for k, v := range m.declarations {
		s.declarations[k] = v
	}
	for k, v := range m.holidays {
		s.holidays[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.semesters = s.semesters
	m.calendars = s.calendars
	m.records = s.records
	m.recordOrder = s.recordOrder
	m.declarations = s.declarations
	m.holidays = s.holidays
}
