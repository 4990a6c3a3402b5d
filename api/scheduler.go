/*
scheduler.go - Scheduled holiday feed import

PURPOSE:
  Periodically imports public holidays from an external source (usually
  an ICS feed) into the holiday store, so calendar builds never wait on
  the network.

DESIGN:
  - Runs on a robfig/cron schedule (standard 5-field spec)
  - Imports the current and the next calendar year
  - Upserts by (date, name); re-imports are idempotent
  - A failed run is logged and retried at the next tick

USAGE:
  refresher, err := NewHolidayRefresher(store, holiday.NewICSSource(url), "0 3 * * *", log)
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - handlers.go: RefreshHolidays endpoint (manual run)
  - holiday/ics.go: ICS feed source
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

// refreshTimeout bounds one scheduled run.
const refreshTimeout = 2 * time.Minute

// HolidayRefresher copies holidays from a source into the holiday store.
type HolidayRefresher struct {
	Store  academic.HolidayStore
	Source academic.HolidaySource
	Spec   string

	log  *zap.Logger
	cron *cron.Cron
	now  func() time.Time

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

// NewHolidayRefresher validates the cron spec and creates a stopped refresher.
func NewHolidayRefresher(store academic.HolidayStore, source academic.HolidaySource, spec string, log *zap.Logger) (*HolidayRefresher, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("holiday refresh schedule %q: %w", spec, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HolidayRefresher{
		Store:  store,
		Source: source,
		Spec:   spec,
		log:    log,
		now:    time.Now,
	}, nil
}

// Start schedules the job.
func (hr *HolidayRefresher) Start() error {
	hr.mu.Lock()
	defer hr.mu.Unlock()

	if hr.running {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(hr.Spec, hr.tick); err != nil {
		return err
	}
	c.Start()
	hr.cron = c
	hr.running = true

	hr.log.Info("holiday refresher started", zap.String("schedule", hr.Spec))
	return nil
}

// Stop stops the schedule and waits for a running job to finish.
func (hr *HolidayRefresher) Stop() {
	hr.mu.Lock()
	c := hr.cron
	hr.cron = nil
	hr.running = false
	hr.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		hr.log.Info("holiday refresher stopped")
	}
}

func (hr *HolidayRefresher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if _, err := hr.RunNow(ctx); err != nil {
		hr.log.Warn("holiday refresh failed", zap.Error(err))
	}
}

// RunNow imports the current and next year and returns the number of
// holidays written.
func (hr *HolidayRefresher) RunNow(ctx context.Context) (int, error) {
	year := hr.now().Year()
	count := 0
	var runErr error

	for _, y := range []int{year, year + 1} {
		hs, err := hr.Source.HolidaysForYear(ctx, y)
		if err != nil {
			runErr = fmt.Errorf("holidays for %d: %w", y, err)
			break
		}
		for _, h := range hs {
			h.Recurring = false
			if err := hr.Store.SaveHoliday(ctx, h); err != nil {
				runErr = fmt.Errorf("save holiday %s %q: %w", h.Date, h.Name, err)
				break
			}
			count++
		}
		if runErr != nil {
			break
		}
	}

	hr.mu.Lock()
	hr.lastRun = hr.now()
	hr.lastErr = runErr
	hr.mu.Unlock()

	if runErr != nil {
		return count, runErr
	}
	hr.log.Info("holidays refreshed", zap.Int("count", count), zap.Int("year", year))
	return count, nil
}

// LastRun returns the time and error of the last run.
func (hr *HolidayRefresher) LastRun() (time.Time, error) {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	return hr.lastRun, hr.lastErr
}
