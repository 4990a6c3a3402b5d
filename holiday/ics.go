package holiday

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

// =============================================================================
// ICS FEED
// =============================================================================

const (
	// DefaultMaxFeedBytes caps the size of a downloaded feed.
	DefaultMaxFeedBytes = 4 << 20
	defaultFetchTimeout = 15 * time.Second
	icsDateLayout       = "20060102"
)

// ErrFeedTooLarge is returned when a feed exceeds MaxBytes.
var ErrFeedTooLarge = errors.New("ics feed too large")

// ICSSource reads holidays from an ICS feed. Only all-day VEVENTs count;
// timed events are ignored. Yearly RRULEs are expanded for the asked year.
type ICSSource struct {
	URL      string
	Client   *http.Client
	MaxBytes int64
}

var _ academic.HolidaySource = (*ICSSource)(nil)

// NewICSSource creates a source with a 15s timeout and a 4 MiB size cap.
func NewICSSource(url string) *ICSSource {
	return &ICSSource{
		URL:      url,
		Client:   &http.Client{Timeout: defaultFetchTimeout},
		MaxBytes: DefaultMaxFeedBytes,
	}
}

// HolidaysForYear downloads the feed and returns the holidays of the year.
func (s *ICSSource) HolidaysForYear(ctx context.Context, year int) ([]academic.Holiday, error) {
	body, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return ParseICS(bytes.NewReader(body), year)
}

// Fetch downloads the raw feed. webcal:// URLs are fetched over https.
func (s *ICSSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.URL == "" {
		return nil, errors.New("ics source URL is empty")
	}
	url := s.URL
	if rest, ok := strings.CutPrefix(url, "webcal://"); ok {
		url = "https://" + rest
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ics feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch ics feed: unexpected status %d", resp.StatusCode)
	}

	limit := s.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxFeedBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read ics feed: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFeedTooLarge, limit)
	}
	return body, nil
}

// ParseICS turns the all-day events of a calendar into holidays falling in
// year. Multi-day events yield one holiday per day (DTEND is exclusive).
func ParseICS(r io.Reader, year int) ([]academic.Holiday, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse ics feed: %w", err)
	}

	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	var out []academic.Holiday
	for _, ev := range cal.Events() {
		start, ok := allDayDate(ev.GetProperty(ical.ComponentPropertyDtStart))
		if !ok {
			continue
		}
		length := 1
		if end, ok := allDayDate(ev.GetProperty(ical.ComponentPropertyDtEnd)); ok && end.After(start) {
			length = academic.DaysBetween(start, end)
		}

		name := "Holiday"
		if p := ev.GetProperty(ical.ComponentPropertySummary); p != nil && strings.TrimSpace(p.Value) != "" {
			name = strings.TrimSpace(p.Value)
		}

		starts := []time.Time{start.Time}
		if p := ev.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
			rule, err := rrule.StrToRRule(p.Value)
			if err != nil {
				return nil, fmt.Errorf("event %q: %w", name, err)
			}
			rule.DTStart(start.Time)
			// Reach back far enough to catch occurrences spilling into the year.
			starts = rule.Between(yearStart.AddDate(0, 0, -length), yearEnd, true)
		}

		for _, s := range starts {
			first := academic.DateOf(s)
			for i := 0; i < length; i++ {
				date := first.AddDays(i)
				if date.Year() == year {
					out = append(out, academic.Holiday{Date: date, Name: name})
				}
			}
		}
	}

	sortByDate(out)
	return out, nil
}

// allDayDate reads a DATE-valued property. Timed values are rejected.
func allDayDate(p *ical.IANAProperty) (academic.Date, bool) {
	if p == nil {
		return academic.Date{}, false
	}
	v := strings.TrimSpace(p.Value)
	if v == "" || strings.Contains(v, "T") {
		return academic.Date{}, false
	}
	t, err := time.Parse(icsDateLayout, v)
	if err != nil {
		return academic.Date{}, false
	}
	return academic.DateOf(t), true
}
