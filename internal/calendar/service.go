package calendar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/i474232898/daily-dashboard/internal/cache"
	"github.com/i474232898/daily-dashboard/internal/common"
	"github.com/i474232898/daily-dashboard/pkg/logger"
)

const (
	// DefaultCalendarID is used when no calendars are selected.
	DefaultCalendarID = "primary"
	// DefaultDaysAhead is the look-ahead window when none is given.
	DefaultDaysAhead = 7
	// MaxDaysAhead bounds the look-ahead window.
	MaxDaysAhead = 366
	// CacheTTL is how long calendar lists and events are reused.
	CacheTTL = 5 * time.Minute
)

const (
	listKeyPrefix   = "calendar_list"
	eventsKeyPrefix = "calendar_events"
)

// ServiceOptions tune a Service.
type ServiceOptions struct {
	// Now overrides the clock.
	Now func() time.Time
	// Cache memoizes calendar lists and events per user. Nil disables caching.
	Cache *cache.Cache
}

// EventsRequest selects the events FetchEvents returns.
type EventsRequest struct {
	// User scopes cached results; see UserKey. Empty bypasses the cache.
	User        string
	CalendarIDs []string
	DaysAhead   int
	// TZ is the display zone events are ordered in. Nil uses the clock's zone.
	TZ *time.Location
}

// Service aggregates events across calendars.
type Service struct {
	logger *logger.Logger
	now    func() time.Time
	cache  *cache.Cache
}

// NewService creates a new Service.
func NewService(log *logger.Logger, opts ServiceOptions) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		logger: log.Named("calendar"),
		now:    opts.Now,
		cache:  opts.Cache,
	}
}

// UserKey derives the cache scope for an access token without keeping the
// token itself in the store.
func UserKey(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return hex.EncodeToString(sum[:])
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// ListCalendars returns the user's calendars, from the cache when fresh.
func (s *Service) ListCalendars(ctx context.Context, src Source, user string) ([]Calendar, error) {
	if s.cache == nil || user == "" {
		return src.ListCalendars(ctx)
	}
	return cache.GetOrFetch(ctx, s.cache, common.CacheKey(listKeyPrefix, user), src.ListCalendars)
}

// FetchEvents lists events from now until DaysAhead for every calendar id
// concurrently. A calendar whose fetch fails contributes no events; only
// when every calendar was rejected for credentials is ErrNotSignedIn returned.
// Events are decorated with their calendar's summary and color and sorted
// by start in req.TZ.
func (s *Service) FetchEvents(ctx context.Context, src Source, req EventsRequest) ([]Event, error) {
	ids := dedupe(req.CalendarIDs)
	if len(ids) == 0 {
		ids = []string{DefaultCalendarID}
	}
	daysAhead := req.DaysAhead
	if daysAhead <= 0 {
		daysAhead = DefaultDaysAhead
	}
	if daysAhead > MaxDaysAhead {
		daysAhead = MaxDaysAhead
	}

	from := s.now()
	to := from.AddDate(0, 0, daysAhead)
	tz := req.TZ
	if tz == nil {
		tz = from.Location()
	}

	meta := s.calendarIndex(ctx, src, req.User)

	var (
		wg       sync.WaitGroup
		results  = make([][]Event, len(ids))
		failures = make([]error, len(ids))
	)

	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()

			events, err := s.listEvents(ctx, src, req.User, id, daysAhead, from, to)
			if err != nil {
				// Log and continue; the other calendars still render.
				s.logger.Warn("Calendar fetch failed", logger.String("calendar", id), logger.Error(err))
				failures[i] = err
				return
			}
			results[i] = events
		}(i, id)
	}

	wg.Wait()

	if allNotSignedIn(failures) {
		return nil, ErrNotSignedIn
	}

	var merged []Event
	for i, events := range results {
		cal := meta[ids[i]]
		for _, ev := range events {
			ev.CalendarID = ids[i]
			if cal.Summary != "" {
				ev.CalendarSummary = cal.Summary
			}
			if cal.BackgroundColor != "" {
				ev.CalendarColor = cal.BackgroundColor
			}
			merged = append(merged, ev)
		}
	}

	SortEvents(merged, tz)
	return merged, nil
}

// listEvents is keyed by the window length rather than its bounds, so a
// cached answer is reused while the window slides for up to CacheTTL.
func (s *Service) listEvents(ctx context.Context, src Source, user, id string, daysAhead int, from, to time.Time) ([]Event, error) {
	fetch := func(ctx context.Context) ([]Event, error) {
		return src.ListEvents(ctx, id, from, to)
	}
	if s.cache == nil || user == "" {
		return fetch(ctx)
	}
	key := common.CacheKey(eventsKeyPrefix, user, id, strconv.Itoa(daysAhead))
	return cache.GetOrFetch(ctx, s.cache, key, fetch)
}

// calendarIndex is best effort; events render without decoration when the
// calendar list is unavailable.
func (s *Service) calendarIndex(ctx context.Context, src Source, user string) map[string]Calendar {
	idx := make(map[string]Calendar)
	cals, err := s.ListCalendars(ctx, src, user)
	if err != nil {
		s.logger.Debug("Calendar list unavailable", logger.Error(err))
		return idx
	}
	for _, c := range cals {
		idx[c.ID] = c
		if c.Primary {
			idx[DefaultCalendarID] = c
		}
	}
	return idx
}

func allNotSignedIn(errs []error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, err := range errs {
		if !errors.Is(err, ErrNotSignedIn) {
			return false
		}
	}
	return true
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SortEvents orders events by start instant. On equal instants all-day
// events come first; events with an unparseable start sink to the end.
func SortEvents(events []Event, tz *time.Location) {
	sort.SliceStable(events, func(i, j int) bool {
		a, aErr := events[i].Start.Instant(tz)
		b, bErr := events[j].Start.Instant(tz)
		switch {
		case aErr != nil || bErr != nil:
			return aErr == nil && bErr != nil
		case !a.Equal(b):
			return a.Before(b)
		default:
			return events[i].Start.AllDay() && !events[j].Start.AllDay()
		}
	})
}
