package calendar

import (
	"sort"
	"time"
)

// maxSpanDays caps how many buckets one event may occupy.
const maxSpanDays = 366

// Day is one bucket of the grouped view.
type Day struct {
	Date   string  `json:"date"`
	Events []Event `json:"events"`
}

// GroupByDate places every event in each calendar day it covers, starting
// no earlier than today (in tz). All-day end dates are exclusive; a timed
// event ending exactly at midnight does not occupy the following day. Keys
// use DateKeyLayout. Events without any start land in today's bucket.
func GroupByDate(events []Event, now time.Time, tz *time.Location) map[string][]Event {
	if tz == nil {
		tz = time.UTC
	}
	today := midnight(now.In(tz))
	groups := make(map[string][]Event)

	for _, ev := range events {
		first, endExclusive, ok := span(ev, tz, today)
		if !ok {
			continue
		}

		if first.Before(today) {
			first = today
		}

		for i := 0; i < maxSpanDays; i++ {
			day := time.Date(first.Year(), first.Month(), first.Day()+i, 0, 0, 0, 0, tz)
			if !day.Before(endExclusive) {
				break
			}
			key := day.Format(DateKeyLayout)
			groups[key] = append(groups[key], ev)
		}
	}

	return groups
}

// span returns the first day and the exclusive last day an event covers.
func span(ev Event, tz *time.Location, today time.Time) (time.Time, time.Time, bool) {
	if ev.Start.IsZero() {
		return today, today.AddDate(0, 0, 1), true
	}

	start, err := ev.Start.Instant(tz)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	first := midnight(start)

	var endExclusive time.Time
	end, err := ev.End.Instant(tz)
	switch {
	case err != nil || !end.After(start):
		endExclusive = first.AddDate(0, 0, 1)
	case ev.End.AllDay():
		endExclusive = midnight(end)
	default:
		// The day containing the last instant of the event, plus one.
		last := midnight(end.Add(-time.Nanosecond))
		endExclusive = last.AddDate(0, 0, 1)
	}

	return first, endExclusive, true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SortedDays returns the bucket keys in chronological order.
func SortedDays(groups map[string][]Event) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	// YYYY-MM-DD sorts lexically in date order.
	sort.Strings(keys)
	return keys
}

// Days groups events and returns the buckets in order, each sorted by
// start in tz.
func Days(events []Event, now time.Time, tz *time.Location) []Day {
	if tz == nil {
		tz = time.UTC
	}
	groups := GroupByDate(events, now, tz)
	keys := SortedDays(groups)
	out := make([]Day, 0, len(keys))
	for _, k := range keys {
		bucket := groups[k]
		SortEvents(bucket, tz)
		out = append(out, Day{Date: k, Events: bucket})
	}
	return out
}
