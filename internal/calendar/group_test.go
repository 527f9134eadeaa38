package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var warsawTZ = time.FixedZone("CEST", 2*3600)

func allDay(id, start, end string) Event {
	return Event{ID: id, Summary: id, Start: EventTime{Date: start}, End: EventTime{Date: end}}
}

func timed(id, start, end string) Event {
	return Event{ID: id, Summary: id, Start: EventTime{DateTime: start}, End: EventTime{DateTime: end}}
}

func ids(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestGroupByDateExpandsAllDayEventWithExclusiveEnd(t *testing.T) {
	now := time.Date(2025, 8, 11, 9, 0, 0, 0, warsawTZ)
	groups := GroupByDate([]Event{allDay("trip", "2025-08-11", "2025-08-13")}, now, warsawTZ)

	assert.Equal(t, []string{"2025-08-11", "2025-08-12"}, SortedDays(groups))
	assert.Equal(t, []string{"trip"}, ids(groups["2025-08-11"]))
	assert.Equal(t, []string{"trip"}, ids(groups["2025-08-12"]))
	assert.NotContains(t, groups, "2025-08-13")
}

func TestGroupByDateClipsPastStartToToday(t *testing.T) {
	now := time.Date(2025, 8, 12, 9, 0, 0, 0, warsawTZ)
	groups := GroupByDate([]Event{allDay("conference", "2025-08-10", "2025-08-14")}, now, warsawTZ)

	assert.Equal(t, []string{"2025-08-12", "2025-08-13"}, SortedDays(groups))
}

func TestGroupByDateDropsEventsThatEndedBeforeToday(t *testing.T) {
	now := time.Date(2025, 8, 12, 9, 0, 0, 0, warsawTZ)
	groups := GroupByDate([]Event{allDay("old", "2025-08-10", "2025-08-12")}, now, warsawTZ)

	assert.Empty(t, groups)
}

func TestGroupByDateTimedEvents(t *testing.T) {
	now := time.Date(2025, 8, 11, 9, 0, 0, 0, warsawTZ)
	events := []Event{
		timed("standup", "2025-08-11T10:00:00+02:00", "2025-08-11T10:15:00+02:00"),
		timed("overnight", "2025-08-11T22:00:00+02:00", "2025-08-12T02:00:00+02:00"),
		timed("until-midnight", "2025-08-12T20:00:00+02:00", "2025-08-13T00:00:00+02:00"),
	}
	groups := GroupByDate(events, now, warsawTZ)

	assert.Equal(t, []string{"2025-08-11", "2025-08-12"}, SortedDays(groups))
	assert.Equal(t, []string{"standup", "overnight"}, ids(groups["2025-08-11"]))
	assert.Equal(t, []string{"overnight", "until-midnight"}, ids(groups["2025-08-12"]))
}

func TestGroupByDateUsesDisplayTimezone(t *testing.T) {
	// 23:30 UTC is already the next day in Warsaw.
	now := time.Date(2025, 8, 11, 8, 0, 0, 0, time.UTC)
	ev := timed("late", "2025-08-11T23:30:00Z", "2025-08-11T23:45:00Z")

	assert.Equal(t, []string{"2025-08-11"}, SortedDays(GroupByDate([]Event{ev}, now, time.UTC)))
	assert.Equal(t, []string{"2025-08-12"}, SortedDays(GroupByDate([]Event{ev}, now, warsawTZ)))
}

func TestGroupByDateCapsSpan(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	groups := GroupByDate([]Event{allDay("forever", "2025-01-01", "2030-01-01")}, now, time.UTC)

	assert.Len(t, groups, maxSpanDays)
}

func TestGroupByDateEdgeCases(t *testing.T) {
	now := time.Date(2025, 8, 11, 9, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: "no-start"},
		{ID: "garbage", Start: EventTime{DateTime: "tomorrow-ish"}},
		{ID: "no-end", Start: EventTime{Date: "2025-08-14"}},
	}
	groups := GroupByDate(events, now, time.UTC)

	assert.Equal(t, []string{"no-start"}, ids(groups["2025-08-11"]))
	assert.Equal(t, []string{"no-end"}, ids(groups["2025-08-14"]))
	assert.Len(t, groups, 2)
}

func TestSortedDaysChronological(t *testing.T) {
	groups := map[string][]Event{"2025-12-01": nil, "2025-08-11": nil, "2026-01-02": nil, "2025-08-09": nil}
	assert.Equal(t, []string{"2025-08-09", "2025-08-11", "2025-12-01", "2026-01-02"}, SortedDays(groups))
}

func TestDays(t *testing.T) {
	now := time.Date(2025, 8, 11, 9, 0, 0, 0, warsawTZ)
	days := Days([]Event{
		allDay("b", "2025-08-12", "2025-08-13"),
		timed("a", "2025-08-11T10:00:00+02:00", "2025-08-11T11:00:00+02:00"),
	}, now, warsawTZ)

	require.Len(t, days, 2)
	assert.Equal(t, "2025-08-11", days[0].Date)
	assert.Equal(t, []string{"a"}, ids(days[0].Events))
	assert.Equal(t, "2025-08-12", days[1].Date)
}

func TestDaysOrdersEachBucketInDisplayZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	now := time.Date(2025, 8, 11, 9, 0, 0, 0, time.UTC)

	// Ordered as a UTC sort would leave them.
	days := Days([]Event{
		timed("timed", "2025-08-12T05:00:00+09:00", "2025-08-12T06:00:00+09:00"),
		allDay("allday", "2025-08-12", "2025-08-13"),
	}, now, tokyo)

	require.Len(t, days, 1)
	assert.Equal(t, "2025-08-12", days[0].Date)
	assert.Equal(t, []string{"allday", "timed"}, ids(days[0].Events))
}

func TestSortEvents(t *testing.T) {
	events := []Event{
		timed("noon", "2025-08-11T12:00:00+02:00", ""),
		{ID: "broken", Start: EventTime{DateTime: "nope"}},
		allDay("all-day", "2025-08-11", "2025-08-12"),
		timed("midnight", "2025-08-11T00:00:00+02:00", ""),
		timed("early", "2025-08-11T08:00:00+02:00", ""),
	}
	SortEvents(events, warsawTZ)

	assert.Equal(t, []string{"all-day", "midnight", "early", "noon", "broken"}, ids(events))
}

func TestEventTimeInstant(t *testing.T) {
	ts, err := EventTime{Date: "2025-08-11"}.Instant(warsawTZ)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 8, 11, 0, 0, 0, 0, warsawTZ), ts)

	ts, err = EventTime{DateTime: "2025-08-11T10:00:00Z"}.Instant(warsawTZ)
	require.NoError(t, err)
	assert.Equal(t, 12, ts.Hour())

	_, err = EventTime{}.Instant(nil)
	assert.Error(t, err)
}
