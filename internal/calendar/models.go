// Package calendar fetches upcoming events from the user's calendars and
// groups them into per-day buckets.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotSignedIn is returned when the upstream rejects the user's token.
var ErrNotSignedIn = errors.New("not signed in to calendar")

// DateKeyLayout formats day bucket keys independently of any locale.
const DateKeyLayout = "2006-01-02"

// Calendar is one calendar from the user's calendar list.
type Calendar struct {
	ID              string `json:"id"`
	Summary         string `json:"summary"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Primary         bool   `json:"primary,omitempty"`
	Selected        bool   `json:"selected,omitempty"`
}

// EventTime is either an all-day Date (YYYY-MM-DD) or a precise DateTime (RFC 3339).
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// AllDay reports whether the time is a calendar date without a clock time.
func (t EventTime) AllDay() bool {
	return t.DateTime == "" && t.Date != ""
}

// IsZero reports whether neither form is set.
func (t EventTime) IsZero() bool {
	return t.DateTime == "" && t.Date == ""
}

// Instant resolves the time to a point on the timeline. All-day dates are
// midnight in tz.
func (t EventTime) Instant(tz *time.Location) (time.Time, error) {
	if tz == nil {
		tz = time.UTC
	}
	switch {
	case t.DateTime != "":
		ts, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse dateTime %q: %w", t.DateTime, err)
		}
		return ts.In(tz), nil
	case t.Date != "":
		d, err := time.ParseInLocation(DateKeyLayout, t.Date, tz)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse date %q: %w", t.Date, err)
		}
		return d, nil
	default:
		return time.Time{}, errors.New("event time has neither date nor dateTime")
	}
}

// Event is a single (expanded) calendar event, decorated with its calendar.
type Event struct {
	ID              string    `json:"id"`
	Summary         string    `json:"summary"`
	Description     string    `json:"description,omitempty"`
	Location        string    `json:"location,omitempty"`
	HTMLLink        string    `json:"htmlLink,omitempty"`
	Start           EventTime `json:"start"`
	End             EventTime `json:"end"`
	ColorID         string    `json:"colorId,omitempty"`
	CalendarID      string    `json:"calendarId"`
	CalendarSummary string    `json:"calendarSummary,omitempty"`
	CalendarColor   string    `json:"calendarColor,omitempty"`
}

// Source lists calendars and their events on behalf of one user.
type Source interface {
	ListCalendars(ctx context.Context) ([]Calendar, error)
	ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error)
}

// SourceFactory builds a Source for a user's access token.
type SourceFactory func(ctx context.Context, accessToken string) (Source, error)
