package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/i474232898/daily-dashboard/internal/common"
)

// GoogleSource reads calendars through the Google Calendar v3 API with a
// user's OAuth2 access token.
type GoogleSource struct {
	svc *gcal.Service
}

// NewGoogleSource authenticates every request with accessToken. Extra
// options are appended, so tests can redirect the endpoint.
func NewGoogleSource(ctx context.Context, accessToken string, opts ...option.ClientOption) (*GoogleSource, error) {
	if accessToken == "" {
		return nil, ErrNotSignedIn
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	all := append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)

	svc, err := gcal.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create calendar client: %w", err)
	}
	return &GoogleSource{svc: svc}, nil
}

// GoogleSourceFactory returns a SourceFactory bound to the given options.
func GoogleSourceFactory(opts ...option.ClientOption) SourceFactory {
	return func(ctx context.Context, accessToken string) (Source, error) {
		return NewGoogleSource(ctx, accessToken, opts...)
	}
}

func (g *GoogleSource) ListCalendars(ctx context.Context) ([]Calendar, error) {
	var out []Calendar
	err := g.svc.CalendarList.List().Context(ctx).Pages(ctx, func(page *gcal.CalendarList) error {
		for _, item := range page.Items {
			out = append(out, Calendar{
				ID:              item.Id,
				Summary:         item.Summary,
				BackgroundColor: item.BackgroundColor,
				Primary:         item.Primary,
				Selected:        item.Selected,
			})
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// ListEvents returns recurring events expanded into single instances,
// ordered by start time.
func (g *GoogleSource) ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error) {
	call := g.svc.Events.List(calendarID).
		Context(ctx).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	var out []Event
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			out = append(out, fromGoogleEvent(calendarID, item))
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func fromGoogleEvent(calendarID string, e *gcal.Event) Event {
	ev := Event{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		HTMLLink:    e.HtmlLink,
		ColorID:     e.ColorId,
		CalendarID:  calendarID,
	}
	if e.Start != nil {
		ev.Start = EventTime{DateTime: e.Start.DateTime, Date: e.Start.Date, TimeZone: e.Start.TimeZone}
	}
	if e.End != nil {
		ev.End = EventTime{DateTime: e.End.DateTime, Date: e.End.Date, TimeZone: e.End.TimeZone}
	}
	return ev
}

// classify maps rejected credentials to ErrNotSignedIn.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", ErrNotSignedIn, err)
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) || common.HasAny(err.Error(), "invalid_grant", "Invalid Credentials") {
		return fmt.Errorf("%w: %v", ErrNotSignedIn, err)
	}
	return err
}
