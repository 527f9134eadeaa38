package httpapi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	// ?tz= names must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/daily-dashboard/internal/calendar"
	"github.com/i474232898/daily-dashboard/internal/proxy"
	"github.com/i474232898/daily-dashboard/internal/settings"
	"github.com/i474232898/daily-dashboard/internal/weather"
)

var validate = validator.New()

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Weather  *weather.Service
	Calendar *calendar.Service
	Sources  calendar.SourceFactory
	Settings *settings.Store

	AccuWeatherProxy *proxy.Proxy
	AirQualityProxy  *proxy.Proxy

	// StaticDir holds the built single-page app. Empty disables static serving.
	StaticDir string
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "daily-dashboard",
		})
	})

	if d.AccuWeatherProxy != nil {
		d.AccuWeatherProxy.Register(app, "/api/accuweather")
	}
	if d.AirQualityProxy != nil {
		d.AirQualityProxy.Register(app, "/api/airquality")
	}

	v1 := app.Group("/api/v1")
	registerWeather(v1, d)
	registerCalendar(v1, d)
	registerSettings(v1, d)

	v1.Delete("/cache", func(c *fiber.Ctx) error {
		if err := d.Weather.ClearCache(c.UserContext()); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to clear cache")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.All("/api/*", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "route not found")
	})

	registerStatic(app, d.StaticDir)
}

func registerWeather(r fiber.Router, d Deps) {
	r.Get("/weather", func(c *fiber.Ctx) error {
		s, err := weatherSettings(c, d.Settings)
		if err != nil {
			return err
		}
		dash, err := d.Weather.Dashboard(c.UserContext(), s)
		if err != nil {
			return upstreamError(err)
		}
		return c.JSON(dash)
	})

	r.Get("/weather/location", func(c *fiber.Ctx) error {
		s, err := weatherSettings(c, d.Settings)
		if err != nil {
			return err
		}
		loc, err := d.Weather.Location(c.UserContext(), s)
		if err != nil {
			return upstreamError(err)
		}
		return c.JSON(loc)
	})

	// Forecast and air quality answer null when the upstream failed.
	r.Get("/weather/forecast", func(c *fiber.Ctx) error {
		s, err := weatherSettings(c, d.Settings)
		if err != nil {
			return err
		}
		f, err := d.Weather.Forecast(c.UserContext(), s)
		if err != nil {
			return upstreamError(err)
		}
		return c.JSON(f)
	})

	r.Get("/weather/airquality", func(c *fiber.Ctx) error {
		s, err := weatherSettings(c, d.Settings)
		if err != nil {
			return err
		}
		aq, err := d.Weather.AirQuality(c.UserContext(), s)
		if err != nil {
			return upstreamError(err)
		}
		return c.JSON(aq)
	})

	r.Get("/weather/icon", func(c *fiber.Ctx) error {
		var q iconQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{
			"icon":    weather.WeatherIcon(q.Code, q.Provider, q.At),
			"text":    weather.WeatherText(q.Code, q.Provider),
			"daytime": weather.IsDaytime(q.At),
		})
	})

	r.Get("/weather/providers", func(c *fiber.Ctx) error {
		forecast, airQuality := d.Weather.Providers()
		return c.JSON(fiber.Map{
			"forecast":   forecast,
			"airQuality": airQuality,
		})
	})
}

func registerCalendar(r fiber.Router, d Deps) {
	r.Get("/calendar/calendars", func(c *fiber.Ctx) error {
		src, user, err := calendarSource(c, d.Sources)
		if err != nil {
			return err
		}
		cals, err := d.Calendar.ListCalendars(c.UserContext(), src, user)
		if err != nil {
			return upstreamError(err)
		}
		return c.JSON(fiber.Map{"calendars": cals})
	})

	r.Get("/calendar/events", func(c *fiber.Ctx) error {
		var q eventsQuery
		if err := q.bind(c, d.Settings); err != nil {
			return err
		}

		src, user, err := calendarSource(c, d.Sources)
		if err != nil {
			return err
		}

		events, err := d.Calendar.FetchEvents(c.UserContext(), src, calendar.EventsRequest{
			User:        user,
			CalendarIDs: q.CalendarIDs,
			DaysAhead:   q.Days,
			TZ:          q.TZ,
		})
		if err != nil {
			return upstreamError(err)
		}
		if events == nil {
			events = []calendar.Event{}
		}

		return c.JSON(fiber.Map{
			"events": events,
			"days":   calendar.Days(events, d.Calendar.Now(), q.TZ),
		})
	})
}

func registerSettings(r fiber.Router, d Deps) {
	r.Get("/settings/:name", func(c *fiber.Ctx) error {
		v, err := d.Settings.Get(c.UserContext(), c.Params("name"))
		if err != nil {
			return err
		}
		return c.JSON(v)
	})

	r.Put("/settings/:name", func(c *fiber.Ctx) error {
		v, err := d.Settings.Put(c.UserContext(), c.Params("name"), c.Body())
		if err != nil {
			return err
		}
		if ws, ok := v.(weather.Settings); ok {
			if _, err := d.Weather.ApplySettings(ws); err != nil {
				return err
			}
		}
		return c.JSON(v)
	})
}

// registerStatic serves the SPA and falls back to its index for any other GET.
func registerStatic(app *fiber.App, dir string) {
	if dir == "" {
		return
	}
	index := filepath.Join(dir, "index.html")

	app.Static("/", dir)
	app.Get("/*", func(c *fiber.Ctx) error {
		if _, err := os.Stat(index); err != nil {
			return fiber.NewError(fiber.StatusNotFound, "app not built")
		}
		return c.SendFile(index)
	})
}

// weatherQuery overrides the saved weather settings for one request.
type weatherQuery struct {
	City               string `validate:"omitempty,max=100"`
	Provider           string `validate:"omitempty,oneof=openmeteo accuweather"`
	AirQualityProvider string `validate:"omitempty,oneof=openmeteo iqair"`
	Language           string `validate:"omitempty,max=16"`
}

func weatherSettings(c *fiber.Ctx, store *settings.Store) (weather.Settings, error) {
	q := weatherQuery{
		City:               strings.TrimSpace(c.Query("city")),
		Provider:           strings.ToLower(c.Query("provider")),
		AirQualityProvider: strings.ToLower(c.Query("aqProvider")),
		Language:           c.Query("lang"),
	}
	if err := validate.Struct(q); err != nil {
		return weather.Settings{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	s, err := store.Weather(c.UserContext())
	if err != nil {
		return weather.Settings{}, fiber.NewError(fiber.StatusInternalServerError, "failed to read weather settings")
	}
	if q.City != "" {
		s.City = q.City
	}
	if q.Provider != "" {
		s.Provider = weather.Provider(q.Provider)
	}
	if q.AirQualityProvider != "" {
		s.AirQualityProvider = weather.Provider(q.AirQualityProvider)
	}
	if q.Language != "" {
		s.Language = q.Language
	}
	return s, nil
}

// iconQuery holds query parameters for the icon endpoint.
type iconQuery struct {
	Code     int
	Provider weather.Provider `validate:"required,oneof=openmeteo accuweather"`
	At       time.Time
}

func (q *iconQuery) bind(c *fiber.Ctx) error {
	code, err := strconv.Atoi(c.Query("code"))
	if err != nil {
		return errors.New("code must be an integer")
	}
	q.Code = code
	q.Provider = weather.Provider(strings.ToLower(c.Query("provider", string(weather.ProviderOpenMeteo))))

	q.At = time.Now()
	if at := c.Query("time"); at != "" {
		ts, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return errors.New("invalid time format; use RFC3339")
		}
		q.At = ts
	}

	return validate.Struct(q)
}

// eventsQuery holds query parameters for the events endpoint. Missing
// calendars and days come from the saved calendar settings.
type eventsQuery struct {
	CalendarIDs []string `validate:"max=50,dive,required"`
	Days        int      `validate:"min=1,max=366"`
	TZ          *time.Location
}

func (q *eventsQuery) bind(c *fiber.Ctx, store *settings.Store) error {
	saved, err := store.Calendar(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read calendar settings")
	}

	q.CalendarIDs = saved.SelectedCalendarIDs
	if ids := c.Query("calendars"); ids != "" {
		q.CalendarIDs = strings.Split(ids, ",")
	}

	q.Days = saved.DaysAhead
	if days := c.Query("days"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "days must be an integer")
		}
		q.Days = n
	}

	q.TZ = time.Local
	if tz := c.Query("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unknown time zone")
		}
		q.TZ = loc
	}

	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// calendarSource builds the caller's Source and the key their cached
// calendar data is stored under.
func calendarSource(c *fiber.Ctx, factory calendar.SourceFactory) (calendar.Source, string, error) {
	token := bearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return nil, "", calendar.ErrNotSignedIn
	}
	src, err := factory(c.UserContext(), token)
	if err != nil {
		return nil, "", err
	}
	return src, calendar.UserKey(token), nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// upstreamError keeps classified errors for ErrorHandler and reports the
// rest as a bad gateway.
func upstreamError(err error) error {
	switch {
	case errors.Is(err, weather.ErrConfiguration),
		errors.Is(err, weather.ErrLocationNotFound),
		errors.Is(err, calendar.ErrNotSignedIn):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.As(err, &ve),
		errors.Is(err, weather.ErrConfiguration),
		errors.Is(err, settings.ErrInvalid):
		code = fiber.StatusBadRequest
	case errors.Is(err, weather.ErrLocationNotFound),
		errors.Is(err, settings.ErrUnknownKey):
		code = fiber.StatusNotFound
	case errors.Is(err, calendar.ErrNotSignedIn):
		code = fiber.StatusUnauthorized
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
