package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/daily-dashboard/internal/cache"
	"github.com/i474232898/daily-dashboard/internal/calendar"
	"github.com/i474232898/daily-dashboard/internal/proxy"
	"github.com/i474232898/daily-dashboard/internal/settings"
	"github.com/i474232898/daily-dashboard/internal/store"
	"github.com/i474232898/daily-dashboard/internal/weather"
	"github.com/i474232898/daily-dashboard/pkg/logger"
)

var testNow = time.Date(2025, 8, 11, 9, 0, 0, 0, time.UTC)

// stubMeteo answers for every city except "Atlantis".
type stubMeteo struct {
	failForecast bool
}

func (s *stubMeteo) ID() weather.Provider { return weather.ProviderOpenMeteo }

func (s *stubMeteo) Geocode(_ context.Context, city, _ string) (weather.Location, error) {
	if strings.EqualFold(city, "Atlantis") {
		return weather.Location{}, fmt.Errorf("%w: %s", weather.ErrLocationNotFound, city)
	}
	return weather.Location{ID: "1", Name: city, Country: "Poland", Latitude: 52.23, Longitude: 21.01}, nil
}

func (s *stubMeteo) Forecast(_ context.Context, _ weather.Location) (weather.Forecast, error) {
	if s.failForecast {
		return weather.Forecast{}, fmt.Errorf("upstream 503")
	}
	return weather.Forecast{
		Provider: weather.ProviderOpenMeteo,
		Current:  weather.Current{Time: testNow, Temperature: 21.5, WeatherCode: 0},
	}, nil
}

func (s *stubMeteo) AirQuality(_ context.Context, _ weather.Location) (weather.AirQuality, error) {
	return weather.NewAirQuality(35, weather.ProviderOpenMeteo), nil
}

type stubCalendar struct {
	listCalls   atomic.Int32
	eventsCalls atomic.Int32
}

func (s *stubCalendar) ListCalendars(context.Context) ([]calendar.Calendar, error) {
	s.listCalls.Add(1)
	return []calendar.Calendar{{ID: "primary", Summary: "Me", Primary: true}}, nil
}

func (s *stubCalendar) ListEvents(_ context.Context, id string, _, _ time.Time) ([]calendar.Event, error) {
	s.eventsCalls.Add(1)
	return []calendar.Event{{
		ID:      id + "-standup",
		Summary: "Standup",
		Start:   calendar.EventTime{DateTime: "2025-08-11T10:00:00Z"},
		End:     calendar.EventTime{DateTime: "2025-08-11T10:15:00Z"},
	}}, nil
}

type testEnv struct {
	app      *fiber.App
	weather  *weather.Service
	settings *settings.Store
	calendar *stubCalendar
	tokens   []string
}

func newTestEnv(t *testing.T, meteo *stubMeteo, staticDir string) *testEnv {
	t.Helper()
	log := logger.Nop()

	cacheKV := store.NewMemoryStore(0)
	c := cache.New(cacheKV, cache.Options{TTL: time.Hour}, log)
	svc := weather.NewService(c, []weather.Upstream{meteo}, log, weather.ServiceOptions{
		InitTimeout: time.Second,
		Now:         func() time.Time { return testNow },
	})

	env := &testEnv{
		app:      fiber.New(fiber.Config{ErrorHandler: ErrorHandler}),
		weather:  svc,
		settings: settings.NewStore(store.NewMemoryStore(0), settings.Defaults{}, log),
		calendar: &stubCalendar{},
	}

	RegisterRoutes(env.app, Deps{
		Weather: svc,
		Calendar: calendar.NewService(log, calendar.ServiceOptions{
			Now:   func() time.Time { return testNow },
			Cache: cache.New(cacheKV, cache.Options{TTL: calendar.CacheTTL, Now: func() time.Time { return testNow }}, log),
		}),
		Sources: func(_ context.Context, token string) (calendar.Source, error) {
			env.tokens = append(env.tokens, token)
			return env.calendar, nil
		},
		Settings:         env.settings,
		AccuWeatherProxy: proxy.New(proxy.AccuWeather("http://127.0.0.1:1", ""), nil, log),
		StaticDir:        staticDir,
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")
	resp, body := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestWeatherRequiresCity(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")
	resp, body := env.do(t, http.MethodGet, "/api/v1/weather/forecast", nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, true, body["error"])
	assert.Contains(t, body["message"], "city")
}

func TestWeatherRejectsUnknownProvider(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")
	resp, _ := env.do(t, http.MethodGet, "/api/v1/weather/forecast?city=Warsaw&provider=yahoo", nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWeatherLocationNotFound(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")
	resp, body := env.do(t, http.MethodGet, "/api/v1/weather/location?city=Atlantis", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["message"], "location not found")
}

func TestWeatherForecastAndAirQuality(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")

	resp, body := env.do(t, http.MethodGet, "/api/v1/weather/forecast?city=Warsaw", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "openmeteo", body["provider"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/weather/airquality?city=Warsaw", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Fair", body["category"])
}

func TestWeatherForecastNullOnUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{failForecast: true}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather/forecast?city=Warsaw", nil)
	resp, err := env.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "null", string(raw))
}

func TestWeatherDashboardUsesSavedSettings(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{failForecast: true}, "")
	resp, _ := env.do(t, http.MethodPut, "/api/v1/settings/weatherSettings",
		strings.NewReader(`{"city":"Gdansk","provider":"openmeteo"}`), "Content-Type", "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/v1/weather", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	loc := body["location"].(map[string]any)
	assert.Equal(t, "Gdansk", loc["name"])
	assert.Nil(t, body["forecast"])
	assert.NotNil(t, body["airQuality"])
	assert.NotEmpty(t, body["warnings"])
}

func TestSavingWeatherSettingsReconfiguresSavedAdapter(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")
	put := func(body string) {
		resp, _ := env.do(t, http.MethodPut, "/api/v1/settings/weatherSettings",
			strings.NewReader(body), "Content-Type", "application/json")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	put(`{"city":"Gdansk","provider":"openmeteo"}`)
	resp, _ := env.do(t, http.MethodGet, "/api/v1/weather/location", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	saved, err := env.weather.Adapter(weather.Settings{City: "Gdansk", Provider: weather.ProviderOpenMeteo})
	require.NoError(t, err)
	require.Equal(t, weather.StateReady, saved.State())

	put(`{"city":"Gdansk","provider":"openmeteo","airQualityProvider":"iqair"}`)
	a, err := env.weather.Adapter(weather.Settings{City: "Gdansk", Provider: weather.ProviderOpenMeteo, AirQualityProvider: weather.ProviderIQAir})
	require.NoError(t, err)
	assert.Same(t, saved, a)
	assert.Equal(t, weather.StateReady, a.State())

	put(`{"city":"Sopot","provider":"openmeteo"}`)
	assert.Equal(t, weather.StateUninitialized, saved.State())
	assert.Equal(t, "Sopot", saved.Settings().City)
}

func TestWeatherIcon(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")

	resp, body := env.do(t, http.MethodGet, "/api/v1/weather/icon?code=0&provider=openmeteo&time=2025-08-11T23:00:00Z", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["daytime"])
	assert.NotEqual(t, weather.IconNotAvailable, body["icon"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/weather/icon?code=999&provider=openmeteo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, weather.IconNotAvailable, body["icon"])
	assert.Equal(t, weather.TextUnknown, body["text"])

	resp, _ = env.do(t, http.MethodGet, "/api/v1/weather/icon?code=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/weather/icon?code=1&provider=iqair", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCalendarRequiresBearerToken(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")

	resp, _ := env.do(t, http.MethodGet, "/api/v1/calendar/events", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/calendar/calendars", nil, "Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, env.tokens)
}

func TestCalendarEvents(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")

	resp, body := env.do(t, http.MethodGet, "/api/v1/calendar/events?calendars=work,primary&days=3&tz=UTC", nil,
		"Authorization", "Bearer ya29.token")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"ya29.token"}, env.tokens)

	events := body["events"].([]any)
	assert.Len(t, events, 2)

	days := body["days"].([]any)
	require.Len(t, days, 1)
	assert.Equal(t, "2025-08-11", days[0].(map[string]any)["date"])
}

func TestCalendarEventsAreCachedPerToken(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")
	target := "/api/v1/calendar/events?calendars=work,primary&days=3&tz=UTC"

	for i := 0; i < 2; i++ {
		resp, body := env.do(t, http.MethodGet, target, nil, "Authorization", "Bearer ya29.token")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, body["events"], 2)
	}
	assert.EqualValues(t, 2, env.calendar.eventsCalls.Load())
	assert.EqualValues(t, 1, env.calendar.listCalls.Load())

	resp, _ := env.do(t, http.MethodGet, target, nil, "Authorization", "Bearer other")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 4, env.calendar.eventsCalls.Load())

	resp, _ = env.do(t, http.MethodGet, "/api/v1/calendar/calendars", nil, "Authorization", "Bearer ya29.token")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, env.calendar.listCalls.Load())
}

func TestCalendarEventsDaysUseRequestedZone(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")

	// 10:00 UTC on the 11th is already the 12th in Kiritimati (UTC+14).
	resp, body := env.do(t, http.MethodGet, "/api/v1/calendar/events?calendars=primary&tz=Pacific/Kiritimati", nil,
		"Authorization", "Bearer t")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	days := body["days"].([]any)
	require.Len(t, days, 1)
	assert.Equal(t, "2025-08-12", days[0].(map[string]any)["date"])
}

func TestCalendarEventsValidation(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")
	auth := []string{"Authorization", "Bearer t"}

	resp, _ := env.do(t, http.MethodGet, "/api/v1/calendar/events?days=0", nil, auth...)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/calendar/events?tz=Mars/Olympus", nil, auth...)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCalendarList(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")

	resp, body := env.do(t, http.MethodGet, "/api/v1/calendar/calendars", nil, "Authorization", "Bearer t")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["calendars"], 1)
}

func TestSettingsRoutes(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")

	resp, body := env.do(t, http.MethodGet, "/api/v1/settings/themeMode", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "system", body["mode"])

	resp, body = env.do(t, http.MethodPut, "/api/v1/settings/themeMode", strings.NewReader(`{"mode":"dark"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "dark", body["mode"])

	resp, _ = env.do(t, http.MethodPut, "/api/v1/settings/themeMode", strings.NewReader(`{"mode":"neon"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/settings/fontSize", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClearCache(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")
	resp, _ := env.do(t, http.MethodDelete, "/api/v1/cache", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestUnknownAPIRoute(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, t.TempDir())
	resp, body := env.do(t, http.MethodGet, "/api/v1/nope", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, true, body["error"])
}

func TestProxyNetworkFailureContract(t *testing.T) {
	env := newTestEnv(t, &stubMeteo{}, "")
	resp, body := env.do(t, http.MethodGet, "/api/accuweather/locations/v1/cities/search?q=Warsaw", nil)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestSPAFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	env := newTestEnv(t, &stubMeteo{}, dir)

	for _, path := range []string{"/", "/settings/calendar", "/app.js"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp, err := env.app.Test(req)
		require.NoError(t, err)
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		if path == "/app.js" {
			assert.Equal(t, "console.log(1)", string(raw))
		} else {
			assert.Equal(t, "<html>app</html>", string(raw), path)
		}
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Empty(t, bearerToken("abc"))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken(""))
}
