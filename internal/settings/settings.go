// Package settings persists the dashboard's user settings as JSON documents
// under fixed keys in a KV store.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/daily-dashboard/internal/calendar"
	"github.com/i474232898/daily-dashboard/internal/store"
	"github.com/i474232898/daily-dashboard/internal/weather"
	"github.com/i474232898/daily-dashboard/pkg/logger"
)

// Fixed document keys.
const (
	KeyWeather  = "weatherSettings"
	KeyCalendar = "calendarSettings"
	KeyTheme    = "themeMode"
)

var (
	// ErrUnknownKey is returned for names other than the fixed keys.
	ErrUnknownKey = errors.New("unknown settings key")
	// ErrInvalid wraps validation failures.
	ErrInvalid = errors.New("invalid settings")
)

// CalendarSettings selects which calendars feed the dashboard.
type CalendarSettings struct {
	IsConnected         bool     `json:"isConnected"`
	SelectedCalendarIDs []string `json:"selectedCalendarIds" validate:"max=50,dive,required,max=256"`
	DaysAhead           int      `json:"daysAhead" validate:"min=1,max=366"`
}

// ThemeMode is the UI color scheme.
type ThemeMode string

const (
	ThemeLight  ThemeMode = "light"
	ThemeDark   ThemeMode = "dark"
	ThemeSystem ThemeMode = "system"
)

type themeDoc struct {
	Mode ThemeMode `json:"mode" validate:"required,oneof=light dark system"`
}

// Defaults are returned for documents that were never saved.
type Defaults struct {
	Weather  weather.Settings
	Calendar CalendarSettings
	Theme    ThemeMode
}

// DefaultDefaults is used for zero fields of the Defaults passed to NewStore.
var DefaultDefaults = Defaults{
	Weather: weather.Settings{
		Provider:           weather.ProviderOpenMeteo,
		AirQualityProvider: weather.ProviderOpenMeteo,
		Language:           weather.DefaultLanguage,
	},
	Calendar: CalendarSettings{
		SelectedCalendarIDs: []string{calendar.DefaultCalendarID},
		DaysAhead:           calendar.DefaultDaysAhead,
	},
	Theme: ThemeSystem,
}

// Store reads and writes the settings documents.
type Store struct {
	kv       store.KV
	defaults Defaults
	validate *validator.Validate
	logger   *logger.Logger
}

// NewStore creates a Store over kv.
func NewStore(kv store.KV, defaults Defaults, log *logger.Logger) *Store {
	if defaults.Weather.Provider == "" {
		defaults.Weather.Provider = DefaultDefaults.Weather.Provider
	}
	defaults.Weather = defaults.Weather.Normalized()
	if defaults.Calendar.DaysAhead <= 0 {
		defaults.Calendar.DaysAhead = DefaultDefaults.Calendar.DaysAhead
	}
	if len(defaults.Calendar.SelectedCalendarIDs) == 0 {
		defaults.Calendar.SelectedCalendarIDs = DefaultDefaults.Calendar.SelectedCalendarIDs
	}
	if defaults.Theme == "" {
		defaults.Theme = DefaultDefaults.Theme
	}

	return &Store{
		kv:       kv,
		defaults: defaults,
		validate: validator.New(),
		logger:   log.Named("settings"),
	}
}

// Weather returns the saved weather settings or the defaults.
func (s *Store) Weather(ctx context.Context) (weather.Settings, error) {
	out := s.defaults.Weather
	if err := s.load(ctx, KeyWeather, &out); err != nil {
		return weather.Settings{}, err
	}
	return out.Normalized(), nil
}

// SetWeather validates and saves the weather settings.
func (s *Store) SetWeather(ctx context.Context, v weather.Settings) (weather.Settings, error) {
	v = v.Normalized()
	if err := s.check(v); err != nil {
		return weather.Settings{}, err
	}
	return v, s.save(ctx, KeyWeather, v)
}

// Calendar returns the saved calendar settings or the defaults.
func (s *Store) Calendar(ctx context.Context) (CalendarSettings, error) {
	out := s.defaults.Calendar
	if err := s.load(ctx, KeyCalendar, &out); err != nil {
		return CalendarSettings{}, err
	}
	return out, nil
}

// SetCalendar validates and saves the calendar settings.
func (s *Store) SetCalendar(ctx context.Context, v CalendarSettings) (CalendarSettings, error) {
	if v.DaysAhead == 0 {
		v.DaysAhead = s.defaults.Calendar.DaysAhead
	}
	if err := s.check(v); err != nil {
		return CalendarSettings{}, err
	}
	return v, s.save(ctx, KeyCalendar, v)
}

// Theme returns the saved theme mode or the default.
func (s *Store) Theme(ctx context.Context) (ThemeMode, error) {
	doc := themeDoc{Mode: s.defaults.Theme}
	if err := s.load(ctx, KeyTheme, &doc); err != nil {
		return "", err
	}
	return doc.Mode, nil
}

// SetTheme validates and saves the theme mode.
func (s *Store) SetTheme(ctx context.Context, mode ThemeMode) (ThemeMode, error) {
	doc := themeDoc{Mode: ThemeMode(strings.ToLower(strings.TrimSpace(string(mode))))}
	if err := s.check(doc); err != nil {
		return "", err
	}
	return doc.Mode, s.save(ctx, KeyTheme, doc)
}

// Get returns the document under name in its API shape.
func (s *Store) Get(ctx context.Context, name string) (any, error) {
	switch name {
	case KeyWeather:
		return s.Weather(ctx)
	case KeyCalendar:
		return s.Calendar(ctx)
	case KeyTheme:
		mode, err := s.Theme(ctx)
		if err != nil {
			return nil, err
		}
		return themeDoc{Mode: mode}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
}

// Put decodes body as the document under name, validates and saves it, and
// returns the stored value.
func (s *Store) Put(ctx context.Context, name string, body []byte) (any, error) {
	switch name {
	case KeyWeather:
		var v weather.Settings
		if err := decode(body, &v); err != nil {
			return nil, err
		}
		return s.SetWeather(ctx, v)
	case KeyCalendar:
		var v CalendarSettings
		if err := decode(body, &v); err != nil {
			return nil, err
		}
		return s.SetCalendar(ctx, v)
	case KeyTheme:
		var doc themeDoc
		if err := decode(body, &doc); err != nil {
			return nil, err
		}
		mode, err := s.SetTheme(ctx, doc.Mode)
		if err != nil {
			return nil, err
		}
		return themeDoc{Mode: mode}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func (s *Store) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// load leaves out untouched when nothing is stored. A corrupt document is
// logged and treated as missing.
func (s *Store) load(ctx context.Context, key string, out any) error {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		s.logger.Warn("Ignoring corrupt settings document", logger.String("key", key), logger.Error(err))
		return nil
	}
	return nil
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	s.logger.Debug("Settings saved", logger.String("key", key))
	return nil
}
