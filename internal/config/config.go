package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/daily-dashboard/internal/weather"
)

// StoreConfig selects the key-value backend for cache entries and settings.
type StoreConfig struct {
	Backend    string `toml:"backend" validate:"oneof=memory sqlite redis"`
	SQLitePath string `toml:"sqlite_path" validate:"required_if=Backend sqlite"`
	RedisAddr  string `toml:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB    int    `toml:"redis_db" validate:"min=0"`
	// MaxEntries bounds the in-memory cache (0 = unlimited).
	MaxEntries int `toml:"max_entries" validate:"min=0"`
}

// AppConfig is the service configuration.
type AppConfig struct {
	Port      string `toml:"port" validate:"required"`
	LogLevel  string `toml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `toml:"log_format" validate:"oneof=json console"`

	// HTTPTimeout bounds every outbound provider request.
	HTTPTimeout time.Duration `toml:"http_timeout" validate:"gt=0"`
	// InitTimeout bounds location resolution.
	InitTimeout time.Duration `toml:"init_timeout" validate:"gt=0"`
	CacheTTL    time.Duration `toml:"cache_ttl" validate:"gt=0"`

	Store StoreConfig `toml:"store"`

	AccuWeatherAPIKey     string `toml:"accuweather_api_key"`
	IQAirAPIKey           string `toml:"iqair_api_key"`
	GoogleGeocodingAPIKey string `toml:"google_geocoding_api_key"`

	// StaticDir holds the built web app; empty disables static serving.
	StaticDir string `toml:"static_dir"`

	ForecastDays  int `toml:"forecast_days" validate:"min=1,max=16"`
	ForecastHours int `toml:"forecast_hours" validate:"min=1,max=48"`

	// DefaultWeather is returned until the user saves weather settings.
	DefaultWeather weather.Settings `toml:"defaults" validate:"-"`

	// WarmInterval controls how often the warm-up job runs (0 disables it).
	WarmInterval time.Duration      `toml:"warm_interval" validate:"min=0"`
	WarmTargets  []weather.Settings `toml:"warm" validate:"-"`

	// EnvFileLoaded reports whether a .env file was found.
	EnvFileLoaded bool `toml:"-"`
}

func defaults() *AppConfig {
	return &AppConfig{
		Port:          "8080",
		LogLevel:      "info",
		LogFormat:     "json",
		HTTPTimeout:   10 * time.Second,
		InitTimeout:   weather.DefaultInitTimeout,
		CacheTTL:      time.Hour,
		Store:         StoreConfig{Backend: "memory", SQLitePath: "daily-dashboard.db", MaxEntries: 1000},
		StaticDir:     "dist",
		ForecastDays:  5,
		ForecastHours: 12,
		WarmInterval:  30 * time.Minute,
		DefaultWeather: weather.Settings{
			Provider: weather.ProviderOpenMeteo,
			Language: weather.DefaultLanguage,
		},
	}
}

// Load reads configuration from the optional TOML file named by CONFIG_FILE
// and then from the environment (including .env), which wins.
func Load() (*AppConfig, error) {
	cfg := defaults()
	cfg.EnvFileLoaded = godotenv.Load() == nil

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (cfg *AppConfig) applyEnv() error {
	cfg.Port = getenvDefault("PORT", cfg.Port)
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", cfg.LogFormat))

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return err
	}
	if cfg.InitTimeout, err = getenvDuration("INIT_TIMEOUT", cfg.InitTimeout); err != nil {
		return err
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", cfg.CacheTTL); err != nil {
		return err
	}
	if cfg.WarmInterval, err = getenvDuration("WARM_INTERVAL", cfg.WarmInterval); err != nil {
		return err
	}

	cfg.Store.Backend = strings.ToLower(getenvDefault("STORE_BACKEND", cfg.Store.Backend))
	cfg.Store.SQLitePath = getenvDefault("SQLITE_PATH", cfg.Store.SQLitePath)
	cfg.Store.RedisAddr = getenvDefault("REDIS_ADDR", cfg.Store.RedisAddr)
	cfg.Store.RedisDB = getenvInt("REDIS_DB", cfg.Store.RedisDB)
	cfg.Store.MaxEntries = getenvInt("STORE_MAX_ENTRIES", cfg.Store.MaxEntries)

	cfg.AccuWeatherAPIKey = getenvDefault("ACCUWEATHER_API_KEY", cfg.AccuWeatherAPIKey)
	cfg.IQAirAPIKey = getenvDefault("IQAIR_API_KEY", cfg.IQAirAPIKey)
	cfg.GoogleGeocodingAPIKey = getenvDefault("GOOGLE_GEOCODING_API_KEY", cfg.GoogleGeocodingAPIKey)
	cfg.StaticDir = getenvDefault("STATIC_DIR", cfg.StaticDir)

	cfg.ForecastDays = getenvInt("FORECAST_DAYS", cfg.ForecastDays)
	cfg.ForecastHours = getenvInt("FORECAST_HOURS", cfg.ForecastHours)

	cfg.DefaultWeather.City = getenvDefault("DEFAULT_CITY", cfg.DefaultWeather.City)
	if p := os.Getenv("DEFAULT_PROVIDER"); p != "" {
		provider, err := weather.ParseProvider(p)
		if err != nil {
			return fmt.Errorf("invalid DEFAULT_PROVIDER: %w", err)
		}
		cfg.DefaultWeather.Provider = provider
	}
	cfg.DefaultWeather.Language = getenvDefault("DEFAULT_LANGUAGE", cfg.DefaultWeather.Language)

	if v := os.Getenv("WARM_TARGETS"); v != "" {
		targets, err := ParseWarmTargets(v, cfg.DefaultWeather.Language)
		if err != nil {
			return fmt.Errorf("invalid WARM_TARGETS: %w", err)
		}
		cfg.WarmTargets = targets
	}
	for i, t := range cfg.WarmTargets {
		if t.Language == "" {
			t.Language = cfg.DefaultWeather.Language
		}
		cfg.WarmTargets[i] = t.Normalized()
	}

	return nil
}

// ParseWarmTargets parses a comma separated list of city:provider[:aq].
func ParseWarmTargets(s, language string) ([]weather.Settings, error) {
	var out []weather.Settings
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("%q: want city:provider[:aq]", item)
		}

		provider, err := weather.ParseProvider(parts[1])
		if err != nil {
			return nil, err
		}
		target := weather.Settings{City: parts[0], Provider: provider, Language: language}
		if len(parts) == 3 {
			aq, err := weather.ParseProvider(parts[2])
			if err != nil {
				return nil, err
			}
			target.AirQualityProvider = aq
		}

		target = target.Normalized()
		if err := target.Validate(); err != nil {
			return nil, fmt.Errorf("%q: %w", item, err)
		}
		out = append(out, target)
	}
	return out, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
