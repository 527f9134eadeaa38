package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	httpapi "github.com/i474232898/daily-dashboard/internal/api/http"
	"github.com/i474232898/daily-dashboard/internal/cache"
	"github.com/i474232898/daily-dashboard/internal/calendar"
	"github.com/i474232898/daily-dashboard/internal/config"
	"github.com/i474232898/daily-dashboard/internal/proxy"
	"github.com/i474232898/daily-dashboard/internal/scheduler"
	"github.com/i474232898/daily-dashboard/internal/settings"
	"github.com/i474232898/daily-dashboard/internal/store"
	"github.com/i474232898/daily-dashboard/internal/weather"
	"github.com/i474232898/daily-dashboard/internal/weather/providers"
	"github.com/i474232898/daily-dashboard/pkg/logger"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLog, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer appLog.Sync() //nolint:errcheck

	if !cfg.EnvFileLoaded {
		appLog.Info("No .env file found; using process environment")
	}

	// Cache entries and settings live in separate namespaces so clearing the
	// cache never drops user settings.
	cacheKV, settingsKV, closeStore, err := openStores(cfg, appLog)
	if err != nil {
		appLog.Fatal("Failed to open store", logger.Error(err))
	}
	defer closeStore()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Providers with resilience (backoff + circuit breaker).
	upstreams := []weather.Upstream{
		providers.NewOpenMeteoProvider(httpClient, providers.OpenMeteoOptions{
			ForecastDays:  cfg.ForecastDays,
			ForecastHours: cfg.ForecastHours,
		}),
		providers.NewAccuWeatherProvider(httpClient, providers.AccuWeatherOptions{APIKey: cfg.AccuWeatherAPIKey}),
		providers.NewIQAirProvider(httpClient, providers.IQAirOptions{APIKey: cfg.IQAirAPIKey}),
	}

	opts := weather.ServiceOptions{InitTimeout: cfg.InitTimeout}
	if cfg.GoogleGeocodingAPIKey != "" {
		opts.Fallback = providers.NewGoogleGeocoder(cfg.GoogleGeocodingAPIKey)
	}

	c := cache.New(cacheKV, cache.Options{TTL: cfg.CacheTTL}, appLog)
	weatherSvc := weather.NewService(c, upstreams, appLog, opts)

	// Calendar data goes stale faster than weather; it shares the cache namespace.
	calendarSvc := calendar.NewService(appLog, calendar.ServiceOptions{
		Cache: cache.New(cacheKV, cache.Options{TTL: calendar.CacheTTL}, appLog),
	})

	// Scheduler that periodically warms the configured dashboards.
	sched := scheduler.New(cfg.WarmTargets, cfg.WarmInterval, weatherSvc, appLog)
	if err := sched.Start(); err != nil {
		appLog.Fatal("Failed to start scheduler", logger.Error(err))
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "daily-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.InitTimeout + cfg.HTTPTimeout,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New())

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Weather:          weatherSvc,
		Calendar:         calendarSvc,
		Sources:          calendar.GoogleSourceFactory(),
		Settings:         settings.NewStore(settingsKV, settings.Defaults{Weather: cfg.DefaultWeather}, appLog),
		AccuWeatherProxy: proxy.New(proxy.AccuWeather("", cfg.AccuWeatherAPIKey), httpClient, appLog),
		AirQualityProxy:  proxy.New(proxy.AirQuality("", cfg.IQAirAPIKey), httpClient, appLog),
		StaticDir:        cfg.StaticDir,
	})

	go func() {
		appLog.Info("HTTP server listening", logger.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			appLog.Error("Fiber server stopped", logger.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	appLog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		appLog.Error("Error during shutdown", logger.Error(err))
	}
}

// openStores returns the cache and settings stores for the configured backend.
func openStores(cfg *config.AppConfig, log *logger.Logger) (store.KV, store.KV, func(), error) {
	switch cfg.Store.Backend {
	case "sqlite":
		db, err := store.NewSQLiteStore(cfg.Store.SQLitePath, log)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				log.Warn("Failed to close SQLite store", logger.Error(err))
			}
		}
		return store.NewNamespace(db, "cache:"), store.NewNamespace(db, "settings:"), closeFn, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr, DB: cfg.Store.RedisDB})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Store.RedisAddr, err)
		}

		kv := store.NewRedisStore(rdb, "daily-dashboard:", log)
		closeFn := func() {
			if err := kv.Close(); err != nil {
				log.Warn("Failed to close Redis client", logger.Error(err))
			}
		}
		return store.NewNamespace(kv, "cache:"), store.NewNamespace(kv, "settings:"), closeFn, nil

	default:
		return store.NewMemoryStore(cfg.Store.MaxEntries), store.NewMemoryStore(0), func() {}, nil
	}
}
