package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/daily-dashboard/internal/cache"
	"github.com/i474232898/daily-dashboard/pkg/logger"
)

// DefaultInitTimeout bounds a single initialization attempt.
const DefaultInitTimeout = 15 * time.Second

// State is the adapter lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AdapterOptions tune an Adapter.
type AdapterOptions struct {
	InitTimeout time.Duration
	// Fallback geocodes Open-Meteo cities its own search does not know.
	Fallback Geocoder
}

// initCall is one in-flight initialization shared by every waiting caller.
type initCall struct {
	done chan struct{}
	gen  uint64
	loc  Location
	err  error
}

// Adapter presents one interface over the configured forecast and
// air-quality providers for a single set of Settings.
type Adapter struct {
	reg         registry
	cache       *cache.Cache
	fallback    Geocoder
	initTimeout time.Duration
	logger      *logger.Logger

	mu       sync.Mutex
	settings Settings
	state    State
	gen      uint64
	location Location
	lastErr  error
	inflight *initCall
}

// NewAdapter creates an uninitialized adapter. No network traffic happens
// until Initialize or one of the fetch methods is called.
func NewAdapter(settings Settings, upstreams []Upstream, c *cache.Cache, log *logger.Logger, opts AdapterOptions) *Adapter {
	return newAdapter(settings, newRegistry(upstreams), c, log, opts)
}

func newAdapter(settings Settings, reg registry, c *cache.Cache, log *logger.Logger, opts AdapterOptions) *Adapter {
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = DefaultInitTimeout
	}
	return &Adapter{
		reg:         reg,
		cache:       c,
		fallback:    opts.Fallback,
		initTimeout: opts.InitTimeout,
		logger:      log.Named("weather-adapter"),
		settings:    settings.Normalized(),
	}
}

// State reports the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Settings returns the settings the adapter currently resolves against.
func (a *Adapter) Settings() Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// Initialize resolves the configured city. Concurrent callers share one
// in-flight attempt. A failed attempt leaves the adapter retryable.
func (a *Adapter) Initialize(ctx context.Context) error {
	_, _, err := a.ready(ctx)
	return err
}

// Location returns the resolved location, initializing first if needed.
func (a *Adapter) Location(ctx context.Context) (Location, error) {
	loc, _, err := a.ready(ctx)
	return loc, err
}

// Reconfigure swaps the settings. Location state is discarded only when the
// city, forecast provider or language change; an in-flight initialization
// for the old settings is abandoned. It reports whether a reset happened.
func (a *Adapter) Reconfigure(settings Settings) bool {
	next := settings.Normalized()

	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.settings
	a.settings = next

	if strings.EqualFold(prev.City, next.City) && prev.Provider == next.Provider && prev.Language == next.Language {
		return false
	}

	a.gen++
	a.state = StateUninitialized
	a.location = Location{}
	a.lastErr = nil
	a.inflight = nil
	a.logger.Info("Adapter reconfigured",
		logger.String("city", next.City),
		logger.String("provider", string(next.Provider)))
	return true
}

// Forecast returns the normalized, icon-decorated forecast. Configuration
// problems are returned as errors; upstream failures are logged and yield nil.
func (a *Adapter) Forecast(ctx context.Context) (*Forecast, error) {
	loc, settings, err := a.ready(ctx)
	if err != nil {
		return nil, err
	}

	fp, ok := a.reg.forecast[settings.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: forecast provider %q is not available", ErrConfiguration, settings.Provider)
	}

	key := forecastCacheKey(fp.ID(), loc)
	f, err := cache.GetOrFetch(ctx, a.cache, key, func(ctx context.Context) (Forecast, error) {
		return fp.Forecast(ctx, loc)
	})
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return nil, err
		}
		a.logger.Warn("Forecast unavailable",
			logger.String("provider", string(fp.ID())),
			logger.String("city", loc.Name),
			logger.Error(err))
		return nil, nil
	}

	decorated := f.Decorate()
	return &decorated, nil
}

// AirQuality returns the current air quality categorized on the source's
// scheme. Sources without an API key yield the Unknown sentinel.
func (a *Adapter) AirQuality(ctx context.Context) (*AirQuality, error) {
	loc, settings, err := a.ready(ctx)
	if err != nil {
		return nil, err
	}

	aqp, ok := a.reg.airQuality[settings.AirQualityProvider]
	if !ok {
		return nil, fmt.Errorf("%w: air quality provider %q is not available", ErrConfiguration, settings.AirQualityProvider)
	}

	if kp, ok := aqp.(KeyedProvider); ok && !kp.HasAPIKey() {
		unknown := UnknownAirQuality(aqp.ID())
		return &unknown, nil
	}

	key := airQualityCacheKey(aqp.ID(), loc)
	aq, err := cache.GetOrFetch(ctx, a.cache, key, func(ctx context.Context) (AirQuality, error) {
		return aqp.AirQuality(ctx, loc)
	})
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return nil, err
		}
		a.logger.Warn("Air quality unavailable",
			logger.String("provider", string(aqp.ID())),
			logger.String("city", loc.Name),
			logger.Error(err))
		return nil, nil
	}
	return &aq, nil
}

// ready returns the resolved location together with the settings it was
// resolved for, starting or joining an initialization when necessary.
func (a *Adapter) ready(ctx context.Context) (Location, Settings, error) {
	// A reconfigure during the wait invalidates the joined call; retry a
	// bounded number of times against the new settings.
	for attempt := 0; attempt < 3; attempt++ {
		a.mu.Lock()
		if a.state == StateReady {
			loc, settings := a.location, a.settings
			a.mu.Unlock()
			return loc, settings, nil
		}
		call := a.inflight
		if call == nil {
			call = a.startInitLocked()
		}
		a.mu.Unlock()

		select {
		case <-call.done:
		case <-ctx.Done():
			return Location{}, Settings{}, ctx.Err()
		}

		a.mu.Lock()
		stale := call.gen != a.gen
		settings := a.settings
		a.mu.Unlock()

		if stale {
			continue
		}
		if call.err != nil {
			return Location{}, Settings{}, call.err
		}
		return call.loc, settings, nil
	}
	return Location{}, Settings{}, errors.New("weather adapter: settings changed during initialization")
}

// startInitLocked must be called with a.mu held.
func (a *Adapter) startInitLocked() *initCall {
	call := &initCall{done: make(chan struct{}), gen: a.gen}
	settings := a.settings

	a.state = StateInitializing
	a.inflight = call

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.initTimeout)
		defer cancel()

		loc, err := a.resolve(ctx, settings)
		call.loc, call.err = loc, err

		a.mu.Lock()
		if a.gen == call.gen {
			a.inflight = nil
			if err != nil {
				a.state = StateFailed
				a.lastErr = err
			} else {
				a.state = StateReady
				a.location = loc
				a.lastErr = nil
			}
		}
		a.mu.Unlock()

		close(call.done)
	}()

	return call
}

func (a *Adapter) resolve(ctx context.Context, settings Settings) (Location, error) {
	if err := settings.Validate(); err != nil {
		a.logger.Warn("Initialization rejected", logger.Error(err))
		return Location{}, err
	}

	fp, ok := a.reg.forecast[settings.Provider]
	if !ok {
		return Location{}, fmt.Errorf("%w: forecast provider %q is not available", ErrConfiguration, settings.Provider)
	}

	key := locationCacheKey(settings)
	loc, err := cache.GetOrFetch(ctx, a.cache, key, func(ctx context.Context) (Location, error) {
		return a.geocode(ctx, fp, settings)
	})
	if err != nil {
		a.logger.Warn("Initialization failed",
			logger.String("city", settings.City),
			logger.String("provider", string(settings.Provider)),
			logger.Error(err))
		return Location{}, err
	}

	a.logger.Info("Location resolved",
		logger.String("city", loc.Name),
		logger.String("country", loc.Country),
		logger.Float64("lat", loc.Latitude),
		logger.Float64("lon", loc.Longitude))
	return loc, nil
}

func (a *Adapter) geocode(ctx context.Context, fp ForecastProvider, settings Settings) (Location, error) {
	loc, err := fp.Geocode(ctx, settings.City, settings.Language)
	if err == nil {
		return loc, nil
	}

	// Only coordinate-based providers can use a foreign geocoder's result.
	if errors.Is(err, ErrLocationNotFound) && fp.ID() == ProviderOpenMeteo && a.fallback != nil {
		a.logger.Debug("Falling back to secondary geocoder", logger.String("city", settings.City))
		loc, ferr := a.fallback.Geocode(ctx, settings.City, settings.Language)
		if ferr == nil {
			return loc, nil
		}
		a.logger.Debug("Fallback geocoder failed", logger.Error(ferr))
	}

	return Location{}, fmt.Errorf("geocode %q with %s: %w", settings.City, fp.ID(), err)
}
