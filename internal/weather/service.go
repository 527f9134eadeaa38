package weather

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/daily-dashboard/internal/cache"
	"github.com/i474232898/daily-dashboard/pkg/logger"
)

// DefaultMaxAdapters bounds how many distinct settings keep a live adapter.
const DefaultMaxAdapters = 64

// registry indexes upstreams by the capability they implement.
type registry struct {
	forecast   map[Provider]ForecastProvider
	airQuality map[Provider]AirQualityProvider
}

func newRegistry(upstreams []Upstream) registry {
	reg := registry{
		forecast:   make(map[Provider]ForecastProvider),
		airQuality: make(map[Provider]AirQualityProvider),
	}
	for _, u := range upstreams {
		if fp, ok := u.(ForecastProvider); ok {
			reg.forecast[u.ID()] = fp
		}
		if aqp, ok := u.(AirQualityProvider); ok {
			reg.airQuality[u.ID()] = aqp
		}
	}
	return reg
}

// ServiceOptions tune a Service.
type ServiceOptions struct {
	InitTimeout time.Duration
	MaxAdapters int
	Fallback    Geocoder
	Now         func() time.Time
}

// Service hands out one adapter per distinct Settings and assembles
// dashboard views from them.
type Service struct {
	cache  *cache.Cache
	reg    registry
	opts   ServiceOptions
	logger *logger.Logger

	mu       sync.Mutex
	adapters map[string]*Adapter
	order    []string
	// saved follows the user's saved settings across edits.
	saved *Adapter
}

// NewService creates a new Service over the given upstreams.
func NewService(c *cache.Cache, upstreams []Upstream, log *logger.Logger, opts ServiceOptions) *Service {
	if opts.MaxAdapters <= 0 {
		opts.MaxAdapters = DefaultMaxAdapters
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		cache:    c,
		reg:      newRegistry(upstreams),
		opts:     opts,
		logger:   log.Named("weather-service"),
		adapters: make(map[string]*Adapter),
	}
}

// Providers lists the registered forecast and air-quality sources.
func (s *Service) Providers() (forecast []Provider, airQuality []Provider) {
	for p := range s.reg.forecast {
		forecast = append(forecast, p)
	}
	for p := range s.reg.airQuality {
		airQuality = append(airQuality, p)
	}
	sort.Slice(forecast, func(i, j int) bool { return forecast[i] < forecast[j] })
	sort.Slice(airQuality, func(i, j int) bool { return airQuality[i] < airQuality[j] })
	return forecast, airQuality
}

// Adapter returns the adapter for settings, creating it on first use.
// Invalid settings are rejected before an adapter exists.
func (s *Service) Adapter(settings Settings) (*Adapter, error) {
	n := settings.Normalized()
	if err := n.Validate(); err != nil {
		return nil, err
	}
	key := n.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.adapters[key]; ok {
		return a, nil
	}

	a := newAdapter(n, s.reg, s.cache, s.logger, AdapterOptions{
		InitTimeout: s.opts.InitTimeout,
		Fallback:    s.opts.Fallback,
	})
	s.track(key, a)
	return a, nil
}

// ApplySettings points the saved-settings adapter at newly saved settings.
// The adapter is reconfigured in place, so an edit that keeps the city,
// provider and language keeps its resolved location. It reports whether
// the location was discarded.
func (s *Service) ApplySettings(settings Settings) (bool, error) {
	n := settings.Normalized()
	if err := n.Validate(); err != nil {
		return false, err
	}
	key := n.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saved == nil {
		if a, ok := s.adapters[key]; ok {
			s.saved = a
			return false, nil
		}
		s.saved = newAdapter(n, s.reg, s.cache, s.logger, AdapterOptions{
			InitTimeout: s.opts.InitTimeout,
			Fallback:    s.opts.Fallback,
		})
		s.track(key, s.saved)
		return true, nil
	}

	oldKey := s.saved.Settings().Key()
	reset := s.saved.Reconfigure(n)
	if oldKey != key {
		s.untrack(oldKey)
		s.untrack(key)
		s.track(key, s.saved)
	} else if _, ok := s.adapters[key]; !ok {
		s.track(key, s.saved)
	}

	s.logger.Debug("Saved weather settings applied",
		logger.String("city", n.City),
		logger.Bool("reset", reset))
	return reset, nil
}

// track registers a under key, evicting the oldest adapter when full.
// Callers hold s.mu.
func (s *Service) track(key string, a *Adapter) {
	if len(s.order) >= s.opts.MaxAdapters {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.adapters, oldest)
	}
	s.adapters[key] = a
	s.order = append(s.order, key)
}

// untrack drops key from the registry. Callers hold s.mu.
func (s *Service) untrack(key string) {
	if _, ok := s.adapters[key]; !ok {
		return
	}
	delete(s.adapters, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Location resolves the settings' city.
func (s *Service) Location(ctx context.Context, settings Settings) (Location, error) {
	a, err := s.Adapter(settings)
	if err != nil {
		return Location{}, err
	}
	return a.Location(ctx)
}

// Forecast returns the forecast for settings, or nil when upstream data is unavailable.
func (s *Service) Forecast(ctx context.Context, settings Settings) (*Forecast, error) {
	a, err := s.Adapter(settings)
	if err != nil {
		return nil, err
	}
	return a.Forecast(ctx)
}

// AirQuality returns the air quality for settings, or nil when upstream data is unavailable.
func (s *Service) AirQuality(ctx context.Context, settings Settings) (*AirQuality, error) {
	a, err := s.Adapter(settings)
	if err != nil {
		return nil, err
	}
	return a.AirQuality(ctx)
}

// Dashboard resolves the location, then fetches forecast and air quality
// concurrently. A failing slice is reported in Warnings and does not abort
// the other one.
func (s *Service) Dashboard(ctx context.Context, settings Settings) (Dashboard, error) {
	a, err := s.Adapter(settings)
	if err != nil {
		return Dashboard{}, err
	}

	loc, err := a.Location(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	var (
		wg       sync.WaitGroup
		forecast *Forecast
		aq       *AirQuality
		fErr     error
		aqErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		forecast, fErr = a.Forecast(ctx)
	}()
	go func() {
		defer wg.Done()
		aq, aqErr = a.AirQuality(ctx)
	}()
	wg.Wait()

	d := AssembleDashboard(loc, forecast, aq, fErr, aqErr, s.opts.Now())
	if len(d.Warnings) > 0 {
		s.logger.Debug("Dashboard assembled with warnings",
			logger.String("city", loc.Name),
			logger.Strings("warnings", d.Warnings))
	}
	return d, nil
}

// ClearCache drops cached upstream data and every adapter, so the next
// request geocodes and fetches again.
func (s *Service) ClearCache(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.adapters = make(map[string]*Adapter)
	s.order = nil
	s.saved = nil
	s.mu.Unlock()

	s.logger.Info("Weather cache cleared")
	return nil
}
