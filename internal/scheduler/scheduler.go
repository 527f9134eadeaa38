package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/daily-dashboard/internal/weather"
	"github.com/i474232898/daily-dashboard/pkg/logger"
)

// targetTimeout bounds the warm-up of a single target.
const targetTimeout = 30 * time.Second

// Warmer loads a dashboard, populating the cache on the way.
type Warmer interface {
	Dashboard(ctx context.Context, settings weather.Settings) (weather.Dashboard, error)
}

// Scheduler periodically reads the dashboards of the configured targets so
// visitors find fresh cache entries. Freshness is still decided at read time.
type Scheduler struct {
	scheduler *gocron.Scheduler
	warmer    Warmer
	targets   []weather.Settings
	interval  time.Duration
	timeout   time.Duration
	logger    *logger.Logger
}

// New creates a new Scheduler.
func New(targets []weather.Settings, interval time.Duration, warmer Warmer, log *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		warmer:    warmer,
		targets:   targets,
		interval:  interval,
		timeout:   targetTimeout,
		logger:    log.Named("scheduler"),
	}
}

// Start schedules the warm-up job, runs it once right away and starts the
// underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.targets) == 0 || s.interval <= 0 {
		s.logger.Info("No warm-up targets configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("Warm-up scheduled",
		logger.Int("targets", len(s.targets)),
		logger.Duration("interval", s.interval))
	return nil
}

// RunOnce warms every target concurrently and returns how many succeeded.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.logger.Debug("Running warm-up job")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, target := range s.targets {
		wg.Add(1)
		go func(target weather.Settings) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			d, err := s.warmer.Dashboard(ctx, target)
			if err != nil {
				s.logger.Warn("Warm-up failed",
					logger.String("city", target.City),
					logger.String("provider", string(target.Provider)),
					logger.Error(err))
				return
			}
			if len(d.Warnings) > 0 {
				s.logger.Debug("Warm-up incomplete",
					logger.String("city", target.City),
					logger.Strings("warnings", d.Warnings))
			}

			mu.Lock()
			ok++
			mu.Unlock()
		}(target)
	}
	wg.Wait()

	s.logger.Debug("Completed warm-up job", logger.Int("ok", ok), logger.Int("targets", len(s.targets)))
	return ok
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
