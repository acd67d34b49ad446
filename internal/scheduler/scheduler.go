package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-env-sync/internal/daytime"
	"github.com/i474232898/weather-env-sync/internal/environment"
	"github.com/i474232898/weather-env-sync/internal/metrics"
	"github.com/i474232898/weather-env-sync/internal/weather"
)

const (
	defaultInterval     = 15 * time.Minute
	defaultFetchTimeout = 10 * time.Second

	// dayFlagMaxAge bounds how long a provider-reported is-day flag is trusted.
	dayFlagMaxAge = 5 * time.Minute
)

// Fetcher is the cache-aware weather source the loop polls.
type Fetcher interface {
	ProviderName() string
	FetchAsync(ctx context.Context, apiKey, location string, force bool) <-chan weather.FetchResult
}

// Applier converges the scene to a target.
type Applier interface {
	Apply(target environment.TargetState) environment.Result
}

// Source tells where a tick's target came from.
type Source string

const (
	SourceWeather   Source = "weather"
	SourceTimeOfDay Source = "time_of_day"
)

// Options configures a Loop.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	APIKey       string
	Location     string
	SyncEnabled  bool
	// SunSync lets provider-reported sun times replace Schedule once a day.
	SunSync  bool
	Schedule daytime.Schedule
	// TZ is the zone wall-clock decisions are made in. Defaults to time.Local.
	TZ *time.Location
}

// Report describes one completed tick.
type Report struct {
	RunID       string                  `json:"runId"`
	StartedAt   time.Time               `json:"startedAt"`
	Duration    time.Duration           `json:"duration"`
	Forced      bool                    `json:"forced"`
	Source      Source                  `json:"source"`
	Target      environment.TargetState `json:"target"`
	Commands    []environment.Command   `json:"commands"`
	Observation *weather.Observation    `json:"observation,omitempty"`
	FetchError  string                  `json:"fetchError,omitempty"`
	ApplyError  string                  `json:"applyError,omitempty"`
}

// Loop drives the periodic weather sync. Every tick ends in exactly one
// Apply: the weather target when the fetch succeeds, the time-of-day target
// otherwise. At most one tick runs at a time; triggers arriving while one is
// in flight are dropped.
type Loop struct {
	cron    *gocron.Scheduler
	fetcher Fetcher
	applier Applier
	opts    Options
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inFlight atomic.Bool

	mu          sync.RWMutex
	schedule    daytime.Schedule
	sunSyncedOn string
	last        *Report
}

// New creates a new Loop. Zero options fall back to the defaults.
func New(fetcher Fetcher, applier Applier, opts Options) *Loop {
	if opts.Interval < time.Minute {
		opts.Interval = defaultInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.TZ == nil {
		opts.TZ = time.Local
	}
	if opts.Schedule == (daytime.Schedule{}) {
		opts.Schedule = daytime.Default
	}

	ctx, cancel := context.WithCancel(context.Background())
	cron := gocron.NewScheduler(opts.TZ)
	cron.SingletonModeAll()

	return &Loop{
		cron:     cron,
		fetcher:  fetcher,
		applier:  applier,
		opts:     opts,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		schedule: opts.Schedule,
	}
}

// Start schedules the periodic tick and starts the underlying scheduler. The
// first tick runs immediately.
func (l *Loop) Start() error {
	minutes := int(l.opts.Interval / time.Minute)

	_, err := l.cron.Every(minutes).Minutes().Do(func() {
		if _, ok := l.RunOnce(l.ctx, false); !ok {
			log.Info().Msg("Scheduled sync skipped: previous sync still running")
			metrics.Incr("sync.skipped", "trigger:schedule")
		}
	})
	if err != nil {
		return err
	}

	log.Info().
		Int("interval_minutes", minutes).
		Str("provider", l.fetcher.ProviderName()).
		Bool("weather_sync", l.opts.SyncEnabled).
		Str("schedule", l.Schedule().String()).
		Msg("Sync loop started")

	l.cron.StartAsync()
	return nil
}

// Stop stops the scheduler, cancels in-flight fetches and waits for manual
// triggers to finish.
func (l *Loop) Stop() {
	if l.cron != nil {
		l.cron.Stop()
	}
	l.cancel()
	l.wg.Wait()
}

// Trigger starts a sync in the background. It returns false, doing nothing,
// when a sync is already in flight.
func (l *Loop) Trigger(force bool) bool {
	if !l.inFlight.CompareAndSwap(false, true) {
		log.Info().Bool("force", force).Msg("Manual sync ignored: a sync is already in flight")
		metrics.Incr("sync.skipped", "trigger:manual")
		return false
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.inFlight.Store(false)
		l.tick(l.ctx, force)
	}()
	return true
}

// RunOnce runs a single tick synchronously. ok is false when another tick
// was already in flight.
func (l *Loop) RunOnce(ctx context.Context, force bool) (Report, bool) {
	if !l.inFlight.CompareAndSwap(false, true) {
		return Report{}, false
	}
	defer l.inFlight.Store(false)
	return l.tick(ctx, force), true
}

// InFlight reports whether a tick is running.
func (l *Loop) InFlight() bool {
	return l.inFlight.Load()
}

// Schedule returns the sunrise/sunset boundaries currently in effect.
func (l *Loop) Schedule() daytime.Schedule {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.schedule
}

// LastReport returns the report of the most recent tick.
func (l *Loop) LastReport() (Report, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.last == nil {
		return Report{}, false
	}
	return *l.last, true
}

func (l *Loop) tick(ctx context.Context, force bool) Report {
	now := l.now().In(l.opts.TZ)
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: now,
		Forced:    force,
	}
	logger := log.With().Str("run_id", report.RunID).Logger()
	metrics.Incr("sync.ticks")

	target, err := l.decide(ctx, now, force, &report, logger)
	if err != nil {
		report.FetchError = err.Error()
		metrics.Incr("sync.fallbacks", "kind:"+weather.KindOf(err).String())
	}

	report.Target = target
	res := l.applier.Apply(target)
	report.Commands = res.Commands
	if applyErr := res.Err(); applyErr != nil {
		report.ApplyError = applyErr.Error()
		logger.Warn().Err(applyErr).Str("target", target.String()).Msg("Environment only partially converged")
	}
	report.Duration = l.now().Sub(report.StartedAt)
	metrics.Gauge("sync.tick_seconds", report.Duration.Seconds(), "source:"+string(report.Source))

	logger.Info().
		Str("source", string(report.Source)).
		Str("target", target.String()).
		Int("commands", len(report.Commands)).
		Dur("took", report.Duration).
		Msg("Sync tick completed")

	l.mu.Lock()
	l.last = &report
	l.mu.Unlock()
	return report
}

// decide returns the target for this tick. A non-nil error means the weather
// path failed and the time-of-day target was chosen instead.
func (l *Loop) decide(ctx context.Context, now time.Time, force bool, report *Report, logger zerolog.Logger) (environment.TargetState, error) {
	if !l.opts.SyncEnabled {
		logger.Debug().Msg("Weather sync disabled, using time of day")
		report.Source = SourceTimeOfDay
		return l.Schedule().TargetAt(now), nil
	}

	obs, err := l.fetch(ctx, force)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("kind", weather.KindOf(err).String()).
			Str("provider", l.fetcher.ProviderName()).
			Msg("Weather fetch failed, falling back to time of day")
		report.Source = SourceTimeOfDay
		return l.Schedule().TargetAt(now), err
	}

	l.refreshSun(obs, now, logger)

	report.Source = SourceWeather
	report.Observation = &obs
	return weather.Map(obs.Code, l.isDay(obs, now)), nil
}

// isDay derives day or night for now. Sun times carried by the observation
// come first, then a recent provider flag, then the loop's schedule.
func (l *Loop) isDay(obs weather.Observation, now time.Time) bool {
	if obs.Sun != nil {
		if sun := daytime.FromSunTimes(obs.Sun.Sunrise, obs.Sun.Sunset, l.opts.TZ); sun.Sunrise != sun.Sunset {
			return sun.IsDay(now)
		}
	}
	if obs.IsDay != nil && !obs.FetchedAt.IsZero() && now.Sub(obs.FetchedAt) < dayFlagMaxAge {
		return *obs.IsDay
	}
	return l.Schedule().IsDay(now)
}

func (l *Loop) fetch(ctx context.Context, force bool) (weather.Observation, error) {
	fctx, cancel := context.WithTimeout(ctx, l.opts.FetchTimeout)
	defer cancel()

	select {
	case res := <-l.fetcher.FetchAsync(fctx, l.opts.APIKey, l.opts.Location, force):
		return res.Observation, res.Err
	case <-fctx.Done():
		err := fctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.New("fetch exceeded " + l.opts.FetchTimeout.String())
		}
		return weather.Observation{}, weather.NewFetchError(weather.KindTimeout, l.fetcher.ProviderName(), err)
	}
}

// refreshSun adopts provider-reported sunrise/sunset at most once per day.
// Observations fetched on an earlier day are ignored.
func (l *Loop) refreshSun(obs weather.Observation, now time.Time, logger zerolog.Logger) {
	if !l.opts.SunSync || obs.Sun == nil {
		return
	}
	day := now.Format(time.DateOnly)
	if obs.FetchedAt.In(l.opts.TZ).Format(time.DateOnly) != day {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sunSyncedOn == day {
		return
	}
	next := daytime.FromSunTimes(obs.Sun.Sunrise, obs.Sun.Sunset, l.opts.TZ)
	if next.Sunrise == next.Sunset {
		return
	}
	logger.Info().
		Str("from", l.schedule.String()).
		Str("to", next.String()).
		Msg("Sun schedule updated from weather data")
	l.schedule = next
	l.sunSyncedOn = day
}
