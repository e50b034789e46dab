package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-dashboard/internal/observability"
)

// AlertCounter reports how many alerts are in effect now.
type AlertCounter interface {
	CountActiveAlerts(ctx context.Context) (int, error)
}

// Scheduler periodically refreshes the active-alert gauge. It only reads.
type Scheduler struct {
	scheduler *gocron.Scheduler
	counter   AlertCounter
	metrics   *observability.Metrics
	logger    *slog.Logger
	interval  time.Duration
}

// New creates a new Scheduler. An interval of zero disables it.
func New(interval time.Duration, counter AlertCounter, metrics *observability.Metrics, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		counter:   counter,
		metrics:   metrics,
		logger:    logger,
		interval:  interval,
	}
}

// Start schedules the refresh job and starts the underlying scheduler. The
// first refresh runs immediately.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("scheduler: metrics interval is zero; nothing to schedule")
		return nil
	}

	if _, err := s.scheduler.Every(s.interval).Do(s.Refresh); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Refresh sets the gauge from the current active-alert count. Failures leave
// the previous value in place.
func (s *Scheduler) Refresh() {
	timeout := s.interval
	if timeout <= 0 || timeout > 30*time.Second {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := s.counter.CountActiveAlerts(ctx)
	if err != nil {
		s.logger.Warn("scheduler: active alert refresh failed", "error", err)
		return
	}
	s.metrics.ActiveAlerts.Set(float64(n))
	s.logger.Debug("scheduler: active alerts refreshed", "count", n)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
