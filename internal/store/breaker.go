package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-dashboard/internal/observability"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// BreakerConfig controls when the store circuit opens.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive storage failures that trips
	// the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a trial request.
	Timeout time.Duration
}

// Breaker decorates a weather.Store with a circuit breaker. Only StoreError
// failures count against the circuit; validation, not-found and conflict
// outcomes are answers, not faults. Calls are never retried.
type Breaker struct {
	next    weather.Store
	cb      *gobreaker.CircuitBreaker
	metrics *observability.Metrics
}

// NewBreaker wraps next. metrics and logger may be nil.
func NewBreaker(next weather.Store, cfg BreakerConfig, metrics *observability.Metrics, logger *slog.Logger) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        "store",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return !isStoreFault(err)
		},
	}
	if logger != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		}
	}
	return &Breaker{
		next:    next,
		cb:      gobreaker.NewCircuitBreaker(settings),
		metrics: metrics,
	}
}

// State reports the current circuit state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func isStoreFault(err error) bool {
	if err == nil {
		return false
	}
	switch weather.KindOf(err) {
	case weather.KindValidation, weather.KindNotFound, weather.KindConflict:
		return false
	}
	return true
}

func guard[T any](b *Breaker, op string, fn func() (T, error)) (T, error) {
	var zero T
	out, err := b.cb.Execute(func() (interface{}, error) {
		v, err := fn()
		return v, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, &weather.Error{Kind: weather.KindStore, Message: "store unavailable", Err: err}
		}
		if isStoreFault(err) && b.metrics != nil {
			b.metrics.StoreErrors.WithLabelValues(op).Inc()
		}
		return zero, err
	}
	return out.(T), nil
}

func (b *Breaker) InsertCity(ctx context.Context, row weather.CityRow) (weather.CityRow, error) {
	return guard(b, "insert_city", func() (weather.CityRow, error) { return b.next.InsertCity(ctx, row) })
}

func (b *Breaker) FindCity(ctx context.Context, name, country string) (*weather.CityRow, error) {
	return guard(b, "find_city", func() (*weather.CityRow, error) { return b.next.FindCity(ctx, name, country) })
}

func (b *Breaker) CityExists(ctx context.Context, id int64) (bool, error) {
	return guard(b, "city_exists", func() (bool, error) { return b.next.CityExists(ctx, id) })
}

func (b *Breaker) ListCities(ctx context.Context) ([]weather.CityRow, error) {
	return guard(b, "list_cities", func() ([]weather.CityRow, error) { return b.next.ListCities(ctx) })
}

func (b *Breaker) SearchCities(ctx context.Context, query string) ([]weather.CityRow, error) {
	return guard(b, "search_cities", func() ([]weather.CityRow, error) { return b.next.SearchCities(ctx, query) })
}

func (b *Breaker) InsertWeather(ctx context.Context, row weather.WeatherRow) (weather.WeatherRow, error) {
	return guard(b, "insert_weather", func() (weather.WeatherRow, error) { return b.next.InsertWeather(ctx, row) })
}

func (b *Breaker) LatestWeather(ctx context.Context, cityID int64) (*weather.WeatherRow, error) {
	return guard(b, "latest_weather", func() (*weather.WeatherRow, error) { return b.next.LatestWeather(ctx, cityID) })
}

func (b *Breaker) WeatherHistory(ctx context.Context, cityID int64) ([]weather.WeatherRow, error) {
	return guard(b, "weather_history", func() ([]weather.WeatherRow, error) { return b.next.WeatherHistory(ctx, cityID) })
}

func (b *Breaker) InsertAlert(ctx context.Context, alert weather.Alert) (weather.Alert, error) {
	return guard(b, "insert_alert", func() (weather.Alert, error) { return b.next.InsertAlert(ctx, alert) })
}

func (b *Breaker) ActiveAlerts(ctx context.Context, cityID int64, now time.Time) ([]weather.Alert, error) {
	return guard(b, "active_alerts", func() ([]weather.Alert, error) { return b.next.ActiveAlerts(ctx, cityID, now) })
}

func (b *Breaker) CountActiveAlerts(ctx context.Context, now time.Time) (int, error) {
	return guard(b, "count_active_alerts", func() (int, error) { return b.next.CountActiveAlerts(ctx, now) })
}

func (b *Breaker) InsertMapEntry(ctx context.Context, entry weather.MapEntry) (weather.MapEntry, error) {
	return guard(b, "insert_map_entry", func() (weather.MapEntry, error) { return b.next.InsertMapEntry(ctx, entry) })
}

func (b *Breaker) ListMaps(ctx context.Context, filter weather.MapFilter) ([]weather.MapEntry, error) {
	return guard(b, "list_maps", func() ([]weather.MapEntry, error) { return b.next.ListMaps(ctx, filter) })
}

// Ping bypasses the circuit so readiness reflects the store itself.
func (b *Breaker) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}
