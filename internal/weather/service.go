package weather

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-dashboard/internal/numeric"
)

// Service implements the city, weather, alert and map operations over a Store.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	store     Store
	clock     clockwork.Clock
	logger    *slog.Logger
	publisher AlertPublisher
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source used to evaluate alert activity.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithPublisher announces created alerts. Publish failures are logged only.
func WithPublisher(p AlertPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a new Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		clock:  clockwork.NewRealClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListCities returns every city ordered by name.
func (s *Service) ListCities(ctx context.Context) ([]City, error) {
	rows, err := s.store.ListCities(ctx)
	if err != nil {
		return nil, StoreFailure("list cities", err)
	}
	return decodeCities(rows)
}

// SearchCities returns cities whose name contains query, ignoring case.
// An empty query matches every city.
func (s *Service) SearchCities(ctx context.Context, query string) ([]City, error) {
	rows, err := s.store.SearchCities(ctx, query)
	if err != nil {
		return nil, StoreFailure("search cities", err)
	}
	return decodeCities(rows)
}

// CreateCity persists a new city. The lookup only produces a readable
// conflict message; the store's unique constraint is authoritative.
func (s *Service) CreateCity(ctx context.Context, in CreateCityInput) (City, error) {
	existing, err := s.store.FindCity(ctx, in.Name, in.Country)
	if err != nil {
		return City{}, StoreFailure("find city", err)
	}
	if existing != nil {
		return City{}, Conflict("city %s, %s already exists", in.Name, in.Country)
	}

	row := CityRow{Name: in.Name, Country: in.Country}
	if row.Latitude, err = encodeField("latitude", numeric.Coordinate, in.Latitude); err != nil {
		return City{}, err
	}
	if row.Longitude, err = encodeField("longitude", numeric.Coordinate, in.Longitude); err != nil {
		return City{}, err
	}

	row, err = s.store.InsertCity(ctx, row)
	if err != nil {
		return City{}, StoreFailure("insert city", err)
	}

	city, err := decodeCity(row)
	if err != nil {
		return City{}, err
	}
	s.logger.InfoContext(ctx, "city created", "city_id", city.ID, "name", city.Name, "country", city.Country)
	return city, nil
}

// LatestWeather returns the record with the greatest recorded_at for the city,
// or nil when there is none. A nonexistent city is not an error.
func (s *Service) LatestWeather(ctx context.Context, cityID int64) (*WeatherRecord, error) {
	row, err := s.store.LatestWeather(ctx, cityID)
	if err != nil {
		return nil, StoreFailure("latest weather", err)
	}
	if row == nil {
		return nil, nil
	}
	rec, err := decodeWeather(*row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// WeatherHistory returns every record for the city, most recent first.
func (s *Service) WeatherHistory(ctx context.Context, cityID int64) ([]WeatherRecord, error) {
	rows, err := s.store.WeatherHistory(ctx, cityID)
	if err != nil {
		return nil, StoreFailure("weather history", err)
	}
	records := make([]WeatherRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeWeather(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// CreateWeatherRecord persists an observation for an existing city.
func (s *Service) CreateWeatherRecord(ctx context.Context, in CreateWeatherInput) (WeatherRecord, error) {
	if err := s.requireCity(ctx, in.CityID); err != nil {
		return WeatherRecord{}, err
	}

	row := WeatherRow{
		CityID:        in.CityID,
		Humidity:      in.Humidity,
		WindDirection: in.WindDirection,
		Condition:     in.Condition,
		RecordedAt:    in.RecordedAt,
	}
	var err error
	if row.Temperature, err = encodeField("temperature", numeric.Temperature, in.Temperature); err != nil {
		return WeatherRecord{}, err
	}
	if row.Pressure, err = encodeField("pressure", numeric.Pressure, in.Pressure); err != nil {
		return WeatherRecord{}, err
	}
	if row.WindSpeed, err = encodeField("wind_speed", numeric.WindSpeed, in.WindSpeed); err != nil {
		return WeatherRecord{}, err
	}
	if row.Visibility, err = encodeField("visibility", numeric.Visibility, in.Visibility); err != nil {
		return WeatherRecord{}, err
	}

	row, err = s.store.InsertWeather(ctx, row)
	if err != nil {
		return WeatherRecord{}, StoreFailure("insert weather", err)
	}
	return decodeWeather(row)
}

// ActiveAlerts returns the city's alerts in effect now. A nonexistent city
// yields an empty result.
func (s *Service) ActiveAlerts(ctx context.Context, cityID int64) ([]Alert, error) {
	now := s.clock.Now()
	alerts, err := s.store.ActiveAlerts(ctx, cityID, now)
	if err != nil {
		return nil, StoreFailure("active alerts", err)
	}
	return ActiveFor(alerts, cityID, now), nil
}

// CountActiveAlerts returns how many alerts across all cities are in effect now.
func (s *Service) CountActiveAlerts(ctx context.Context) (int, error) {
	n, err := s.store.CountActiveAlerts(ctx, s.clock.Now())
	if err != nil {
		return 0, StoreFailure("count active alerts", err)
	}
	return n, nil
}

// CreateAlert persists a new alert for an existing city. New alerts are
// always active.
func (s *Service) CreateAlert(ctx context.Context, in CreateAlertInput) (Alert, error) {
	if err := s.requireCity(ctx, in.CityID); err != nil {
		return Alert{}, err
	}
	if err := ValidateWindow(in.StartTime, in.EndTime); err != nil {
		return Alert{}, err
	}

	alert, err := s.store.InsertAlert(ctx, Alert{
		CityID:      in.CityID,
		Type:        in.Type,
		Severity:    in.Severity,
		Title:       in.Title,
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		IsActive:    true,
	})
	if err != nil {
		return Alert{}, StoreFailure("insert alert", err)
	}

	s.logger.InfoContext(ctx, "alert created",
		"alert_id", alert.ID, "city_id", alert.CityID, "type", alert.Type, "severity", alert.Severity)

	if s.publisher != nil {
		if err := s.publisher.PublishAlert(ctx, alert); err != nil {
			s.logger.WarnContext(ctx, "alert event publish failed", "alert_id", alert.ID, "error", err)
		}
	}
	return alert, nil
}

// ListMaps returns map entries matching filter, newest first.
func (s *Service) ListMaps(ctx context.Context, filter MapFilter) ([]MapEntry, error) {
	entries, err := s.store.ListMaps(ctx, filter)
	if err != nil {
		return nil, StoreFailure("list maps", err)
	}
	if entries == nil {
		entries = []MapEntry{}
	}
	return entries, nil
}

// CreateMapEntry persists a map entry.
func (s *Service) CreateMapEntry(ctx context.Context, in CreateMapInput) (MapEntry, error) {
	if !in.MapType.Valid() {
		return MapEntry{}, Validation("invalid map type %q", in.MapType)
	}
	if strings.TrimSpace(in.Region) == "" || in.DataURL == "" {
		return MapEntry{}, Validation("map entry requires region and data_url")
	}
	entry, err := s.store.InsertMapEntry(ctx, MapEntry{
		Region:    in.Region,
		MapType:   in.MapType,
		DataURL:   in.DataURL,
		Timestamp: in.Timestamp,
	})
	if err != nil {
		return MapEntry{}, StoreFailure("insert map entry", err)
	}
	return entry, nil
}

// Ready reports whether the store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) requireCity(ctx context.Context, id int64) error {
	ok, err := s.store.CityExists(ctx, id)
	if err != nil {
		return StoreFailure("find city", err)
	}
	if !ok {
		return NotFound("city with id %d not found", id)
	}
	return nil
}

func encodeField(field string, col numeric.Decimal, v float64) (string, error) {
	s, err := col.Encode(v)
	if err != nil {
		return "", &Error{Kind: KindValidation, Message: "invalid " + field, Err: err}
	}
	return s, nil
}

func decodeField(field string, col numeric.Decimal, s string) (float64, error) {
	v, err := col.Decode(s)
	if err != nil {
		return 0, &Error{Kind: KindStore, Message: fmt.Sprintf("decode %s", field), Err: err}
	}
	return v, nil
}

func decodeCity(row CityRow) (City, error) {
	lat, err := decodeField("latitude", numeric.Coordinate, row.Latitude)
	if err != nil {
		return City{}, err
	}
	lon, err := decodeField("longitude", numeric.Coordinate, row.Longitude)
	if err != nil {
		return City{}, err
	}
	return City{
		ID:        row.ID,
		Name:      row.Name,
		Country:   row.Country,
		Latitude:  lat,
		Longitude: lon,
		CreatedAt: row.CreatedAt,
	}, nil
}

func decodeCities(rows []CityRow) ([]City, error) {
	cities := make([]City, 0, len(rows))
	for _, row := range rows {
		c, err := decodeCity(row)
		if err != nil {
			return nil, err
		}
		cities = append(cities, c)
	}
	return cities, nil
}

func decodeWeather(row WeatherRow) (WeatherRecord, error) {
	rec := WeatherRecord{
		ID:            row.ID,
		CityID:        row.CityID,
		Humidity:      row.Humidity,
		WindDirection: row.WindDirection,
		Condition:     row.Condition,
		RecordedAt:    row.RecordedAt,
		CreatedAt:     row.CreatedAt,
	}
	var err error
	if rec.Temperature, err = decodeField("temperature", numeric.Temperature, row.Temperature); err != nil {
		return WeatherRecord{}, err
	}
	if rec.Pressure, err = decodeField("pressure", numeric.Pressure, row.Pressure); err != nil {
		return WeatherRecord{}, err
	}
	if rec.WindSpeed, err = decodeField("wind_speed", numeric.WindSpeed, row.WindSpeed); err != nil {
		return WeatherRecord{}, err
	}
	if rec.Visibility, err = decodeField("visibility", numeric.Visibility, row.Visibility); err != nil {
		return WeatherRecord{}, err
	}
	return rec, nil
}
