package weather

import (
	"context"
	"time"
)

// CityRow is a city as persisted, with coordinates as fixed-point decimal text.
type CityRow struct {
	ID        int64
	Name      string
	Country   string
	Latitude  string
	Longitude string
	CreatedAt time.Time
}

// WeatherRow is a weather record as persisted, with fractional fields as
// fixed-point decimal text.
type WeatherRow struct {
	ID            int64
	CityID        int64
	Temperature   string
	Humidity      int
	Pressure      string
	WindSpeed     string
	WindDirection int
	Condition     Condition
	Visibility    string
	RecordedAt    time.Time
	CreatedAt     time.Time
}

// Store is the contract the Postgres store and the in-memory store satisfy.
//
// Insert methods assign ID and CreatedAt and return the persisted value.
// Implementations enforce (name, country) uniqueness with a KindConflict
// error and the city foreign key with a KindNotFound error; every other
// failure is a KindStore error.
type Store interface {
	InsertCity(ctx context.Context, row CityRow) (CityRow, error)
	// FindCity returns nil when no city has the given name and country.
	FindCity(ctx context.Context, name, country string) (*CityRow, error)
	CityExists(ctx context.Context, id int64) (bool, error)
	// ListCities orders by name, then id.
	ListCities(ctx context.Context) ([]CityRow, error)
	// SearchCities matches query as a case-insensitive substring of the name.
	SearchCities(ctx context.Context, query string) ([]CityRow, error)

	InsertWeather(ctx context.Context, row WeatherRow) (WeatherRow, error)
	// LatestWeather returns nil when the city has no records.
	LatestWeather(ctx context.Context, cityID int64) (*WeatherRow, error)
	// WeatherHistory orders by recorded_at descending, then id descending.
	WeatherHistory(ctx context.Context, cityID int64) ([]WeatherRow, error)

	InsertAlert(ctx context.Context, alert Alert) (Alert, error)
	// ActiveAlerts returns the city's alerts active at now, ordered by id.
	ActiveAlerts(ctx context.Context, cityID int64, now time.Time) ([]Alert, error)
	CountActiveAlerts(ctx context.Context, now time.Time) (int, error)

	InsertMapEntry(ctx context.Context, entry MapEntry) (MapEntry, error)
	// ListMaps orders by timestamp descending, then id descending.
	ListMaps(ctx context.Context, filter MapFilter) ([]MapEntry, error)

	Ping(ctx context.Context) error
}

// AlertPublisher announces newly created alerts to downstream consumers.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert Alert) error
}
