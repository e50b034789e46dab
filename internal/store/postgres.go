package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Postgres implements weather.Store on PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// Connect opens and pings a PostgreSQL database.
func Connect(ctx context.Context, dsn string, pool PoolConfig) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{db: db}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Migrate applies embedded SQL migrations in lexical order, skipping those
// already recorded in schema_migrations.
func (p *Postgres) Migrate(ctx context.Context, logger *slog.Logger) error {
	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, name,
		).Scan(&applied); err != nil {
			return fmt.Errorf("failed to check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		content, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", name, err)
		}
		logger.Info("migration applied", "version", name)
	}

	return nil
}

const cityColumns = `id, name, country, latitude, longitude, created_at`

// InsertCity inserts a city. The (name, country) unique constraint reports
// duplicates that slip past the service's advisory lookup.
func (p *Postgres) InsertCity(ctx context.Context, row weather.CityRow) (weather.CityRow, error) {
	query := `
		INSERT INTO cities (name, country, latitude, longitude)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + cityColumns

	out, err := scanCity(p.db.QueryRowContext(ctx, query, row.Name, row.Country, row.Latitude, row.Longitude))
	if err != nil {
		if pqCode(err) == "unique_violation" {
			return weather.CityRow{}, weather.Conflict("city %s, %s already exists", row.Name, row.Country)
		}
		return weather.CityRow{}, translate("insert city", err)
	}
	return out, nil
}

func (p *Postgres) FindCity(ctx context.Context, name, country string) (*weather.CityRow, error) {
	query := `SELECT ` + cityColumns + ` FROM cities WHERE name = $1 AND country = $2`

	row, err := scanCity(p.db.QueryRowContext(ctx, query, name, country))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate("find city", err)
	}
	return &row, nil
}

func (p *Postgres) CityExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM cities WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, translate("city exists", err)
	}
	return exists, nil
}

func (p *Postgres) ListCities(ctx context.Context) ([]weather.CityRow, error) {
	return p.queryCities(ctx, "list cities", `SELECT `+cityColumns+` FROM cities ORDER BY name, id`)
}

// SearchCities uses position() rather than ILIKE so that % and _ in the
// query match literally.
func (p *Postgres) SearchCities(ctx context.Context, query string) ([]weather.CityRow, error) {
	return p.queryCities(ctx, "search cities", `
		SELECT `+cityColumns+`
		FROM cities
		WHERE position(lower($1) in lower(name)) > 0
		ORDER BY name, id`, query)
}

func (p *Postgres) queryCities(ctx context.Context, op, query string, args ...any) ([]weather.CityRow, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	cities := make([]weather.CityRow, 0)
	for rows.Next() {
		c, err := scanCity(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(op, err)
	}
	return cities, nil
}

const weatherColumns = `id, city_id, temperature, humidity, pressure, wind_speed,
	wind_direction, condition, visibility, recorded_at, created_at`

func (p *Postgres) InsertWeather(ctx context.Context, row weather.WeatherRow) (weather.WeatherRow, error) {
	query := `
		INSERT INTO weather_data (
			city_id, temperature, humidity, pressure, wind_speed,
			wind_direction, condition, visibility, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + weatherColumns

	out, err := scanWeather(p.db.QueryRowContext(ctx, query,
		row.CityID,
		row.Temperature,
		row.Humidity,
		row.Pressure,
		row.WindSpeed,
		row.WindDirection,
		row.Condition,
		row.Visibility,
		row.RecordedAt,
	))
	if err != nil {
		if pqCode(err) == "foreign_key_violation" {
			return weather.WeatherRow{}, weather.NotFound("city with id %d not found", row.CityID)
		}
		return weather.WeatherRow{}, translate("insert weather", err)
	}
	return out, nil
}

func (p *Postgres) LatestWeather(ctx context.Context, cityID int64) (*weather.WeatherRow, error) {
	query := `
		SELECT ` + weatherColumns + `
		FROM weather_data
		WHERE city_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1`

	row, err := scanWeather(p.db.QueryRowContext(ctx, query, cityID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate("latest weather", err)
	}
	return &row, nil
}

func (p *Postgres) WeatherHistory(ctx context.Context, cityID int64) ([]weather.WeatherRow, error) {
	query := `
		SELECT ` + weatherColumns + `
		FROM weather_data
		WHERE city_id = $1
		ORDER BY recorded_at DESC, id DESC`

	rows, err := p.db.QueryContext(ctx, query, cityID)
	if err != nil {
		return nil, translate("weather history", err)
	}
	defer rows.Close()

	history := make([]weather.WeatherRow, 0)
	for rows.Next() {
		w, err := scanWeather(rows)
		if err != nil {
			return nil, translate("weather history", err)
		}
		history = append(history, w)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("weather history", err)
	}
	return history, nil
}

const alertColumns = `id, city_id, type, severity, title, description,
	start_time, end_time, is_active, created_at`

func (p *Postgres) InsertAlert(ctx context.Context, alert weather.Alert) (weather.Alert, error) {
	query := `
		INSERT INTO weather_alerts (
			city_id, type, severity, title, description, start_time, end_time, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + alertColumns

	out, err := scanAlert(p.db.QueryRowContext(ctx, query,
		alert.CityID,
		alert.Type,
		alert.Severity,
		alert.Title,
		alert.Description,
		alert.StartTime,
		alert.EndTime,
		alert.IsActive,
	))
	if err != nil {
		switch pqCode(err) {
		case "foreign_key_violation":
			return weather.Alert{}, weather.NotFound("city with id %d not found", alert.CityID)
		case "check_violation":
			return weather.Alert{}, weather.Validation("alert start time must be before end time")
		}
		return weather.Alert{}, translate("insert alert", err)
	}
	return out, nil
}

// activeAlertPredicate mirrors weather.Alert.ActiveAt with now bound to $1.
const activeAlertPredicate = `is_active AND start_time <= $1 AND (end_time IS NULL OR end_time > $1)`

func (p *Postgres) ActiveAlerts(ctx context.Context, cityID int64, now time.Time) ([]weather.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM weather_alerts
		WHERE ` + activeAlertPredicate + ` AND city_id = $2
		ORDER BY id`

	rows, err := p.db.QueryContext(ctx, query, now, cityID)
	if err != nil {
		return nil, translate("active alerts", err)
	}
	defer rows.Close()

	alerts := make([]weather.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, translate("active alerts", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("active alerts", err)
	}
	return alerts, nil
}

func (p *Postgres) CountActiveAlerts(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM weather_alerts WHERE `+activeAlertPredicate, now).Scan(&n)
	if err != nil {
		return 0, translate("count active alerts", err)
	}
	return n, nil
}

const mapColumns = `id, region, map_type, data_url, timestamp, created_at`

func (p *Postgres) InsertMapEntry(ctx context.Context, entry weather.MapEntry) (weather.MapEntry, error) {
	query := `
		INSERT INTO weather_maps (region, map_type, data_url, timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + mapColumns

	out, err := scanMap(p.db.QueryRowContext(ctx, query, entry.Region, entry.MapType, entry.DataURL, entry.Timestamp))
	if err != nil {
		return weather.MapEntry{}, translate("insert map entry", err)
	}
	return out, nil
}

// ListMaps filters on region and map_type only when they are set; a NULL
// parameter disables its condition.
func (p *Postgres) ListMaps(ctx context.Context, filter weather.MapFilter) ([]weather.MapEntry, error) {
	query := `
		SELECT ` + mapColumns + `
		FROM weather_maps
		WHERE ($1::text IS NULL OR region = $1)
		  AND ($2::text IS NULL OR map_type::text = $2)
		ORDER BY timestamp DESC, id DESC`

	rows, err := p.db.QueryContext(ctx, query, nullString(filter.Region), nullString(string(filter.MapType)))
	if err != nil {
		return nil, translate("list maps", err)
	}
	defer rows.Close()

	entries := make([]weather.MapEntry, 0)
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, translate("list maps", err)
		}
		entries = append(entries, m)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list maps", err)
	}
	return entries, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return translate("ping", err)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCity(s scanner) (weather.CityRow, error) {
	var c weather.CityRow
	err := s.Scan(&c.ID, &c.Name, &c.Country, &c.Latitude, &c.Longitude, &c.CreatedAt)
	return c, err
}

func scanWeather(s scanner) (weather.WeatherRow, error) {
	var w weather.WeatherRow
	err := s.Scan(
		&w.ID,
		&w.CityID,
		&w.Temperature,
		&w.Humidity,
		&w.Pressure,
		&w.WindSpeed,
		&w.WindDirection,
		&w.Condition,
		&w.Visibility,
		&w.RecordedAt,
		&w.CreatedAt,
	)
	return w, err
}

func scanAlert(s scanner) (weather.Alert, error) {
	var (
		a   weather.Alert
		end sql.NullTime
	)
	err := s.Scan(
		&a.ID,
		&a.CityID,
		&a.Type,
		&a.Severity,
		&a.Title,
		&a.Description,
		&a.StartTime,
		&end,
		&a.IsActive,
		&a.CreatedAt,
	)
	if err != nil {
		return weather.Alert{}, err
	}
	if end.Valid {
		a.EndTime = &end.Time
	}
	return a, nil
}

func scanMap(s scanner) (weather.MapEntry, error) {
	var m weather.MapEntry
	err := s.Scan(&m.ID, &m.Region, &m.MapType, &m.DataURL, &m.Timestamp, &m.CreatedAt)
	return m, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// pqCode returns the condition name of a PostgreSQL error, or "".
func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name()
	}
	return ""
}

// translate maps constraint and data errors to weather error kinds; anything
// else becomes a KindStore error.
func translate(op string, err error) error {
	switch pqCode(err) {
	case "unique_violation":
		return &weather.Error{Kind: weather.KindConflict, Message: op, Err: err}
	case "foreign_key_violation":
		return &weather.Error{Kind: weather.KindNotFound, Message: op, Err: err}
	case "check_violation", "numeric_value_out_of_range", "invalid_text_representation":
		return &weather.Error{Kind: weather.KindValidation, Message: op, Err: err}
	}
	return weather.StoreFailure(op, err)
}
