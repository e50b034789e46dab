package weather

import (
	"time"
)

// Condition represents an observed high-level weather condition.
type Condition string

const (
	ConditionClear        Condition = "clear"
	ConditionPartlyCloudy Condition = "partly_cloudy"
	ConditionCloudy       Condition = "cloudy"
	ConditionRain         Condition = "rain"
	ConditionHeavyRain    Condition = "heavy_rain"
	ConditionSnow         Condition = "snow"
	ConditionHeavySnow    Condition = "heavy_snow"
	ConditionThunderstorm Condition = "thunderstorm"
	ConditionFog          Condition = "fog"
	ConditionWind         Condition = "wind"
)

// AllConditions lists every Condition in schema order.
var AllConditions = []Condition{
	ConditionClear, ConditionPartlyCloudy, ConditionCloudy, ConditionRain, ConditionHeavyRain,
	ConditionSnow, ConditionHeavySnow, ConditionThunderstorm, ConditionFog, ConditionWind,
}

// Valid reports whether c is one of AllConditions.
func (c Condition) Valid() bool {
	switch c {
	case ConditionClear, ConditionPartlyCloudy, ConditionCloudy, ConditionRain, ConditionHeavyRain,
		ConditionSnow, ConditionHeavySnow, ConditionThunderstorm, ConditionFog, ConditionWind:
		return true
	}
	return false
}

// AlertType classifies the hazard an alert warns about.
type AlertType string

const (
	AlertExtremeHeat  AlertType = "extreme_heat"
	AlertExtremeCold  AlertType = "extreme_cold"
	AlertHeavyRain    AlertType = "heavy_rain"
	AlertHeavySnow    AlertType = "heavy_snow"
	AlertStrongWinds  AlertType = "strong_winds"
	AlertThunderstorm AlertType = "thunderstorm"
	AlertFog          AlertType = "fog"
)

var AllAlertTypes = []AlertType{
	AlertExtremeHeat, AlertExtremeCold, AlertHeavyRain, AlertHeavySnow,
	AlertStrongWinds, AlertThunderstorm, AlertFog,
}

func (t AlertType) Valid() bool {
	switch t {
	case AlertExtremeHeat, AlertExtremeCold, AlertHeavyRain, AlertHeavySnow,
		AlertStrongWinds, AlertThunderstorm, AlertFog:
		return true
	}
	return false
}

// Severity of an alert. Rank orders severities for display; filtering never uses it.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityExtreme  Severity = "extreme"
)

var AllSeverities = []Severity{SeverityLow, SeverityModerate, SeverityHigh, SeverityExtreme}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Rank returns 1 (low) through 4 (extreme), or 0 for an unknown severity.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityModerate:
		return 2
	case SeverityHigh:
		return 3
	case SeverityExtreme:
		return 4
	default:
		return 0
	}
}

// MapType is the category of a weather map.
type MapType string

const (
	MapTemperature   MapType = "temperature"
	MapPrecipitation MapType = "precipitation"
	MapWind          MapType = "wind"
	MapPressure      MapType = "pressure"
)

var AllMapTypes = []MapType{MapTemperature, MapPrecipitation, MapWind, MapPressure}

func (m MapType) Valid() bool {
	switch m {
	case MapTemperature, MapPrecipitation, MapWind, MapPressure:
		return true
	}
	return false
}

// City is a named geographic point; the anchor for weather records and alerts.
// (Name, Country) is unique.
type City struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
}

// WeatherRecord is one timestamped observation for a city.
type WeatherRecord struct {
	ID            int64     `json:"id"`
	CityID        int64     `json:"city_id"`
	Temperature   float64   `json:"temperature"`    // °C
	Humidity      int       `json:"humidity"`       // percent
	Pressure      float64   `json:"pressure"`       // hPa
	WindSpeed     float64   `json:"wind_speed"`     // km/h
	WindDirection int       `json:"wind_direction"` // degrees
	Condition     Condition `json:"condition"`
	Visibility    float64   `json:"visibility"` // km
	RecordedAt    time.Time `json:"recorded_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Alert is a time-windowed warning for a city. A nil EndTime means the alert
// has no declared expiry.
type Alert struct {
	ID          int64      `json:"id"`
	CityID      int64      `json:"city_id"`
	Type        AlertType  `json:"type"`
	Severity    Severity   `json:"severity"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
}

// MapEntry references externally hosted map imagery for a region.
type MapEntry struct {
	ID        int64     `json:"id"`
	Region    string    `json:"region"`
	MapType   MapType   `json:"map_type"`
	DataURL   string    `json:"data_url"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// MapFilter narrows a map listing. Empty fields match everything.
type MapFilter struct {
	Region  string
	MapType MapType
}

// CreateCityInput holds the caller-supplied fields of a new city.
type CreateCityInput struct {
	Name      string
	Country   string
	Latitude  float64
	Longitude float64
}

// CreateWeatherInput holds the caller-supplied fields of a new weather record.
type CreateWeatherInput struct {
	CityID        int64
	Temperature   float64
	Humidity      int
	Pressure      float64
	WindSpeed     float64
	WindDirection int
	Condition     Condition
	Visibility    float64
	RecordedAt    time.Time
}

// CreateAlertInput holds the caller-supplied fields of a new alert.
type CreateAlertInput struct {
	CityID      int64
	Type        AlertType
	Severity    Severity
	Title       string
	Description string
	StartTime   time.Time
	EndTime     *time.Time
}

// CreateMapInput holds the fields of a new map entry.
type CreateMapInput struct {
	Region    string
	MapType   MapType
	DataURL   string
	Timestamp time.Time
}
