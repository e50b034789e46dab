package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})

	enums := map[string]func(string) bool{
		"condition":  func(s string) bool { return weather.Condition(s).Valid() },
		"alert_type": func(s string) bool { return weather.AlertType(s).Valid() },
		"severity":   func(s string) bool { return weather.Severity(s).Valid() },
		"map_type":   func(s string) bool { return weather.MapType(s).Valid() },
	}
	for tag, valid := range enums {
		valid := valid
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return valid(fl.Field().String())
		}); err != nil {
			panic(err)
		}
	}
	return v
}

// validationMessage renders validator failures as one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fieldMessage(fe))
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must have at least %s characters", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "condition", "alert_type", "severity", "map_type":
		return fmt.Sprintf("%s %q is not a valid %s", fe.Field(), fe.Value(), fe.Tag())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

type searchQuery struct {
	Query string `query:"query" validate:"required,min=1"`
}

type cityIDQuery struct {
	CityID int64 `query:"city_id" validate:"required,gt=0"`
}

type mapsQuery struct {
	Region  string `query:"region"`
	MapType string `query:"map_type" validate:"omitempty,map_type"`
}

func (q mapsQuery) filter() weather.MapFilter {
	return weather.MapFilter{Region: q.Region, MapType: weather.MapType(q.MapType)}
}

// Numeric fields are pointers so that an explicit zero is distinguished from
// a missing field.
type createCityRequest struct {
	Name      string   `json:"name" validate:"required,min=1"`
	Country   string   `json:"country" validate:"required,min=1"`
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

func (r createCityRequest) input() weather.CreateCityInput {
	return weather.CreateCityInput{
		Name:      r.Name,
		Country:   r.Country,
		Latitude:  *r.Latitude,
		Longitude: *r.Longitude,
	}
}

type createWeatherRequest struct {
	CityID        int64      `json:"city_id" validate:"required,gt=0"`
	Temperature   *float64   `json:"temperature" validate:"required"`
	Humidity      *int       `json:"humidity" validate:"required,gte=0,lte=100"`
	Pressure      *float64   `json:"pressure" validate:"required,gt=0"`
	WindSpeed     *float64   `json:"wind_speed" validate:"required,gte=0"`
	WindDirection *int       `json:"wind_direction" validate:"required,gte=0,lte=360"`
	Condition     string     `json:"condition" validate:"required,condition"`
	Visibility    *float64   `json:"visibility" validate:"required,gte=0"`
	RecordedAt    *time.Time `json:"recorded_at" validate:"required"`
}

func (r createWeatherRequest) input() weather.CreateWeatherInput {
	return weather.CreateWeatherInput{
		CityID:        r.CityID,
		Temperature:   *r.Temperature,
		Humidity:      *r.Humidity,
		Pressure:      *r.Pressure,
		WindSpeed:     *r.WindSpeed,
		WindDirection: *r.WindDirection,
		Condition:     weather.Condition(r.Condition),
		Visibility:    *r.Visibility,
		RecordedAt:    *r.RecordedAt,
	}
}

// createAlertRequest has no is_active field; new alerts are always active.
type createAlertRequest struct {
	CityID      int64      `json:"city_id" validate:"required,gt=0"`
	Type        string     `json:"type" validate:"required,alert_type"`
	Severity    string     `json:"severity" validate:"required,severity"`
	Title       string     `json:"title" validate:"required,min=1"`
	Description string     `json:"description" validate:"required,min=1"`
	StartTime   *time.Time `json:"start_time" validate:"required"`
	EndTime     *time.Time `json:"end_time"`
}

func (r createAlertRequest) input() weather.CreateAlertInput {
	return weather.CreateAlertInput{
		CityID:      r.CityID,
		Type:        weather.AlertType(r.Type),
		Severity:    weather.Severity(r.Severity),
		Title:       r.Title,
		Description: r.Description,
		StartTime:   *r.StartTime,
		EndTime:     r.EndTime,
	}
}
