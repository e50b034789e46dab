package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, clock clockwork.Clock) {
	v1 := app.Group("/api/v1")

	v1.Get("/healthcheck", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": clock.Now().UTC(),
		})
	})

	v1.Get("/searchCities", func(c *fiber.Ctx) error {
		var q searchQuery
		if err := bindQuery(c, &q); err != nil {
			return err
		}
		cities, err := service.SearchCities(c.UserContext(), q.Query)
		if err != nil {
			return err
		}
		return c.JSON(cities)
	})

	v1.Get("/getAllCities", func(c *fiber.Ctx) error {
		cities, err := service.ListCities(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(cities)
	})

	v1.Post("/createCity", func(c *fiber.Ctx) error {
		var req createCityRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		city, err := service.CreateCity(c.UserContext(), req.input())
		if err != nil {
			return err
		}
		return c.JSON(city)
	})

	// A city without records answers null, not 404.
	v1.Get("/getWeatherByCity", func(c *fiber.Ctx) error {
		var q cityIDQuery
		if err := bindQuery(c, &q); err != nil {
			return err
		}
		rec, err := service.LatestWeather(c.UserContext(), q.CityID)
		if err != nil {
			return err
		}
		return c.JSON(rec)
	})

	v1.Get("/getWeatherHistory", func(c *fiber.Ctx) error {
		var q cityIDQuery
		if err := bindQuery(c, &q); err != nil {
			return err
		}
		history, err := service.WeatherHistory(c.UserContext(), q.CityID)
		if err != nil {
			return err
		}
		return c.JSON(history)
	})

	v1.Post("/createWeatherData", func(c *fiber.Ctx) error {
		var req createWeatherRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		rec, err := service.CreateWeatherRecord(c.UserContext(), req.input())
		if err != nil {
			return err
		}
		return c.JSON(rec)
	})

	v1.Get("/getActiveAlerts", func(c *fiber.Ctx) error {
		var q cityIDQuery
		if err := bindQuery(c, &q); err != nil {
			return err
		}
		alerts, err := service.ActiveAlerts(c.UserContext(), q.CityID)
		if err != nil {
			return err
		}
		return c.JSON(alerts)
	})

	v1.Post("/createWeatherAlert", func(c *fiber.Ctx) error {
		var req createAlertRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		alert, err := service.CreateAlert(c.UserContext(), req.input())
		if err != nil {
			return err
		}
		return c.JSON(alert)
	})

	v1.Get("/getWeatherMaps", func(c *fiber.Ctx) error {
		var q mapsQuery
		if err := bindQuery(c, &q); err != nil {
			return err
		}
		maps, err := service.ListMaps(c.UserContext(), q.filter())
		if err != nil {
			return err
		}
		return c.JSON(maps)
	})
}

func bindQuery(c *fiber.Ctx, out any) error {
	if err := c.QueryParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid query parameters: "+err.Error())
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, validationMessage(err))
	}
	return nil
}

func bindBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, validationMessage(err))
	}
	return nil
}
