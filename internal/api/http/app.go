package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-dashboard/internal/observability"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

const serviceName = "weather-dashboard"

// Options configures NewApp. Only Service is required.
type Options struct {
	Service *weather.Service
	Logger  *slog.Logger
	Metrics *observability.Metrics
	// Gatherer backs /metrics; defaults to the default Prometheus registry.
	Gatherer prometheus.Gatherer
	Clock    clockwork.Clock

	CORSAllowOrigins string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// NewApp builds the Fiber app with middleware, ambient endpoints and the
// /api/v1 routes.
func NewApp(opts Options) *fiber.App {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetricsForTesting()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.CORSAllowOrigins == "" {
		opts.CORSAllowOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		ErrorHandler:          errorHandler(opts.Logger),
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(accessLog(opts.Logger, opts.Metrics))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: opts.CORSAllowOrigins}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})

	app.Get("/readyz", func(c *fiber.Ctx) error {
		if err := opts.Service.Ready(c.UserContext()); err != nil {
			opts.Logger.WarnContext(c.UserContext(), "readiness check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	RegisterRoutes(app, opts.Service, opts.Clock)
	return app
}

// errorHandler maps domain error kinds to status codes. Every failure body is
// {"error": true, "message": ...}.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := err.Error()

		var fe *fiber.Error
		var de *weather.Error
		switch {
		case errors.As(err, &fe):
			code = fe.Code
		case errors.As(err, &de):
			switch de.Kind {
			case weather.KindValidation:
				code = fiber.StatusBadRequest
			case weather.KindNotFound:
				code = fiber.StatusNotFound
			case weather.KindConflict:
				code = fiber.StatusConflict
			default:
				// The cause stays in the log.
				msg = "store error: " + de.Message
			}
		}

		if code >= fiber.StatusInternalServerError {
			logger.ErrorContext(c.UserContext(), "request failed",
				"method", c.Method(), "path", c.Path(), "request_id", requestID(c), "error", err)
		}

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": msg,
		})
	}
}

// accessLog writes one log line per request and records request metrics.
// Errors are rendered here so that the logged status is the one sent.
func accessLog(logger *slog.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		route := c.Route().Path
		if status == fiber.StatusNotFound && route == "/" {
			route = "unmatched"
		}
		elapsed := time.Since(start)

		metrics.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		logger.InfoContext(c.UserContext(), "http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", elapsed,
			"request_id", requestID(c),
		)
		return nil
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return ""
}
