package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-dashboard/internal/api/http"
	"github.com/i474232898/weather-dashboard/internal/config"
	"github.com/i474232898/weather-dashboard/internal/events"
	"github.com/i474232898/weather-dashboard/internal/observability"
	"github.com/i474232898/weather-dashboard/internal/scheduler"
	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "weather-dashboard",
		Short:         "Weather dashboard API",
		Long:          "Serves cities, weather observations, alerts and map listings over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var migrateOnStart bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(migrateOnStart)
		},
	}
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply database migrations before serving")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate()
		},
	}

	var seedFile string
	seedCmd := &cobra.Command{
		Use:   "seed-maps",
		Short: "Load weather map entries from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return seedMaps(seedFile)
		},
	}
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "JSON array of map entries")
	_ = seedCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func setup() (*config.AppConfig, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, observability.NewLogger(cfg.LogLevel, cfg.LogFormat), nil
}

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, cfg *config.AppConfig, metrics *observability.Metrics, logger *slog.Logger) (weather.Store, func(), error) {
	var (
		st      weather.Store
		closeFn = func() {}
	)

	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		st = store.NewMemoryStore(nil)
	default:
		db, err := store.Connect(ctx, cfg.Database.DSN(), store.PoolConfig{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return nil, nil, err
		}
		st = db
		closeFn = func() {
			if err := db.Close(); err != nil {
				logger.Error("database close error", "error", err)
			}
		}
	}

	if cfg.Breaker.Enabled {
		st = store.NewBreaker(st, store.BreakerConfig{
			MaxFailures: uint32(cfg.Breaker.MaxFailures),
			Timeout:     cfg.Breaker.Timeout,
		}, metrics, logger)
	}
	return st, closeFn, nil
}

func runMigrations(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	if cfg.StoreDriver != config.DriverPostgres {
		logger.Info("migrations skipped", "store_driver", cfg.StoreDriver)
		return nil
	}
	db, err := store.Connect(ctx, cfg.Database.DSN(), store.PoolConfig{MaxOpenConns: 1})
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate(ctx, logger)
}

func migrate() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return runMigrations(ctx, cfg, logger)
}

func serve(migrateOnStart bool) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	if migrateOnStart {
		if err := runMigrations(startCtx, cfg, logger); err != nil {
			return err
		}
	}

	st, closeStore, err := openStore(startCtx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Alert events are optional.
	var publisher interface {
		weather.AlertPublisher
		Close() error
	} = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaAlertsTopic, metrics, logger)
		logger.Info("alert events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertsTopic)
	} else {
		logger.Info("alert events disabled")
	}

	service := weather.NewService(st, weather.WithLogger(logger), weather.WithPublisher(publisher))

	sched := scheduler.New(cfg.MetricsInterval, service, metrics, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	app := httpapi.NewApp(httpapi.Options{
		Service:          service,
		Logger:           logger,
		Metrics:          metrics,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
		ReadTimeout:      cfg.ReadTimeout,
		WriteTimeout:     cfg.WriteTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "port", cfg.Port, "store_driver", cfg.StoreDriver)
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("http server stopped: %w", err)
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

type seedEntry struct {
	Region    string    `json:"region"`
	MapType   string    `json:"map_type"`
	DataURL   string    `json:"data_url"`
	Timestamp time.Time `json:"timestamp"`
}

func seedMaps(path string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var entries []seedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st, closeStore, err := openStore(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	service := weather.NewService(st, weather.WithLogger(logger))

	var errs []error
	for i, e := range entries {
		_, err := service.CreateMapEntry(ctx, weather.CreateMapInput{
			Region:    e.Region,
			MapType:   weather.MapType(e.MapType),
			DataURL:   e.DataURL,
			Timestamp: e.Timestamp,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
		}
	}
	logger.Info("map entries seeded", "loaded", len(entries)-len(errs), "failed", len(errs))
	return errors.Join(errs...)
}
