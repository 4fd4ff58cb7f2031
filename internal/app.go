// Package internal wires the application's components together.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"insightica/internal/analytics"
	"insightica/internal/config"
	"insightica/internal/database"
	"insightica/internal/enrich"
	"insightica/internal/events"
	apphttp "insightica/internal/http"
	"insightica/internal/jobs"
	"insightica/internal/live"
	"insightica/internal/logging"
	"insightica/internal/metrics"
	"insightica/internal/pkg/geoip"
	"insightica/internal/timeframe"
	"insightica/internal/websites"
)

// Models lists every table the application migrates.
func Models() []any {
	return []any{
		&websites.Website{},
		&events.PageView{},
		&live.Presence{},
	}
}

// App holds the running components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DBManager *database.DBManager
	Geo       *geoip.Reader
	Registry  *websites.Registry
	Collector *events.Collector
	Server    *apphttp.Server
	Scheduler *jobs.Scheduler
}

// NewApp connects the database, migrates it and builds every service.
func NewApp(cfg *config.Config, version string) (*App, error) {
	logger := logging.NewLogger(cfg)
	metrics.Init(version, cfg.Environment)

	if cfg.DatabaseType != config.PostgresDatabase {
		if err := os.MkdirAll(filepath.Dir(cfg.GetDatabasePath()), 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := dbManager.MigrateDatabase(Models()...); err != nil {
		dbManager.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	geo := geoip.Open(cfg.GeoDBPath, logger)
	resolver := enrich.NewResolver(geo)
	clock := &timeframe.DefaultTimeProvider{}

	registry := websites.NewRegistry(dbManager, logger)
	pageViews := events.NewStore(dbManager)
	presence := live.NewStore(dbManager)
	collector := events.NewCollector(pageViews, registry, resolver, clock, logger)

	server := apphttp.NewServer(cfg, logger, apphttp.Deps{
		Collector: collector,
		Tracker:   live.NewTracker(presence, registry, resolver, clock, cfg.LiveWindow(), logger),
		Registry:  registry,
		Analytics: analytics.NewService(registry, pageViews, clock, cfg.GetAnalyticsWorkers(), logger),
		DB:        dbManager,
	})

	scheduler := jobs.NewScheduler(logger)
	scheduler.Add(jobs.NewPresenceCleanupJob(presence, cfg.PresenceRetention(), clock, logger), cfg.JobInterval())
	scheduler.Add(jobs.NewGeoLiteUpdaterJob(cfg.GeoDBPath, cfg.GeoLiteLicenseKey, cfg.GeoLiteDownloadURL, geo, logger), cfg.JobInterval())

	return &App{
		Config:    cfg,
		Logger:    logger,
		DBManager: dbManager,
		Geo:       geo,
		Registry:  registry,
		Collector: collector,
		Server:    server,
		Scheduler: scheduler,
	}, nil
}

// StartAsync starts the background jobs and the HTTP listener. The returned
// channel receives the listener's error if it stops on its own.
func (a *App) StartAsync() <-chan error {
	a.Scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		if err := a.Server.Listen(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown stops accepting requests, then stops jobs and releases the
// database and GeoIP reader.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	a.Scheduler.Stop()
	if err := a.Geo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("geoip close: %w", err))
	}
	if err := a.DBManager.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}
	return errors.Join(errs...)
}
