// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "lab-rig-service/docs"
	"lab-rig-service/internal/config"
	"lab-rig-service/internal/database"
	"lab-rig-service/internal/driver"
	"lab-rig-service/internal/handler"
	"lab-rig-service/internal/model"
	"lab-rig-service/internal/repository"
	"lab-rig-service/internal/routes"
	"lab-rig-service/internal/service"
	"lab-rig-service/internal/sink"
	"lab-rig-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB
	migrator *database.Migrator

	// Repositories, nil without a database
	runRepo     repository.RunRepository
	profileRepo repository.ProfileRepository

	// Driver registry
	driverRegistry *driver.Registry

	// Services
	controller        *service.ExperimentController
	instrumentService *service.InstrumentService
	profileService    *service.ProfileService
	runService        *service.RunService

	// Live events
	eventBus  *handler.EventBus
	wsHandler *handler.WebSocketHandler

	// Cancels background goroutines
	cancel context.CancelFunc
}

// @title Lab Rig Service API
// @version 1.0.0
// @description Control service for an electrochemistry rig: power supply, peristaltic pump, mass-flow controller and stirrer

// @contact.name Lab Rig Service API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8086
// @BasePath /api/v1
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "lab-rig-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initializeRepositories()
	app.initializeDriverRegistry()

	app.initializeServices()
	app.initializeServer()
	return app, nil
}

// initializeDatabase connects and migrates when persistence is enabled
func (app *Application) initializeDatabase() error {
	if !app.config.Database.Enabled {
		app.logger.Info("Database disabled; profiles and run history are not persisted")
		return nil
	}

	db, err := database.NewConnection(&app.config.Database, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	app.migrator = database.NewMigrator(db, app.logger, &app.config.Database)
	if err := app.migrator.Up(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	app.logger.Info("Database initialized successfully")
	return nil
}

func (app *Application) initializeRepositories() {
	if app.database == nil {
		return
	}

	app.runRepo = repository.NewRunRepository(app.database, app.logger)
	app.profileRepo = repository.NewProfileRepository(app.database, app.logger)
	app.logger.Info("Repositories initialized successfully")
}

func (app *Application) initializeDriverRegistry() {
	app.driverRegistry = driver.NewRegistry(nil, app.logger)
	driver.RegisterDefaultDrivers(app.driverRegistry, app.logger)

	for _, kind := range model.InstrumentKinds {
		ic, _ := app.config.Instruments.For(kind)
		if ic.Enabled && !app.driverRegistry.IsSupported(kind) {
			app.logger.Warn("Instrument enabled without a registered driver", zap.String("instrument", string(kind)))
		}
	}
}

// initializeServices wires the sinks, the controller and the API services
func (app *Application) initializeServices() {
	app.eventBus = handler.NewEventBus(app.logger)

	sinks := []service.Sink{sink.NewEventSink(app.eventBus)}
	if app.config.Experiment.CSVEnabled {
		sinks = append(sinks, sink.NewCSVSink(app.config.Experiment.OutputDir, app.logger))
	}
	if app.runRepo != nil {
		sinks = append(sinks, sink.NewRunRecorder(app.runRepo, app.logger))
	}

	openRig := service.NewRigOpener(app.driverRegistry, app.config.Instruments, app.logger)

	app.controller = service.NewExperimentController(openRig, sinks, service.ControllerOptions{
		PollInterval: app.config.Experiment.PollInterval,
		TickTimeout:  app.config.Experiment.TickTimeout,
		QueueSize:    app.config.Experiment.IntentQueueSize,
	}, app.logger)

	app.instrumentService = service.NewInstrumentService(app.controller, app.config.Instruments, app.logger)

	if app.profileRepo != nil {
		app.profileService = service.NewProfileService(app.profileRepo, app.logger)
	}
	if app.runRepo != nil {
		app.runService = service.NewRunService(app.runRepo, app.logger)
	}

	app.wsHandler = handler.NewWebSocketHandler(app.controller, app.eventBus, app.config.Security.AllowedOrigins, app.logger)

	app.logger.Info("Services initialized successfully",
		zap.Int("sinks", len(sinks)),
		zap.Duration("poll_interval", app.config.Experiment.PollInterval),
	)
}

func (app *Application) initializeServer() {
	deps := routes.Dependencies{
		DB:          app.database,
		Experiment:  app.controller,
		Instruments: app.instrumentService,
		WebSocket:   app.wsHandler,
	}
	if app.profileService != nil {
		deps.Profiles = app.profileService
	}
	if app.runService != nil {
		deps.Runs = app.runService
	}

	router := routes.NewRouter(app.config, app.logger, deps).SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)
}

// startBackgroundServices starts the event fan-out and housekeeping loops
func (app *Application) startBackgroundServices(ctx context.Context) {
	go app.eventBus.Run(ctx)
	go app.wsHandler.Run(ctx)

	if app.migrator != nil && app.config.Database.ReadingRetention > 0 {
		go app.startCleanupService(ctx)
	}

	app.logger.Info("Background services started")
}

// startCleanupService prunes old readings hourly
func (app *Application) startCleanupService(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	retention := app.config.Database.ReadingRetention
	app.logger.Info("Cleanup service started", zap.Duration("retention", retention))

	for {
		select {
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			if _, err := app.migrator.PruneReadings(cleanupCtx, time.Now().Add(-retention)); err != nil {
				app.logger.Error("Failed to prune readings", zap.Error(err))
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown stops the HTTP server first so no intent arrives after the run is ended
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "lab-rig-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if err := app.controller.Shutdown(ctx); err != nil {
		app.logger.Error("Experiment shutdown error", zap.Error(err))
	} else {
		app.logger.Info("Experiment controller stopped")
	}

	if app.cancel != nil {
		app.cancel()
	}

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start serves HTTP until a shutdown signal arrives
func (app *Application) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(
				app.config.Server.TLS.CertFile,
				app.config.Server.TLS.KeyFile,
			)
		} else {
			err = app.server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices(ctx)
	app.waitForShutdown()
	return nil
}
