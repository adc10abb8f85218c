package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamepulse/internal/catalog"
	"github.com/temcen/gamepulse/internal/config"
	"github.com/temcen/gamepulse/internal/database"
	"github.com/temcen/gamepulse/internal/handlers"
	"github.com/temcen/gamepulse/internal/middleware"
	"github.com/temcen/gamepulse/internal/services"
	"github.com/temcen/gamepulse/internal/validation"
)

const maxListLimit = 300

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	registry *prometheus.Registry
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine
}

// New builds the application. A nil source means the configured RAWG client.
func New(cfg *config.Config, source catalog.Source) (*App, error) {
	app := &App{
		config:   cfg,
		logger:   SetupLogger(cfg),
		registry: prometheus.NewRegistry(),
	}

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize database connections
	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	app.services = services.New(cfg, app.logger, db, app.registry, source)
	app.handlers = handlers.New(cfg, app.logger, app.services.Health, app.services.Catalog, app.services.Charts)

	if err := app.setupRouter(); err != nil {
		return nil, err
	}

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Logger() *logrus.Logger {
	return a.logger
}

func (a *App) Services() *services.Services {
	return a.services
}

// RefreshOnStart loads the first snapshot when catalog.refresh_on_start is set.
// Failures are logged; the API keeps answering SNAPSHOT_NOT_FOUND until a refresh succeeds.
func (a *App) RefreshOnStart(ctx context.Context) {
	if !a.config.Catalog.RefreshOnStart {
		return
	}
	if _, err := a.services.Catalog.Refresh(ctx); err != nil {
		a.logger.WithError(err).Error("Initial catalog refresh failed")
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if err := a.services.Publisher.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing catalog event publisher")
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

func SetupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() error {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	schemaValidator, err := validation.NewDefaultSchemaValidator()
	if err != nil {
		return fmt.Errorf("failed to load request schemas: %w", err)
	}
	validate := middleware.NewValidationMiddleware(schemaValidator)

	cache := middleware.CacheMiddleware(a.db.Redis, &middleware.CacheConfig{
		TTL:       a.config.Redis.ResponseTTL,
		MaxSize:   a.config.Redis.MaxBodySize,
		KeyPrefix: "gamepulse:response",
		Version:   a.snapshotVersion,
	}, a.logger)

	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config))
	router.Use(middleware.CompressionMiddleware())

	router.GET("/health", a.handlers.Health.Check)

	if a.config.Monitoring.Enabled {
		path := a.config.Monitoring.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		// CompressionMiddleware already gzips the scrape.
		router.GET(path, gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{DisableCompression: true})))
	}

	api := router.Group("/api/v1")
	{
		api.POST("/catalog/refresh",
			middleware.RateLimit(a.services.RateLimit, "refresh", a.logger),
			a.handlers.Catalog.Refresh,
		)

		games := api.Group("/games")
		{
			games.GET("", validate.ValidateListParams(maxListLimit), cache, a.handlers.Catalog.List)
			games.GET("/:id", a.handlers.Catalog.Get)
		}

		api.GET("/stats", cache, a.handlers.Stats.Get)
		api.GET("/charts", a.handlers.Stats.Charts)

		distribution := api.Group("/distribution")
		{
			distribution.GET("", a.handlers.Distribution.Get)
			distribution.POST("/preview", validate.ValidateDistribution(), a.handlers.Distribution.Preview)
		}
	}

	a.router = router
	return nil
}

// snapshotVersion scopes cached responses to the current snapshot.
func (a *App) snapshotVersion(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	id, err := a.services.Store.LatestID(ctx)
	if err != nil {
		return ""
	}
	return id.String()
}
