package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamepulse/internal/catalog"
	"github.com/temcen/gamepulse/internal/config"
	"github.com/temcen/gamepulse/internal/database"
	"github.com/temcen/gamepulse/internal/messaging"
)

type Services struct {
	Health    *HealthService
	RateLimit *RateLimitService
	Catalog   *CatalogService
	Charts    *ChartBoard
	Metrics   *CatalogMetrics
	Store     SnapshotStore
	Publisher messaging.Publisher
}

// New wires the catalog pipeline. When source is nil the RAWG client configured in cfg is used.
func New(cfg *config.Config, logger *logrus.Logger, db *database.Database, reg prometheus.Registerer, source catalog.Source) *Services {
	metrics := NewCatalogMetrics(reg, logger)

	if source == nil {
		client := catalog.NewRAWGClient(cfg.Catalog, logger)
		client.OnPage(func(page, items int) {
			metrics.PagesFetched.Inc()
		})
		source = client
	}

	var store SnapshotStore = NewMemorySnapshotStore()
	if db.Redis != nil {
		store = NewRedisSnapshotStore(db.Redis, cfg.Redis.SnapshotTTL, logger)
	}

	publisher := messaging.NewPublisher(cfg, logger)

	catalogService := NewCatalogService(CatalogServiceOptions{
		Source:       source,
		Store:        store,
		Publisher:    publisher,
		Aggregator:   NewStatsAggregator(cfg.Stats.TopGenres, cfg.Stats.TopPlatforms),
		Distribution: cfg.Distribution,
		TargetCount:  cfg.Catalog.TargetCount,
		Metrics:      metrics,
		Logger:       logger,
	})

	checks := []HealthCheck{SnapshotCheck(store)}
	if db.Redis != nil {
		checks = append(checks, HealthCheck{Name: "redis", Critical: true, Check: db.Ping})
	}
	if len(cfg.Kafka.Brokers) > 0 {
		checks = append(checks, HealthCheck{Name: "kafka", Check: messaging.BrokerCheck(cfg.Kafka.Brokers)})
	}

	return &Services{
		Health:    NewHealthService(reg, logger, checks...),
		RateLimit: NewRateLimitService(cfg.RateLimit, logger, db.Redis),
		Catalog:   catalogService,
		Charts:    NewChartBoard(),
		Metrics:   metrics,
		Store:     store,
		Publisher: publisher,
	}
}
