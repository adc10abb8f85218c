package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// CatalogMetrics holds the Prometheus collectors for the refresh pipeline.
type CatalogMetrics struct {
	Refreshes            *prometheus.CounterVec
	PagesFetched         prometheus.Counter
	SnapshotGames        prometheus.Gauge
	RedistributeDuration prometheus.Histogram
	AggregateDuration    prometheus.Histogram
	Searches             prometheus.Counter
}

// NewCatalogMetrics registers the collectors on reg. Collectors that are already
// registered (for example by a second App in the same process) are reused.
func NewCatalogMetrics(reg prometheus.Registerer, logger *logrus.Logger) *CatalogMetrics {
	m := &CatalogMetrics{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamepulse_catalog_refresh_total",
			Help: "Catalog refresh attempts by outcome",
		}, []string{"status"}),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamepulse_catalog_pages_fetched_total",
			Help: "Catalog pages fetched from the upstream API",
		}),
		SnapshotGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gamepulse_snapshot_games",
			Help: "Number of games in the current snapshot",
		}),
		RedistributeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gamepulse_redistribute_duration_seconds",
			Help:    "Time spent redistributing ratings",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		AggregateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gamepulse_aggregate_duration_seconds",
			Help:    "Time spent aggregating catalog statistics",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		Searches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamepulse_catalog_search_total",
			Help: "Catalog searches served",
		}),
	}

	m.Refreshes = register(reg, m.Refreshes, logger)
	m.PagesFetched = register(reg, m.PagesFetched, logger)
	m.SnapshotGames = register(reg, m.SnapshotGames, logger)
	m.RedistributeDuration = register(reg, m.RedistributeDuration, logger)
	m.AggregateDuration = register(reg, m.AggregateDuration, logger)
	m.Searches = register(reg, m.Searches, logger)

	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, logger *logrus.Logger) T {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		logger.WithError(err).Warn("Failed to register metric")
	}
	return c
}
