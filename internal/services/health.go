package services

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// HealthCheck probes one dependency. Critical failures make the service unhealthy,
// others only degrade it.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

type HealthService struct {
	checks []HealthCheck
	logger *logrus.Logger

	healthCheckStatus *prometheus.GaugeVec
	lastHealthCheck   *prometheus.GaugeVec
}

type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Services    map[string]string `json:"services"`
	Critical    []string          `json:"critical_failures,omitempty"`
	NonCritical []string          `json:"non_critical_failures,omitempty"`
	Latency     time.Duration     `json:"latency,omitempty"`
}

func NewHealthService(reg prometheus.Registerer, logger *logrus.Logger, checks ...HealthCheck) *HealthService {
	hs := &HealthService{
		checks: checks,
		logger: logger,
	}

	hs.healthCheckStatus = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_status",
		Help: "Health check status (1 = healthy, 0 = unhealthy)",
	}, []string{"service"}), logger)

	hs.lastHealthCheck = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_timestamp",
		Help: "Timestamp of last health check",
	}, []string{"service"}), logger)

	return hs
}

// SnapshotCheck reports whether a catalog snapshot has been loaded.
func SnapshotCheck(store SnapshotStore) HealthCheck {
	return HealthCheck{
		Name: "snapshot",
		Check: func(ctx context.Context) error {
			_, err := store.Latest(ctx)
			return err
		},
	}
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{
		Timestamp: start,
		Services:  make(map[string]string),
	}

	allCriticalHealthy := true
	for _, hc := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := hc.Check(checkCtx)
		cancel()

		if err != nil {
			status.Services[hc.Name] = "unhealthy"
			if hc.Critical {
				status.Critical = append(status.Critical, hc.Name)
				allCriticalHealthy = false
				s.logger.WithError(err).Errorf("Critical service %s is unhealthy", hc.Name)
			} else {
				status.NonCritical = append(status.NonCritical, hc.Name)
				s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", hc.Name)
			}
			s.UpdateHealthMetrics(hc.Name, false)
			continue
		}

		status.Services[hc.Name] = "healthy"
		s.UpdateHealthMetrics(hc.Name, true)
	}

	if allCriticalHealthy {
		if len(status.NonCritical) == 0 {
			status.Status = "healthy"
		} else {
			status.Status = "degraded"
		}
	} else {
		status.Status = "unhealthy"
	}
	status.Latency = time.Since(start)

	return status
}

// UpdateHealthMetrics updates health check metrics
func (s *HealthService) UpdateHealthMetrics(serviceName string, healthy bool) {
	if healthy {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(1)
	} else {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(0)
	}
	s.lastHealthCheck.WithLabelValues(serviceName).Set(float64(time.Now().Unix()))
}
