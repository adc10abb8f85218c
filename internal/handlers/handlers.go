package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamepulse/internal/config"
	"github.com/temcen/gamepulse/internal/services"
	"github.com/temcen/gamepulse/pkg/models"
)

type Handlers struct {
	Health       *HealthHandler
	Catalog      *CatalogHandler
	Stats        *StatsHandler
	Distribution *DistributionHandler
}

func New(cfg *config.Config, logger *logrus.Logger, health *services.HealthService, catalog *services.CatalogService, charts *services.ChartBoard) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(logger, health),
		Catalog:      NewCatalogHandler(catalog, cfg.Stats, logger),
		Stats:        NewStatsHandler(catalog, charts, logger),
		Distribution: NewDistributionHandler(catalog, logger),
	}
}

func respondError(c *gin.Context, status int, code, message, details string) {
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func respondNoSnapshot(c *gin.Context) {
	respondError(c, http.StatusNotFound, "SNAPSHOT_NOT_FOUND", "No catalog snapshot loaded yet; trigger a refresh first", "")
}
