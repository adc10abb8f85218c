package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamepulse/internal/services"
)

type StatsHandler struct {
	catalog *services.CatalogService
	charts  *services.ChartBoard
	logger  *logrus.Logger
}

func NewStatsHandler(catalog *services.CatalogService, charts *services.ChartBoard, logger *logrus.Logger) *StatsHandler {
	return &StatsHandler{
		catalog: catalog,
		charts:  charts,
		logger:  logger,
	}
}

func (h *StatsHandler) search(c *gin.Context) (*services.SearchResult, bool) {
	result, err := h.catalog.Search(c.Request.Context(), c.Query("q"))
	if errors.Is(err, services.ErrNoSnapshot) {
		respondNoSnapshot(c)
		return nil, false
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load catalog")
		respondError(c, http.StatusInternalServerError, "CATALOG_UNAVAILABLE", "Failed to load catalog", "")
		return nil, false
	}
	return result, true
}

func (h *StatsHandler) Get(c *gin.Context) {
	result, ok := h.search(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"query": result.Query,
		"stats": result.Stats,
	})
}

func (h *StatsHandler) Charts(c *gin.Context) {
	result, ok := h.search(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"query":  result.Query,
		"charts": h.charts.Render(result.Stats),
	})
}
