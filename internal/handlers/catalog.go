package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamepulse/internal/catalog"
	"github.com/temcen/gamepulse/internal/config"
	"github.com/temcen/gamepulse/internal/services"
	"github.com/temcen/gamepulse/pkg/models"
)

type CatalogHandler struct {
	catalog *services.CatalogService
	limits  config.StatsConfig
	logger  *logrus.Logger
}

type GameListResponse struct {
	Query    string        `json:"query,omitempty"`
	Total    int           `json:"total"`
	Offset   int           `json:"offset"`
	Limit    int           `json:"limit"`
	HasMore  bool          `json:"has_more"`
	Games    []models.Game `json:"games"`
	TopRated []models.Game `json:"top_rated"`
}

func NewCatalogHandler(catalog *services.CatalogService, limits config.StatsConfig, logger *logrus.Logger) *CatalogHandler {
	if limits.PageLimit <= 0 {
		limits.PageLimit = 40
	}
	if limits.TopRated <= 0 {
		limits.TopRated = 6
	}
	return &CatalogHandler{
		catalog: catalog,
		limits:  limits,
		logger:  logger,
	}
}

func (h *CatalogHandler) Refresh(c *gin.Context) {
	snapshot, err := h.catalog.Refresh(c.Request.Context())
	if err != nil {
		var apiErr *catalog.APIError
		if errors.As(err, &apiErr) {
			h.logger.WithError(err).WithField("upstream_status", apiErr.StatusCode).Error("Catalog refresh rejected upstream")
			respondError(c, http.StatusBadGateway, "UPSTREAM_FAILED", "Catalog API returned an error", err.Error())
			return
		}
		h.logger.WithError(err).Error("Catalog refresh failed")
		respondError(c, http.StatusBadGateway, "REFRESH_FAILED", "Failed to refresh catalog", err.Error())
		return
	}

	c.JSON(http.StatusOK, snapshot.Summary())
}

// List returns one page of the (optionally filtered) catalog plus the top rated games of
// the whole filtered list.
func (h *CatalogHandler) List(c *gin.Context) {
	result, err := h.catalog.Search(c.Request.Context(), c.Query("q"))
	if errors.Is(err, services.ErrNoSnapshot) {
		respondNoSnapshot(c)
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load catalog")
		respondError(c, http.StatusInternalServerError, "CATALOG_UNAVAILABLE", "Failed to load catalog", "")
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.limits.PageLimit)))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = h.limits.PageLimit
	}

	total := len(result.Games)
	start := min(offset, total)
	end := min(start+limit, total)

	c.JSON(http.StatusOK, GameListResponse{
		Query:    result.Query,
		Total:    total,
		Offset:   start,
		Limit:    limit,
		HasMore:  end < total,
		Games:    result.Games[start:end],
		TopRated: services.TopRated(result.Games, h.limits.TopRated),
	})
}

func (h *CatalogHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Game id must be an integer", "")
		return
	}

	game, err := h.catalog.FindGame(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrNoSnapshot):
		respondNoSnapshot(c)
	case errors.Is(err, services.ErrGameNotFound):
		respondError(c, http.StatusNotFound, "GAME_NOT_FOUND", "Game not found", "")
	case err != nil:
		h.logger.WithError(err).WithField("game_id", id).Error("Failed to load game")
		respondError(c, http.StatusInternalServerError, "CATALOG_UNAVAILABLE", "Failed to load catalog", "")
	default:
		c.JSON(http.StatusOK, game)
	}
}
