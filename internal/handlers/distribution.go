package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamepulse/internal/services"
	"github.com/temcen/gamepulse/pkg/models"
)

type DistributionHandler struct {
	catalog   *services.CatalogService
	validator *validator.Validate
	logger    *logrus.Logger
}

func NewDistributionHandler(catalog *services.CatalogService, logger *logrus.Logger) *DistributionHandler {
	return &DistributionHandler{
		catalog:   catalog,
		validator: validator.New(),
		logger:    logger,
	}
}

// Get returns the configured distribution and, once a snapshot exists, the bucket sizes it
// produces for that snapshot.
func (h *DistributionHandler) Get(c *gin.Context) {
	spec := h.catalog.Distribution()

	n := 0
	if snapshot, err := h.catalog.Current(c.Request.Context()); err == nil {
		n = len(snapshot.Games)
	}

	counts, err := services.BucketCounts(n, spec)
	if err != nil {
		h.logger.WithError(err).Error("Configured distribution is invalid")
		respondError(c, http.StatusInternalServerError, "INVALID_DISTRIBUTION", "Configured distribution is invalid", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"distribution":  spec,
		"items":         n,
		"bucket_counts": counts,
	})
}

// Preview applies a caller-supplied distribution to the current snapshot without storing it.
func (h *DistributionHandler) Preview(c *gin.Context) {
	var spec models.DistributionSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		h.logger.WithError(err).Warn("Invalid JSON in distribution preview request")
		respondError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format", err.Error())
		return
	}

	if err := h.validator.Struct(&spec); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", "Distribution validation failed", err.Error())
		return
	}

	preview, err := h.catalog.Preview(c.Request.Context(), spec)
	switch {
	case errors.Is(err, services.ErrNoSnapshot):
		respondNoSnapshot(c)
		return
	case errors.Is(err, models.ErrEmptyDistribution),
		errors.Is(err, models.ErrInvalidBucket),
		errors.Is(err, models.ErrZeroWeight):
		respondError(c, http.StatusUnprocessableEntity, "INVALID_DISTRIBUTION", "Distribution cannot be applied", err.Error())
		return
	case err != nil:
		h.logger.WithError(err).Error("Distribution preview failed")
		respondError(c, http.StatusInternalServerError, "PREVIEW_FAILED", "Distribution preview failed", "")
		return
	}

	if c.Query("include_games") != "true" {
		preview.Games = nil
	}
	c.JSON(http.StatusOK, preview)
}
