package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/vies-api/internal/models"
	"github.com/nexconsult/vies-api/internal/services"
	"github.com/nexconsult/vies-api/internal/vat"
	"github.com/sirupsen/logrus"
)

// CacheHandler handles cache management requests
type CacheHandler struct {
	cacheService services.CacheInterface
	logger       *logrus.Logger
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cacheService services.CacheInterface, logger *logrus.Logger) *CacheHandler {
	return &CacheHandler{
		cacheService: cacheService,
		logger:       logger,
	}
}

// GetStats returns cache statistics
// @Summary Cache statistics
// @Tags Cache
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /cache/stats [get]
func (h *CacheHandler) GetStats(c *gin.Context) {
	stats, err := h.cacheService.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Failed to read cache stats",
			Message:   err.Error(),
			Code:      "CACHE_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Clear removes all cached results
// @Summary Clear the result cache
// @Tags Cache
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /cache/clear [delete]
func (h *CacheHandler) Clear(c *gin.Context) {
	if err := h.cacheService.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Failed to clear cache",
			Message:   err.Error(),
			Code:      "CACHE_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	h.logger.WithField("request_id", c.GetString("request_id")).Info("Result cache cleared via API")
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "timestamp": time.Now()})
}

// Delete removes one cached result
// @Summary Evict one VAT number from the cache
// @Tags Cache
// @Produce json
// @Param vat path string true "Country-prefixed VAT number" example(IT05159640266)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Router /cache/{vat} [delete]
func (h *CacheHandler) Delete(c *gin.Context) {
	query, err := vat.Parse(c.Param("vat"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "Invalid VAT number",
			Message:   err.Error(),
			Code:      string(models.CodeInvalidInput),
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	if err := h.cacheService.Delete(c.Request.Context(), query.Format()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Failed to evict cache entry",
			Message:   err.Error(),
			Code:      "CACHE_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "vat": query.Format(), "timestamp": time.Now()})
}
