package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/vies-api/internal/models"
	"github.com/nexconsult/vies-api/internal/services"
	"github.com/sirupsen/logrus"
)

const serviceVersion = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	services  *services.Container
	logger    *logrus.Logger
	startedAt time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(services *services.Container, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		services:  services,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// GetHealth returns overall service health
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /health [get]
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Service:   "vies-api",
		Version:   serviceVersion,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Checks:    h.services.Health(),
		Timestamp: time.Now(),
	})
}

// GetLiveness returns a bare liveness probe
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// GetReadiness reports readiness; the service stays ready without Redis
// because the cache degrades to memory.
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": h.services.Health(),
	})
}
