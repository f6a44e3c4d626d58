package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/vies-api/internal/api/handlers"
	"github.com/nexconsult/vies-api/internal/api/middleware"
	"github.com/nexconsult/vies-api/internal/config"
	"github.com/nexconsult/vies-api/internal/services"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Server represents the HTTP server
type Server struct {
	Router   *gin.Engine
	config   *config.Config
	logger   *logrus.Logger
	services *services.Container
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, logger *logrus.Logger, services *services.Container) *Server {
	server := &Server{
		config:   cfg,
		logger:   logger,
		services: services,
	}

	server.setupRouter()
	return server
}

// setupRouter configures the router with all routes and middleware
func (s *Server) setupRouter() {
	// Create Gin router
	s.Router = gin.New()

	// Global middleware
	s.Router.Use(middleware.Logger(s.logger))
	s.Router.Use(middleware.Recovery(s.logger))
	s.Router.Use(middleware.CORS(s.config.Security.CORS))
	s.Router.Use(middleware.Security())
	s.Router.Use(middleware.RequestID())

	// Rate limiting middleware
	rateLimiter := middleware.NewRateLimiter(s.config.Security.RateLimit)
	s.Router.Use(rateLimiter.Middleware())

	// Health check endpoints
	healthHandler := handlers.NewHealthHandler(s.services, s.logger)
	s.Router.GET("/health", healthHandler.GetHealth)
	s.Router.GET("/health/ready", healthHandler.GetReadiness)
	s.Router.GET("/health/live", healthHandler.GetLiveness)

	// Swagger documentation
	if s.config.Server.Environment != "production" {
		s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		s.Router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
		})
	}

	// API v1 routes
	v1 := s.Router.Group("/api/v1")
	{
		// VAT validation routes
		vatHandler := handlers.NewVATHandler(s.services.ViesService, s.services.BatchService, s.config.Batch.MaxInlineSize, s.logger)
		vat := v1.Group("/vat")
		{
			vat.GET("/:country/:number", vatHandler.Validate)
			vat.POST("/batch", vatHandler.ValidateBatch)
		}

		// Spreadsheet job routes
		jobsHandler := handlers.NewJobsHandler(s.services.BatchService, s.logger)
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobsHandler.Create)
			jobs.GET("/:id", jobsHandler.Get)
			jobs.POST("/:id/cancel", jobsHandler.Cancel)
			jobs.GET("/:id/export", jobsHandler.Export)
		}

		// Cache management routes
		cacheHandler := handlers.NewCacheHandler(s.services.CacheService, s.logger)
		cache := v1.Group("/cache")
		{
			cache.GET("/stats", cacheHandler.GetStats)
			cache.DELETE("/clear", cacheHandler.Clear)
			cache.DELETE("/:vat", cacheHandler.Delete)
		}

		// Live log routes
		logsHandler := handlers.NewLogsHandler(s.services.LogStream, s.logger)
		logs := v1.Group("/logs")
		{
			logs.GET("", logsHandler.GetLogs)
			logs.GET("/text", logsHandler.GetLogsText)
		}
	}

	// 404 handler
	s.Router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not Found",
			"message":   "The requested resource was not found",
			"timestamp": time.Now(),
			"path":      c.Request.URL.Path,
		})
	})

	// 405 handler
	s.Router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":     "Method Not Allowed",
			"message":   "The requested method is not allowed for this resource",
			"timestamp": time.Now(),
			"path":      c.Request.URL.Path,
			"method":    c.Request.Method,
		})
	})
}
