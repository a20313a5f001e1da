package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/api/handlers"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/api/middleware"
	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/metrics"
)

type Services struct {
	Usage   handlers.UsageService
	Queue   handlers.RecalculationQueue
	Metrics *metrics.Recorder
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	if services != nil && services.Metrics != nil {
		router.Use(services.Metrics.GinMiddleware())
	}

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if services != nil && services.Metrics != nil {
		router.GET("/metrics", gin.WrapH(services.Metrics.Handler()))
	}

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Usage != nil {
		usageHandler := handlers.NewUsageHandler(services.Usage, services.Queue)

		apiGroup.GET("/products/:id/usage", usageHandler.GetProductUsage)

		usageGroup := apiGroup.Group("/usage")
		{
			usageGroup.POST("/calculate", usageHandler.CalculateUsageBatch)
			usageGroup.POST("/reorder-point", usageHandler.CalculateReorderPoint)
			usageGroup.POST("/suggested-reorder", usageHandler.CalculateSuggestedReorder)
			usageGroup.GET("/tiers/:tier", usageHandler.GetTierDisplay)
		}

		clientGroup := apiGroup.Group("/clients/:id")
		{
			clientGroup.POST("/recalculate", usageHandler.RecalculateClient)
			clientGroup.GET("/usage/stats", usageHandler.GetClientStats)
			clientGroup.GET("/recalculations", usageHandler.GetClientRuns)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
