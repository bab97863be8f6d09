package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"resq-backend/config"
	"resq-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(h.log))

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSAllowedOrigins,
			AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	limiter := mw.NewClientRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, 10*time.Minute)
	statusCache := mw.Cache(h.cache, time.Duration(cfg.CacheTTLSeconds)*time.Second, func(c *gin.Context) string {
		return StatusCacheKey(c.Query("helmet_number"))
	})

	api := r.Group("/api")

	// Helmets on a site usually share one gateway address, so telemetry is
	// not subject to the per-client limiter.
	api.POST("/sensor-data", h.PostSensorData)

	limited := api.Group("", mw.RateLimiter(limiter))
	{
		limited.GET("/sensor-data", statusCache, h.GetSensorData)

		limited.POST("/workers", h.RegisterWorker)
		limited.GET("/workers", h.ListWorkers)
		limited.DELETE("/workers/:id", h.DeleteWorker)
		limited.GET("/workers/:id/readings", h.ListWorkerReadings)
		limited.GET("/workers/:id/alerts", h.ListWorkerAlerts)

		limited.GET("/alerts", h.ListAlerts)
		limited.PATCH("/alerts/:id/resolve", h.ResolveAlert)

		limited.GET("/subscriptions", h.GetSubscription)
		limited.PUT("/subscriptions", h.PutSubscription)
		limited.DELETE("/subscriptions", h.DeleteSubscription)
		limited.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
