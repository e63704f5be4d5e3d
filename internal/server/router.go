package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/velora-ai/velora-backend/internal/handlers"
	"github.com/velora-ai/velora-backend/internal/middleware"
)

type RouterConfig struct {
	AllowOrigins []string

	ChatHandler      *handlers.ChatHandler
	SyncHandler      *handlers.SyncHandler
	SearchHandler    *handlers.SearchHandler
	AnalyticsHandler *handlers.AnalyticsHandler

	TenantMiddleware    *middleware.TenantMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		// The widget is embedded on arbitrary storefronts; the tenant header
		// plus rate limiting do the gatekeeping, not the origin.
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Requested-With", middleware.StoreDomainHeader},
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Tenant    ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.TenantMiddleware.ResolveTenant())
	{
		api.POST("/chat", cfg.RateLimitMiddleware.LimitChat(), cfg.ChatHandler.HandleTurn)

		api.POST("/sync", cfg.SyncHandler.TriggerSync)
		api.GET("/sync/status", cfg.SyncHandler.GetStatus)

		api.GET("/search", cfg.SearchHandler.Search)

		api.GET("/analytics/questions", cfg.AnalyticsHandler.TopQuestions)
		api.POST("/analytics/exposure", cfg.AnalyticsHandler.RecordExposure)
	}

	return router
}
