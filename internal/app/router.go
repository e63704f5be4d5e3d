package app

import (
	"github.com/gin-gonic/gin"

	"github.com/velora-ai/velora-backend/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers, middlewareset Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AllowOrigins: cfg.AllowOrigins,

		ChatHandler:      handlerset.Chat,
		SyncHandler:      handlerset.Sync,
		SearchHandler:    handlerset.Search,
		AnalyticsHandler: handlerset.Analytics,

		TenantMiddleware:    middlewareset.Tenant,
		RateLimitMiddleware: middlewareset.RateLimit,
	})
}
