package app

import (
	"github.com/velora-ai/velora-backend/internal/clients/redis"
	"github.com/velora-ai/velora-backend/internal/middleware"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

type Middleware struct {
	Tenant    *middleware.TenantMiddleware
	RateLimit *middleware.RateLimitMiddleware
}

func wireMiddleware(log *logger.Logger, reposet Repos) Middleware {
	log.Info("Wiring middleware...")

	limiter, err := redis.NewRateLimiter(log)
	if err != nil {
		log.Warn("Chat rate limiting disabled", "error", err)
		limiter = nil
	}

	return Middleware{
		Tenant:    middleware.NewTenantMiddleware(log, reposet.Tenant),
		RateLimit: middleware.NewRateLimitMiddleware(log, limiter),
	}
}
