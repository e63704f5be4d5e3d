package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/velora-ai/velora-backend/internal/clients/redis"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

type RateLimitMiddleware struct {
	log     *logger.Logger
	limiter *redis.RateLimiter
}

// NewRateLimitMiddleware accepts a nil limiter; the middleware then passes
// every request through, which is the configured-off state.
func NewRateLimitMiddleware(log *logger.Logger, limiter *redis.RateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		log:     log.With("middleware", "RateLimitMiddleware"),
		limiter: limiter,
	}
}

// LimitChat throttles chat turns per tenant. Limiter errors fail open: a redis
// outage must not take the chat endpoint down with it.
func (m *RateLimitMiddleware) LimitChat() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.limiter == nil {
			c.Next()
			return
		}
		tenant, err := TenantFromContext(c)
		if err != nil {
			c.Next()
			return
		}

		ok, err := m.limiter.Allow(c.Request.Context(), tenant.ID.String())
		if err != nil {
			m.log.Warn("Rate limit check failed, allowing request", "tenant_id", tenant.ID, "error", err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"message": "too many requests, slow down", "code": "rate_limited"},
			})
			return
		}
		c.Next()
	}
}
