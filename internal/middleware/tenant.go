package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/platform/apierr"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
	"github.com/velora-ai/velora-backend/internal/repos"
)

// tenantContextKey is where ResolveTenant stores the tenant row for handlers.
const tenantContextKey = "tenant"

// StoreDomainHeader identifies the calling store on every API request.
const StoreDomainHeader = "X-Store-Domain"

type TenantMiddleware struct {
	log     *logger.Logger
	tenants repos.TenantRepo
}

func NewTenantMiddleware(log *logger.Logger, tenants repos.TenantRepo) *TenantMiddleware {
	return &TenantMiddleware{
		log:     log.With("middleware", "TenantMiddleware"),
		tenants: tenants,
	}
}

// ResolveTenant maps the store domain header to a tenant row, creating it on
// first contact. Deactivated tenants are rejected outright.
func (m *TenantMiddleware) ResolveTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeDomain := strings.ToLower(strings.TrimSpace(c.GetHeader(StoreDomainHeader)))
		if storeDomain == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"message": "missing " + StoreDomainHeader + " header", "code": "missing_store_domain"},
			})
			return
		}

		tenant, err := m.tenants.GetOrCreateByDomain(c.Request.Context(), nil, storeDomain)
		if err != nil {
			m.log.Error("Tenant resolution failed", "store_domain", storeDomain, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{"message": "tenant resolution failed", "code": "tenant_resolution_failed"},
			})
			return
		}
		if !tenant.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{"message": "store is deactivated", "code": "tenant_inactive"},
			})
			return
		}

		c.Set(tenantContextKey, tenant)
		c.Next()
	}
}

// TenantFromContext returns the tenant placed by ResolveTenant. Absence means
// the route was wired without the middleware, which is a server bug.
func TenantFromContext(c *gin.Context) (*domain.Tenant, error) {
	v, ok := c.Get(tenantContextKey)
	if ok {
		if tenant, ok := v.(*domain.Tenant); ok && tenant != nil {
			return tenant, nil
		}
	}
	return nil, apierr.New(http.StatusInternalServerError, "tenant_missing", errors.New("no tenant in request context"))
}
