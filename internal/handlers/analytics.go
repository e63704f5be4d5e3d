package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/velora-ai/velora-backend/internal/middleware"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
	"github.com/velora-ai/velora-backend/internal/services"
)

type AnalyticsHandler struct {
	log       *logger.Logger
	analytics services.AnalyticsService
}

func NewAnalyticsHandler(log *logger.Logger, analytics services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		log:       log.With("handler", "AnalyticsHandler"),
		analytics: analytics,
	}
}

// GET /api/analytics/questions
func (h *AnalyticsHandler) TopQuestions(c *gin.Context) {
	tenant, err := middleware.TenantFromContext(c)
	if err != nil {
		RespondAPIError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	questions, err := h.analytics.TopQuestions(c.Request.Context(), tenant.ID, limit)
	if err != nil {
		h.log.Error("Top questions lookup failed", "tenant_id", tenant.ID, "error", err)
		RespondError(c, http.StatusInternalServerError, "analytics_failed", errors.New("could not load questions"))
		return
	}

	RespondOK(c, gin.H{"questions": questions})
}

// POST /api/analytics/exposure
// The widget reports views and purchases of previously recommended items.
func (h *AnalyticsHandler) RecordExposure(c *gin.Context) {
	tenant, err := middleware.TenantFromContext(c)
	if err != nil {
		RespondAPIError(c, err)
		return
	}

	var req struct {
		ItemID string `json:"item_id"`
		Title  string `json:"title"`
		Kind   string `json:"kind"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}
	switch req.Kind {
	case services.ExposureViewed, services.ExposurePurchased:
	default:
		RespondError(c, http.StatusBadRequest, "invalid_kind", errors.New("kind must be viewed or purchased"))
		return
	}

	h.analytics.RecordProductExposure(c.Request.Context(), tenant.ID, req.ItemID, req.Title, req.Kind)
	RespondOK(c, gin.H{"recorded": true})
}
