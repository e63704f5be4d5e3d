package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/velora-ai/velora-backend/internal/middleware"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
	"github.com/velora-ai/velora-backend/internal/services"
)

type SearchHandler struct {
	log       *logger.Logger
	retrieval services.RetrievalService
}

func NewSearchHandler(log *logger.Logger, retrieval services.RetrievalService) *SearchHandler {
	return &SearchHandler{
		log:       log.With("handler", "SearchHandler"),
		retrieval: retrieval,
	}
}

// GET /api/search?q=...&mode=filter|scored&category=...&limit=...&offset=...
func (h *SearchHandler) Search(c *gin.Context) {
	tenant, err := middleware.TenantFromContext(c)
	if err != nil {
		RespondAPIError(c, err)
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		RespondError(c, http.StatusBadRequest, "missing_query", errors.New("q is required"))
		return
	}

	var categories []string
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		for _, cat := range strings.Split(raw, ",") {
			if cat = strings.TrimSpace(cat); cat != "" {
				categories = append(categories, cat)
			}
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	mode := strings.ToLower(c.DefaultQuery("mode", "filter"))
	switch mode {
	case "scored":
		ranked, err := h.retrieval.Ranked(c.Request.Context(), tenant.ID, query, categories, limit)
		if err != nil {
			h.log.Error("Scored search failed", "tenant_id", tenant.ID, "error", err)
			RespondError(c, http.StatusInternalServerError, "search_failed", errors.New("search failed"))
			return
		}
		RespondOK(c, gin.H{
			"mode":    "scored",
			"query":   h.retrieval.Prepare(query).Corrected,
			"results": ranked,
			"total":   len(ranked),
		})
	case "filter":
		items, total, err := h.retrieval.Filter(c.Request.Context(), tenant.ID, query, categories, limit, offset)
		if err != nil {
			h.log.Error("Filter search failed", "tenant_id", tenant.ID, "error", err)
			RespondError(c, http.StatusInternalServerError, "search_failed", errors.New("search failed"))
			return
		}
		RespondOK(c, gin.H{
			"mode":    "filter",
			"results": items,
			"total":   total,
		})
	default:
		RespondError(c, http.StatusBadRequest, "invalid_mode", errors.New("mode must be filter or scored"))
	}
}
