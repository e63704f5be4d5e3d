package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/middleware"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
	"github.com/velora-ai/velora-backend/internal/services"
)

type SyncHandler struct {
	log  *logger.Logger
	sync services.SyncService
}

func NewSyncHandler(log *logger.Logger, syncSvc services.SyncService) *SyncHandler {
	return &SyncHandler{
		log:  log.With("handler", "SyncHandler"),
		sync: syncSvc,
	}
}

// POST /api/sync
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	tenant, err := middleware.TenantFromContext(c)
	if err != nil {
		RespondAPIError(c, err)
		return
	}

	job, err := h.sync.StartSync(c.Request.Context(), tenant, domain.JobKindManual)
	if err != nil {
		if errors.Is(err, services.ErrSyncAlreadyRunning) {
			RespondError(c, http.StatusConflict, "sync_already_running", err)
			return
		}
		h.log.Error("Manual sync failed to start", "tenant_id", tenant.ID, "error", err)
		RespondError(c, http.StatusInternalServerError, "sync_start_failed", errors.New("could not start sync"))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

// GET /api/sync/status
func (h *SyncHandler) GetStatus(c *gin.Context) {
	tenant, err := middleware.TenantFromContext(c)
	if err != nil {
		RespondAPIError(c, err)
		return
	}

	status, err := h.sync.GetStatus(c.Request.Context(), tenant.ID)
	if err != nil {
		h.log.Error("Sync status lookup failed", "tenant_id", tenant.ID, "error", err)
		RespondError(c, http.StatusInternalServerError, "sync_status_failed", errors.New("could not load sync status"))
		return
	}

	RespondOK(c, status)
}
