package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/middleware"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
	"github.com/velora-ai/velora-backend/internal/services"
)

const maxMessageLength = 4000

type ChatHandler struct {
	log       *logger.Logger
	chat      services.ChatService
	scheduler services.SchedulerService
	sync      services.SyncService
}

func NewChatHandler(log *logger.Logger, chat services.ChatService, scheduler services.SchedulerService, syncSvc services.SyncService) *ChatHandler {
	return &ChatHandler{
		log:       log.With("handler", "ChatHandler"),
		chat:      chat,
		scheduler: scheduler,
		sync:      syncSvc,
	}
}

// POST /api/chat
func (h *ChatHandler) HandleTurn(c *gin.Context) {
	tenant, err := middleware.TenantFromContext(c)
	if err != nil {
		RespondAPIError(c, err)
		return
	}

	var req struct {
		SessionID   string `json:"session_id"`
		Fingerprint string `json:"fingerprint"`
		Message     string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Message = strings.TrimSpace(req.Message)
	if req.SessionID == "" {
		RespondError(c, http.StatusBadRequest, "missing_session_id", errors.New("session_id is required"))
		return
	}
	if req.Message == "" {
		RespondError(c, http.StatusBadRequest, "missing_message", errors.New("message is required"))
		return
	}
	if len(req.Message) > maxMessageLength {
		RespondError(c, http.StatusBadRequest, "message_too_long", errors.New("message exceeds the allowed length"))
		return
	}

	h.maybeTriggerResync(c.Request.Context(), tenant)

	result, err := h.chat.HandleTurn(c.Request.Context(), tenant, req.SessionID, req.Fingerprint, req.Message)
	if err != nil {
		h.log.Error("Chat turn failed", "session_id", req.SessionID, "error", err)
		RespondError(c, http.StatusInternalServerError, "chat_turn_failed", errors.New("could not process the message"))
		return
	}

	RespondOK(c, gin.H{
		"session_id": req.SessionID,
		"reply":      result.AssistantText,
		"metadata":   result.ToolMetadata,
	})
}

// maybeTriggerResync kicks off a background catalog refresh when the mirror
// has gone stale. The turn never waits on it and an already-running job is
// not an error.
func (h *ChatHandler) maybeTriggerResync(ctx context.Context, tenant *domain.Tenant) {
	due, err := h.scheduler.ShouldSync(ctx, tenant.ID, true)
	if err != nil {
		h.log.Warn("Staleness check failed", "tenant_id", tenant.ID, "error", err)
		return
	}
	if !due {
		return
	}
	if _, err := h.sync.StartSync(ctx, tenant, domain.JobKindBackground); err != nil {
		if errors.Is(err, services.ErrSyncAlreadyRunning) {
			return
		}
		h.log.Warn("Background sync failed to start", "tenant_id", tenant.ID, "error", err)
	}
}
