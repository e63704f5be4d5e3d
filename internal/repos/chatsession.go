package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

type ChatSessionRepo interface {
	GetBySessionID(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, sessionID string) (*domain.ChatSession, error)
	GetOrCreate(ctx context.Context, tx *gorm.DB, session *domain.ChatSession) (*domain.ChatSession, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type chatSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatSessionRepo(db *gorm.DB, baseLog *logger.Logger) ChatSessionRepo {
	return &chatSessionRepo{db: db, log: baseLog.With("repo", "ChatSessionRepo")}
}

// GetBySessionID resolves a client-supplied session id within one tenant.
// Another tenant's row under the same id is invisible here.
func (r *chatSessionRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, sessionID string) (*domain.ChatSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var s domain.ChatSession
	err := transaction.WithContext(ctx).
		Where("tenant_id = ? AND session_id = ?", tenantID, sessionID).
		Limit(1).
		Find(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == uuid.Nil {
		return nil, nil
	}
	return &s, nil
}

// GetOrCreate is idempotent on the (tenant, session id) pair. First writer
// wins; a racer whose insert hits the unique index falls back to reading the
// existing row instead of failing the turn.
func (r *chatSessionRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, session *domain.ChatSession) (*domain.ChatSession, error) {
	existing, err := r.GetBySessionID(ctx, tx, session.TenantID, session.SessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = time.Now().Add(domain.SessionTTL)
	}
	if createErr := transaction.WithContext(ctx).Create(session).Error; createErr != nil {
		again, readErr := r.GetBySessionID(ctx, tx, session.TenantID, session.SessionID)
		if readErr == nil && again != nil {
			return again, nil
		}
		return nil, createErr
	}
	return session, nil
}

func (r *chatSessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("id = ?", id).
		Updates(updates).Error
}
