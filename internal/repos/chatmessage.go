package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

type ChatMessageRepo interface {
	Append(ctx context.Context, tx *gorm.DB, msg *domain.ChatMessage) (*domain.ChatMessage, error)
	RecentBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
}

type chatMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageRepo {
	return &chatMessageRepo{db: db, log: baseLog.With("repo", "ChatMessageRepo")}
}

func (r *chatMessageRepo) Append(ctx context.Context, tx *gorm.DB, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// RecentBySession returns up to limit messages in chronological order; the
// query walks backwards from the newest so old history falls off the window.
func (r *chatMessageRepo) RecentBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 8
	}
	var out []*domain.ChatMessage
	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
