package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

type AnalyticsRepo interface {
	UpsertQuestion(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, question string, askedAt time.Time) error
	IncrementProductMetric(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, itemID string, title string, kind string, at time.Time) error
	TopQuestions(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, limit int) ([]*domain.PopularQuestion, error)
}

type analyticsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalyticsRepo(db *gorm.DB, baseLog *logger.Logger) AnalyticsRepo {
	return &analyticsRepo{db: db, log: baseLog.With("repo", "AnalyticsRepo")}
}

func (r *analyticsRepo) UpsertQuestion(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, question string, askedAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &domain.PopularQuestion{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Question:    question,
		Frequency:   1,
		LastAskedAt: askedAt,
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "question"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"frequency":     gorm.Expr("frequency + 1"),
				"last_asked_at": askedAt,
			}),
		}).
		Create(row).Error
}

func (r *analyticsRepo) IncrementProductMetric(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, itemID string, title string, kind string, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	row := &domain.ProductMetric{
		ID:             uuid.New(),
		TenantID:       tenantID,
		ExternalItemID: itemID,
		Title:          title,
	}
	assignments := map[string]interface{}{
		"title":      title,
		"updated_at": at,
	}
	switch kind {
	case "viewed":
		row.TimesViewed = 1
		assignments["times_viewed"] = gorm.Expr("times_viewed + 1")
	case "recommended":
		row.TimesRecommended = 1
		row.LastRecommendedAt = &at
		assignments["times_recommended"] = gorm.Expr("times_recommended + 1")
		assignments["last_recommended_at"] = &at
	case "purchased":
		row.TimesPurchased = 1
		assignments["times_purchased"] = gorm.Expr("times_purchased + 1")
	default:
		return fmt.Errorf("unknown exposure kind %q", kind)
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "external_item_id"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(row).Error
}

func (r *analyticsRepo) TopQuestions(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, limit int) ([]*domain.PopularQuestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 10
	}
	var out []*domain.PopularQuestion
	if err := transaction.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("frequency DESC, last_asked_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
