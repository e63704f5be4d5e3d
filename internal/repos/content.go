package repos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

// replaceBatchSize bounds per-statement row counts during a category replace.
const replaceBatchSize = 100

// ContentFilter narrows a store-level search. Query is matched as a
// case-insensitive substring; Categories is an optional allow-list.
type ContentFilter struct {
	Query      string
	Categories []string
	Limit      int
	Offset     int
}

type ContentRepo interface {
	ReplaceCategory(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, category string, records []*domain.ContentRecord) error
	Search(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, f ContentFilter) ([]*domain.ContentRecord, int64, error)
	ListActive(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, categories []string) ([]*domain.ContentRecord, error)
	CountByCategory(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (map[string]int64, error)
}

type contentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentRepo(db *gorm.DB, baseLog *logger.Logger) ContentRepo {
	return &contentRepo{db: db, log: baseLog.With("repo", "ContentRepo")}
}

// ReplaceCategory swaps the whole (tenant, category) slice of the mirror in
// one transaction: delete old rows, insert new ones in batches. Rows that
// collide on (tenant, category, external_id) within the payload are skipped
// rather than failing the batch.
func (r *contentRepo) ReplaceCategory(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, category string, records []*domain.ContentRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.
			Where("tenant_id = ? AND category = ?", tenantID, category).
			Delete(&domain.ContentRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		for _, rec := range records {
			if rec.ID == uuid.Nil {
				rec.ID = uuid.New()
			}
			rec.TenantID = tenantID
			rec.Category = category
		}
		return txx.
			Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(records, replaceBatchSize).Error
	})
}

func (r *contentRepo) Search(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, f ContentFilter) ([]*domain.ContentRecord, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).
		Model(&domain.ContentRecord{}).
		Where("tenant_id = ? AND active = ?", tenantID, true)
	if len(f.Categories) > 0 {
		q = q.Where("category IN ?", f.Categories)
	}
	if needle := strings.ToLower(strings.TrimSpace(f.Query)); needle != "" {
		like := "%" + needle + "%"
		q = q.Where(
			"LOWER(title) LIKE ? OR search_blob LIKE ? OR keywords LIKE ?",
			like, like, like,
		)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	var out []*domain.ContentRecord
	if err := q.
		Order("last_synced_at DESC").
		Limit(limit).
		Offset(f.Offset).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *contentRepo) ListActive(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, categories []string) ([]*domain.ContentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true)
	if len(categories) > 0 {
		q = q.Where("category IN ?", categories)
	}
	var out []*domain.ContentRecord
	if err := q.Order("last_synced_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contentRepo) CountByCategory(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	type row struct {
		Category string
		N        int64
	}
	var rows []row
	if err := transaction.WithContext(ctx).
		Model(&domain.ContentRecord{}).
		Select("category, COUNT(*) AS n").
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Group("category").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.Category] = rw.N
	}
	return out, nil
}
