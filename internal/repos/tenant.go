package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

type TenantRepo interface {
	GetByDomain(ctx context.Context, tx *gorm.DB, storeDomain string) (*domain.Tenant, error)
	GetOrCreateByDomain(ctx context.Context, tx *gorm.DB, storeDomain string) (*domain.Tenant, error)
	ListActive(ctx context.Context, tx *gorm.DB) ([]*domain.Tenant, error)
}

type tenantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTenantRepo(db *gorm.DB, baseLog *logger.Logger) TenantRepo {
	return &tenantRepo{db: db, log: baseLog.With("repo", "TenantRepo")}
}

func (r *tenantRepo) GetByDomain(ctx context.Context, tx *gorm.DB, storeDomain string) (*domain.Tenant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var t domain.Tenant
	err := transaction.WithContext(ctx).
		Where("store_domain = ?", storeDomain).
		Limit(1).
		Find(&t).Error
	if err != nil {
		return nil, err
	}
	if t.ID == uuid.Nil {
		return nil, nil
	}
	return &t, nil
}

// GetOrCreateByDomain creates the tenant row on first contact. Two requests
// racing on the same new domain are resolved by the unique index: the loser
// re-reads the winner's row.
func (r *tenantRepo) GetOrCreateByDomain(ctx context.Context, tx *gorm.DB, storeDomain string) (*domain.Tenant, error) {
	existing, err := r.GetByDomain(ctx, tx, storeDomain)
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
	t := &domain.Tenant{ID: uuid.New(), StoreDomain: storeDomain, Active: true}
	if createErr := transaction.WithContext(ctx).Create(t).Error; createErr != nil {
		again, readErr := r.GetByDomain(ctx, tx, storeDomain)
		if readErr == nil && again != nil {
			return again, nil
		}
		return nil, createErr
	}
	return t, nil
}

func (r *tenantRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*domain.Tenant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*domain.Tenant
	if err := transaction.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
