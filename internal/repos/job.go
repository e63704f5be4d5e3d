package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

type JobRepo interface {
	Create(ctx context.Context, tx *gorm.DB, job *domain.ScrapingJob) (*domain.ScrapingJob, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.ScrapingJob, error)
	RunningForTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*domain.ScrapingJob, error)
	LatestForTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*domain.ScrapingJob, error)
	LatestCompletedForTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*domain.ScrapingJob, error)
	UpdateProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID, progress int, itemsProcessed int) error
	Complete(ctx context.Context, tx *gorm.DB, id uuid.UUID, itemsFound int, itemsProcessed int) error
	Fail(ctx context.Context, tx *gorm.DB, id uuid.UUID, errText string) error
	FailStuckRunning(ctx context.Context, tx *gorm.DB, olderThan time.Duration) (int64, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{db: db, log: baseLog.With("repo", "JobRepo")}
}

func (r *jobRepo) Create(ctx context.Context, tx *gorm.DB, job *domain.ScrapingJob) (*domain.ScrapingJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.ScrapingJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var job domain.ScrapingJob
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *jobRepo) RunningForTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*domain.ScrapingJob, error) {
	return r.latestWhere(ctx, tx, "tenant_id = ? AND state = ?", tenantID, domain.JobStateRunning)
}

func (r *jobRepo) LatestForTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*domain.ScrapingJob, error) {
	return r.latestWhere(ctx, tx, "tenant_id = ?", tenantID)
}

func (r *jobRepo) LatestCompletedForTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*domain.ScrapingJob, error) {
	return r.latestWhere(ctx, tx, "tenant_id = ? AND state = ?", tenantID, domain.JobStateCompleted)
}

func (r *jobRepo) latestWhere(ctx context.Context, tx *gorm.DB, query string, args ...interface{}) (*domain.ScrapingJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var job domain.ScrapingJob
	err := transaction.WithContext(ctx).
		Where(query, args...).
		Order("created_at DESC").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

// UpdateProgress never moves progress backwards; late writers from the
// pipeline lose against whatever is already recorded.
func (r *jobRepo) UpdateProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID, progress int, itemsProcessed int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&domain.ScrapingJob{}).
		Where("id = ? AND state = ?", id, domain.JobStateRunning).
		Updates(map[string]interface{}{
			"progress":        gorm.Expr("CASE WHEN progress < ? THEN ? ELSE progress END", progress, progress),
			"items_processed": itemsProcessed,
		}).Error
}

// Complete and Fail only transition from running; terminal rows stay immutable.

func (r *jobRepo) Complete(ctx context.Context, tx *gorm.DB, id uuid.UUID, itemsFound int, itemsProcessed int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&domain.ScrapingJob{}).
		Where("id = ? AND state = ?", id, domain.JobStateRunning).
		Updates(map[string]interface{}{
			"state":           domain.JobStateCompleted,
			"progress":        100,
			"items_found":     itemsFound,
			"items_processed": itemsProcessed,
			"completed_at":    &now,
		}).Error
}

func (r *jobRepo) Fail(ctx context.Context, tx *gorm.DB, id uuid.UUID, errText string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&domain.ScrapingJob{}).
		Where("id = ? AND state = ?", id, domain.JobStateRunning).
		Updates(map[string]interface{}{
			"state":        domain.JobStateFailed,
			"error":        errText,
			"completed_at": &now,
		}).Error
}

// FailStuckRunning is the startup sweep: a process restart mid-sync leaves a
// running row behind with no worker attached, which would block the
// single-flight guard forever.
func (r *jobRepo) FailStuckRunning(ctx context.Context, tx *gorm.DB, olderThan time.Duration) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	cutoff := now.Add(-olderThan)
	res := transaction.WithContext(ctx).
		Model(&domain.ScrapingJob{}).
		Where("state = ? AND created_at < ?", domain.JobStateRunning, cutoff).
		Updates(map[string]interface{}{
			"state":        domain.JobStateFailed,
			"error":        "abandoned: no worker attached after restart",
			"completed_at": &now,
		})
	return res.RowsAffected, res.Error
}
