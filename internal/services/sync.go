package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/velora-ai/velora-backend/internal/clients/shopify"
	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/normalization"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
	"github.com/velora-ai/velora-backend/internal/repos"
)

// ErrSyncAlreadyRunning is returned when a tenant already has a running job.
var ErrSyncAlreadyRunning = errors.New("a sync job is already running for this tenant")

// stuckJobAge is how old a running job must be before the startup sweep
// declares it abandoned.
const stuckJobAge = 2 * time.Hour

// CatalogFetcher pages through one category of the external catalog.
// *shopify.Client satisfies this.
type CatalogFetcher interface {
	FetchCategory(ctx context.Context, storeDomain string, accessToken string, category string, onPage func(records []normalization.RawRecord) error) error
}

type SyncStatus struct {
	Job    *domain.ScrapingJob `json:"job"`
	Counts map[string]int64    `json:"counts"`
}

type SyncService interface {
	// StartSync enforces the single-flight guard, inserts a running job and
	// dispatches the pipeline without blocking the caller.
	StartSync(ctx context.Context, tenant *domain.Tenant, kind string) (*domain.ScrapingJob, error)
	GetStatus(ctx context.Context, tenantID uuid.UUID) (*SyncStatus, error)
	// RecoverStuckJobs fails running jobs left behind by a process restart.
	RecoverStuckJobs(ctx context.Context) error
}

type syncService struct {
	log     *logger.Logger
	jobs    repos.JobRepo
	content repos.ContentRepo
	fetcher CatalogFetcher

	// dispatch runs the pipeline; the default forks a goroutine, tests swap
	// in a synchronous runner.
	dispatch func(fn func())
}

func NewSyncService(baseLog *logger.Logger, jobs repos.JobRepo, content repos.ContentRepo, fetcher CatalogFetcher) SyncService {
	return &syncService{
		log:      baseLog.With("service", "SyncService"),
		jobs:     jobs,
		content:  content,
		fetcher:  fetcher,
		dispatch: func(fn func()) { go fn() },
	}
}

func (s *syncService) StartSync(ctx context.Context, tenant *domain.Tenant, kind string) (*domain.ScrapingJob, error) {
	running, err := s.jobs.RunningForTenant(ctx, nil, tenant.ID)
	if err != nil {
		return nil, err
	}
	if running != nil {
		return nil, ErrSyncAlreadyRunning
	}

	now := time.Now()
	job := &domain.ScrapingJob{
		TenantID:  tenant.ID,
		Kind:      kind,
		State:     domain.JobStateRunning,
		StartedAt: &now,
	}
	job, err = s.jobs.Create(ctx, nil, job)
	if err != nil {
		// The check above races against other processes; the partial unique
		// index on (tenant_id) WHERE state='running' turns the race into an
		// insert conflict. Re-check before surfacing the raw error.
		if again, checkErr := s.jobs.RunningForTenant(ctx, nil, tenant.ID); checkErr == nil && again != nil {
			return nil, ErrSyncAlreadyRunning
		}
		return nil, err
	}

	s.log.Info("Sync job accepted",
		"tenant_id", tenant.ID,
		"job_id", job.ID,
		"kind", kind,
	)

	tenantCopy := *tenant
	jobID := job.ID
	s.dispatch(func() {
		s.runPipeline(context.Background(), &tenantCopy, jobID)
	})
	return job, nil
}

// runPipeline drives fetch -> normalize -> replace for every category. It is
// the outermost boundary for the detached job: any panic or unhandled error
// ends in exactly one terminal transition on the job row.
func (s *syncService) runPipeline(ctx context.Context, tenant *domain.Tenant, jobID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Sync pipeline panic", "job_id", jobID, "panic", r)
			if err := s.jobs.Fail(ctx, nil, jobID, fmt.Sprintf("panic: %v", r)); err != nil {
				s.log.Error("Failed to mark panicked job failed", "job_id", jobID, "error", err)
			}
		}
	}()

	categories := domain.KnownCategories()
	totalFound := 0
	totalProcessed := 0
	syncedAt := time.Now()

	for i, category := range categories {
		catLog := s.log.With("job_id", jobID, "category", category)

		var records []*domain.ContentRecord
		err := s.fetcher.FetchCategory(ctx, tenant.StoreDomain, tenant.AccessToken, category, func(page []normalization.RawRecord) error {
			for _, raw := range page {
				records = append(records, normalization.Normalize(tenant, category, raw, syncedAt))
			}
			return nil
		})
		if err != nil {
			// A credential whose scope misses a category is expected; keep
			// going with the rest.
			if errors.Is(err, shopify.ErrCategoryForbidden) {
				catLog.Warn("Category skipped: credential scope does not cover it")
				continue
			}
			catLog.Error("Category fetch failed, aborting job", "error", err)
			if failErr := s.jobs.Fail(ctx, nil, jobID, err.Error()); failErr != nil {
				catLog.Error("Failed to mark job failed", "error", failErr)
			}
			return
		}

		totalFound += len(records)
		if err := s.content.ReplaceCategory(ctx, nil, tenant.ID, category, records); err != nil {
			catLog.Error("Category replace failed, aborting job", "error", err)
			if failErr := s.jobs.Fail(ctx, nil, jobID, err.Error()); failErr != nil {
				catLog.Error("Failed to mark job failed", "error", failErr)
			}
			return
		}
		totalProcessed += len(records)

		progress := (i + 1) * 100 / len(categories)
		if progress > 99 {
			progress = 99
		}
		if err := s.jobs.UpdateProgress(ctx, nil, jobID, progress, totalProcessed); err != nil {
			catLog.Warn("Progress update failed", "error", err)
		}
		catLog.Info("Category synced", "records", len(records), "progress", progress)
	}

	if err := s.jobs.Complete(ctx, nil, jobID, totalFound, totalProcessed); err != nil {
		s.log.Error("Failed to mark job completed", "job_id", jobID, "error", err)
		return
	}
	s.log.Info("Sync job completed",
		"job_id", jobID,
		"items_found", totalFound,
		"items_processed", totalProcessed,
	)
}

func (s *syncService) GetStatus(ctx context.Context, tenantID uuid.UUID) (*SyncStatus, error) {
	job, err := s.jobs.LatestForTenant(ctx, nil, tenantID)
	if err != nil {
		return nil, err
	}
	counts, err := s.content.CountByCategory(ctx, nil, tenantID)
	if err != nil {
		return nil, err
	}
	return &SyncStatus{Job: job, Counts: counts}, nil
}

func (s *syncService) RecoverStuckJobs(ctx context.Context) error {
	n, err := s.jobs.FailStuckRunning(ctx, nil, stuckJobAge)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Warn("Marked stuck running jobs as failed", "count", n)
	}
	return nil
}
