package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
	"github.com/velora-ai/velora-backend/internal/repos"
)

const (
	// interactiveStaleness is the threshold applied when a user-facing
	// request asks whether a resync is due.
	interactiveStaleness = 24 * time.Hour
	// scheduledStaleness is slightly tighter so the hourly sweep never
	// misses a cycle to timer jitter.
	scheduledStaleness = 23 * time.Hour

	sweepConcurrency = 4
)

type SchedulerService interface {
	// ShouldSync decides; it never starts a job itself.
	ShouldSync(ctx context.Context, tenantID uuid.UUID, interactive bool) (bool, error)
	// Start begins the periodic sweep over active tenants.
	Start()
	Stop()
}

type schedulerService struct {
	log     *logger.Logger
	jobs    repos.JobRepo
	tenants repos.TenantRepo
	sync    SyncService

	cron *cron.Cron
	now  func() time.Time
}

func NewSchedulerService(baseLog *logger.Logger, jobs repos.JobRepo, tenants repos.TenantRepo, syncSvc SyncService) SchedulerService {
	return &schedulerService{
		log:     baseLog.With("service", "SchedulerService"),
		jobs:    jobs,
		tenants: tenants,
		sync:    syncSvc,
		cron:    cron.New(),
		now:     time.Now,
	}
}

func (s *schedulerService) ShouldSync(ctx context.Context, tenantID uuid.UUID, interactive bool) (bool, error) {
	latest, err := s.jobs.LatestCompletedForTenant(ctx, nil, tenantID)
	if err != nil {
		return false, err
	}
	if latest == nil || latest.CompletedAt == nil {
		return true, nil
	}
	threshold := scheduledStaleness
	if interactive {
		threshold = interactiveStaleness
	}
	return s.now().Sub(*latest.CompletedAt) >= threshold, nil
}

func (s *schedulerService) Start() {
	if _, err := s.cron.AddFunc("@hourly", s.sweep); err != nil {
		s.log.Error("Failed to register staleness sweep", "error", err)
		return
	}
	s.cron.Start()
	s.log.Info("Staleness sweep scheduled", "cadence", "@hourly")
}

func (s *schedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *schedulerService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	tenants, err := s.tenants.ListActive(ctx, nil)
	if err != nil {
		s.log.Error("Staleness sweep: listing tenants failed", "error", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, tenant := range tenants {
		tenant := tenant
		g.Go(func() error {
			due, err := s.ShouldSync(gctx, tenant.ID, false)
			if err != nil {
				s.log.Warn("Staleness check failed", "tenant_id", tenant.ID, "error", err)
				return nil
			}
			if !due {
				return nil
			}
			// StartSync re-applies the single-flight guard.
			if _, err := s.sync.StartSync(gctx, tenant, domain.JobKindScheduled); err != nil {
				if errors.Is(err, ErrSyncAlreadyRunning) {
					return nil
				}
				s.log.Warn("Scheduled sync failed to start", "tenant_id", tenant.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
