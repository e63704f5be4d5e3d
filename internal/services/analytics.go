package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
	"github.com/velora-ai/velora-backend/internal/repos"
)

const (
	ExposureViewed      = "viewed"
	ExposureRecommended = "recommended"
	ExposurePurchased   = "purchased"
)

// AnalyticsService aggregates question frequency and product exposure
// counters. Every write is best-effort: a failure is logged and swallowed so
// it can never abort the conversation turn that triggered it.
type AnalyticsService interface {
	RecordQuestion(ctx context.Context, tenantID uuid.UUID, rawQuestion string)
	RecordProductExposure(ctx context.Context, tenantID uuid.UUID, itemID string, title string, kind string)
	TopQuestions(ctx context.Context, tenantID uuid.UUID, limit int) ([]*domain.PopularQuestion, error)
}

type analyticsService struct {
	log  *logger.Logger
	repo repos.AnalyticsRepo
}

func NewAnalyticsService(baseLog *logger.Logger, repo repos.AnalyticsRepo) AnalyticsService {
	return &analyticsService{
		log:  baseLog.With("service", "AnalyticsService"),
		repo: repo,
	}
}

func (s *analyticsService) RecordQuestion(ctx context.Context, tenantID uuid.UUID, rawQuestion string) {
	normalized := strings.ToLower(strings.TrimSpace(rawQuestion))
	if len([]rune(normalized)) < 3 {
		return
	}
	if err := s.repo.UpsertQuestion(ctx, nil, tenantID, normalized, time.Now()); err != nil {
		s.log.Warn("Question upsert dropped", "tenant_id", tenantID, "error", err)
	}
}

func (s *analyticsService) RecordProductExposure(ctx context.Context, tenantID uuid.UUID, itemID string, title string, kind string) {
	if strings.TrimSpace(itemID) == "" {
		return
	}
	if err := s.repo.IncrementProductMetric(ctx, nil, tenantID, itemID, title, kind, time.Now()); err != nil {
		s.log.Warn("Product metric dropped",
			"tenant_id", tenantID,
			"item_id", itemID,
			"kind", kind,
			"error", err,
		)
	}
}

func (s *analyticsService) TopQuestions(ctx context.Context, tenantID uuid.UUID, limit int) ([]*domain.PopularQuestion, error) {
	return s.repo.TopQuestions(ctx, nil, tenantID, limit)
}
