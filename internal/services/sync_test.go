package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora-ai/velora-backend/internal/clients/shopify"
	"github.com/velora-ai/velora-backend/internal/db/dbtest"
	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/normalization"
	"github.com/velora-ai/velora-backend/internal/repos"
)

// fakeFetcher serves canned catalog pages per category.
type fakeFetcher struct {
	pages     map[string][]normalization.RawRecord
	forbidden map[string]bool
	failOn    string
	calls     []string
}

func (f *fakeFetcher) FetchCategory(ctx context.Context, storeDomain, accessToken, category string, onPage func([]normalization.RawRecord) error) error {
	f.calls = append(f.calls, category)
	if f.forbidden[category] {
		return shopify.ErrCategoryForbidden
	}
	if f.failOn == category {
		return errors.New("upstream exploded")
	}
	if page := f.pages[category]; len(page) > 0 {
		return onPage(page)
	}
	return nil
}

type syncFixture struct {
	svc     *syncService
	jobs    repos.JobRepo
	content repos.ContentRepo
	tenant  *domain.Tenant
}

func newSyncFixture(t *testing.T, fetcher *fakeFetcher) *syncFixture {
	t.Helper()
	gdb := dbtest.Open(t)
	log := testLogger(t)
	jobs := repos.NewJobRepo(gdb, log)
	content := repos.NewContentRepo(gdb, log)

	svc := NewSyncService(log, jobs, content, fetcher).(*syncService)
	// Run the pipeline inline so assertions see its final state.
	svc.dispatch = func(fn func()) { fn() }

	return &syncFixture{
		svc:     svc,
		jobs:    jobs,
		content: content,
		tenant: &domain.Tenant{
			ID:          uuid.New(),
			StoreDomain: "test-store.example.com",
			AccessToken: "shpat_test",
			Active:      true,
		},
	}
}

func raw(id, title string) normalization.RawRecord {
	return normalization.RawRecord{ExternalID: id, Title: title, BodyHTML: "<p>" + title + "</p>"}
}

func TestStartSyncRunsPipelineToCompletion(t *testing.T) {
	fx := newSyncFixture(t, &fakeFetcher{
		pages: map[string][]normalization.RawRecord{
			domain.CategoryItem:    {raw("1", "Dark Chocolate Bar"), raw("2", "Lavender Soap")},
			domain.CategoryArticle: {raw("10", "Shipping FAQ")},
		},
	})
	ctx := context.Background()

	job, err := fx.svc.StartSync(ctx, fx.tenant, domain.JobKindManual)
	require.NoError(t, err)

	got, err := fx.jobs.GetByID(ctx, nil, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, got.State)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 3, got.ItemsFound)
	assert.Equal(t, 3, got.ItemsProcessed)
	require.NotNil(t, got.CompletedAt)

	status, err := fx.svc.GetStatus(ctx, fx.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.Counts[domain.CategoryItem])
	assert.Equal(t, int64(1), status.Counts[domain.CategoryArticle])
}

func TestStartSyncRejectsConcurrentJob(t *testing.T) {
	fx := newSyncFixture(t, &fakeFetcher{})
	ctx := context.Background()

	now := time.Now()
	_, err := fx.jobs.Create(ctx, nil, &domain.ScrapingJob{
		TenantID:  fx.tenant.ID,
		Kind:      domain.JobKindManual,
		State:     domain.JobStateRunning,
		StartedAt: &now,
	})
	require.NoError(t, err)

	_, err = fx.svc.StartSync(ctx, fx.tenant, domain.JobKindManual)
	assert.ErrorIs(t, err, ErrSyncAlreadyRunning)
}

func TestForbiddenCategoryIsSkipped(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[string][]normalization.RawRecord{
			domain.CategoryItem: {raw("1", "Dark Chocolate Bar")},
		},
		forbidden: map[string]bool{domain.CategoryArticle: true},
	}
	fx := newSyncFixture(t, fetcher)
	ctx := context.Background()

	job, err := fx.svc.StartSync(ctx, fx.tenant, domain.JobKindManual)
	require.NoError(t, err)

	got, err := fx.jobs.GetByID(ctx, nil, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, got.State)

	// Every category was still attempted.
	assert.Equal(t, domain.KnownCategories(), fetcher.calls)

	status, err := fx.svc.GetStatus(ctx, fx.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Counts[domain.CategoryItem])
	assert.Zero(t, status.Counts[domain.CategoryArticle])
}

func TestFetchFailureFailsJob(t *testing.T) {
	fx := newSyncFixture(t, &fakeFetcher{failOn: domain.CategoryItem})
	ctx := context.Background()

	job, err := fx.svc.StartSync(ctx, fx.tenant, domain.JobKindManual)
	require.NoError(t, err)

	got, err := fx.jobs.GetByID(ctx, nil, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, got.State)
	assert.Contains(t, got.Error, "upstream exploded")
	require.NotNil(t, got.CompletedAt)

	// Failing the first category leaves the mirror untouched.
	status, err := fx.svc.GetStatus(ctx, fx.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, status.Counts)
}

func TestResyncReplacesCategoryWholesale(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[string][]normalization.RawRecord{
			domain.CategoryItem: {raw("1", "Alpha"), raw("2", "Beta")},
		},
	}
	fx := newSyncFixture(t, fetcher)
	ctx := context.Background()

	_, err := fx.svc.StartSync(ctx, fx.tenant, domain.JobKindManual)
	require.NoError(t, err)

	fetcher.pages[domain.CategoryItem] = []normalization.RawRecord{raw("2", "Beta v2")}
	_, err = fx.svc.StartSync(ctx, fx.tenant, domain.JobKindScheduled)
	require.NoError(t, err)

	records, err := fx.content.ListActive(ctx, nil, fx.tenant.ID, []string{domain.CategoryItem})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Beta v2", records[0].Title)
}

func TestRecoverStuckJobs(t *testing.T) {
	fx := newSyncFixture(t, &fakeFetcher{})
	ctx := context.Background()

	now := time.Now()
	stale := &domain.ScrapingJob{
		TenantID:  fx.tenant.ID,
		Kind:      domain.JobKindManual,
		State:     domain.JobStateRunning,
		StartedAt: &now,
		CreatedAt: now.Add(-3 * time.Hour),
	}
	stale, err := fx.jobs.Create(ctx, nil, stale)
	require.NoError(t, err)

	require.NoError(t, fx.svc.RecoverStuckJobs(ctx))

	got, err := fx.jobs.GetByID(ctx, nil, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, got.State)

	// The guard is free again for the next sync.
	_, err = fx.svc.StartSync(ctx, fx.tenant, domain.JobKindManual)
	require.NoError(t, err)
}
