package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora-ai/velora-backend/internal/db/dbtest"
	"github.com/velora-ai/velora-backend/internal/domain"
)

func runningJob(tenantID uuid.UUID) *domain.ScrapingJob {
	now := time.Now()
	return &domain.ScrapingJob{
		TenantID:  tenantID,
		Kind:      domain.JobKindManual,
		State:     domain.JobStateRunning,
		StartedAt: &now,
	}
}

func TestUpdateProgressNeverMovesBackwards(t *testing.T) {
	gdb := dbtest.Open(t)
	repo := NewJobRepo(gdb, testLogger(t))
	ctx := context.Background()

	job, err := repo.Create(ctx, nil, runningJob(uuid.New()))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateProgress(ctx, nil, job.ID, 50, 10))
	require.NoError(t, repo.UpdateProgress(ctx, nil, job.ID, 30, 12))

	got, err := repo.GetByID(ctx, nil, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Progress)
	// Item counts are not monotonic; the late write still lands.
	assert.Equal(t, 12, got.ItemsProcessed)

	require.NoError(t, repo.UpdateProgress(ctx, nil, job.ID, 80, 20))
	got, err = repo.GetByID(ctx, nil, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, got.Progress)
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	gdb := dbtest.Open(t)
	repo := NewJobRepo(gdb, testLogger(t))
	ctx := context.Background()

	job, err := repo.Create(ctx, nil, runningJob(uuid.New()))
	require.NoError(t, err)
	require.NoError(t, repo.Complete(ctx, nil, job.ID, 5, 5))

	// Late writers from a detached pipeline must not touch the terminal row.
	require.NoError(t, repo.Fail(ctx, nil, job.ID, "late failure"))
	require.NoError(t, repo.UpdateProgress(ctx, nil, job.ID, 99, 1))

	got, err := repo.GetByID(ctx, nil, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, got.State)
	assert.Equal(t, 100, got.Progress)
	assert.Empty(t, got.Error)
	assert.True(t, got.Terminal())
}

func TestRunningForTenantSeesOnlyRunning(t *testing.T) {
	gdb := dbtest.Open(t)
	repo := NewJobRepo(gdb, testLogger(t))
	ctx := context.Background()
	tenantID := uuid.New()

	job, err := repo.Create(ctx, nil, runningJob(tenantID))
	require.NoError(t, err)

	got, err := repo.RunningForTenant(ctx, nil, tenantID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)

	require.NoError(t, repo.Complete(ctx, nil, job.ID, 0, 0))
	got, err = repo.RunningForTenant(ctx, nil, tenantID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFailStuckRunning(t *testing.T) {
	gdb := dbtest.Open(t)
	repo := NewJobRepo(gdb, testLogger(t))
	ctx := context.Background()

	stale := runningJob(uuid.New())
	stale.CreatedAt = time.Now().Add(-3 * time.Hour)
	stale, err := repo.Create(ctx, nil, stale)
	require.NoError(t, err)

	fresh, err := repo.Create(ctx, nil, runningJob(uuid.New()))
	require.NoError(t, err)

	n, err := repo.FailStuckRunning(ctx, nil, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, nil, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, got.State)
	assert.Contains(t, got.Error, "abandoned")

	got, err = repo.GetByID(ctx, nil, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateRunning, got.State)
}
