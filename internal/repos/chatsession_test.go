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

func TestGetOrCreateSessionIsIdempotent(t *testing.T) {
	gdb := dbtest.Open(t)
	repo := NewChatSessionRepo(gdb, testLogger(t))
	ctx := context.Background()
	tenantID := uuid.New()

	first, err := repo.GetOrCreate(ctx, nil, &domain.ChatSession{
		TenantID:  tenantID,
		SessionID: "widget-abc",
		Active:    true,
	})
	require.NoError(t, err)
	assert.False(t, first.ExpiresAt.IsZero())

	second, err := repo.GetOrCreate(ctx, nil, &domain.ChatSession{
		TenantID:  tenantID,
		SessionID: "widget-abc",
		Active:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestSessionsAreScopedToTenant(t *testing.T) {
	gdb := dbtest.Open(t)
	repo := NewChatSessionRepo(gdb, testLogger(t))
	ctx := context.Background()
	tenantA := uuid.New()
	tenantB := uuid.New()

	first, err := repo.GetOrCreate(ctx, nil, &domain.ChatSession{
		TenantID:  tenantA,
		SessionID: "widget-shared",
		Active:    true,
	})
	require.NoError(t, err)

	// The same client-supplied id under another tenant mints a separate row
	// instead of attaching to the first tenant's conversation.
	second, err := repo.GetOrCreate(ctx, nil, &domain.ChatSession{
		TenantID:  tenantB,
		SessionID: "widget-shared",
		Active:    true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, tenantB, second.TenantID)

	got, err := repo.GetBySessionID(ctx, nil, tenantA, "widget-shared")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)

	// A tenant that never used the id sees no session at all.
	missing, err := repo.GetBySessionID(ctx, nil, uuid.New(), "widget-shared")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecentBySessionWindowsAndOrders(t *testing.T) {
	gdb := dbtest.Open(t)
	sessions := NewChatSessionRepo(gdb, testLogger(t))
	messages := NewChatMessageRepo(gdb, testLogger(t))
	ctx := context.Background()

	session, err := sessions.GetOrCreate(ctx, nil, &domain.ChatSession{
		TenantID:  uuid.New(),
		SessionID: "widget-xyz",
		Active:    true,
	})
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	contents := []string{"one", "two", "three", "four", "five"}
	for i, c := range contents {
		_, err := messages.Append(ctx, nil, &domain.ChatMessage{
			SessionID: session.ID,
			Role:      domain.RoleUser,
			Content:   c,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	recent, err := messages.RecentBySession(ctx, nil, session.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	// Newest three, returned oldest first.
	assert.Equal(t, "three", recent[0].Content)
	assert.Equal(t, "four", recent[1].Content)
	assert.Equal(t, "five", recent[2].Content)
}
