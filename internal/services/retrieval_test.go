package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora-ai/velora-backend/internal/db/dbtest"
	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/repos"
)

func seedRetrievalFixture(t *testing.T) (RetrievalService, uuid.UUID) {
	t.Helper()
	gdb := dbtest.Open(t)
	log := testLogger(t)
	content := repos.NewContentRepo(gdb, log)
	tenantID := uuid.New()
	ctx := context.Background()
	now := time.Now()

	items := []*domain.ContentRecord{
		{
			ExternalID:   "1",
			Title:        "Diet Chocolate Bar",
			Body:         "A low sugar chocolate bar for diet plans.",
			Keywords:     "diet,chocolate,bar,sugar",
			SearchBlob:   "diet chocolate bar a low sugar chocolate bar for diet plans",
			LastSyncedAt: now,
			Active:       true,
		},
		{
			ExternalID:   "2",
			Title:        "Chocolate Truffles",
			Body:         "Rich truffles with a soft center.",
			Keywords:     "chocolate,truffles,gift",
			SearchBlob:   "chocolate truffles rich truffles with a soft center",
			LastSyncedAt: now,
			Active:       true,
		},
		{
			ExternalID:   "3",
			Title:        "Vanilla Bar",
			Body:         "Classic vanilla flavor.",
			Keywords:     "vanilla,bar",
			SearchBlob:   "vanilla bar classic vanilla flavor",
			LastSyncedAt: now,
			Active:       true,
		},
	}
	require.NoError(t, content.ReplaceCategory(ctx, nil, tenantID, domain.CategoryItem, items))

	articles := []*domain.ContentRecord{
		{
			ExternalID:   "10",
			Title:        "Why our chocolate is organic",
			Body:         "We source organic cacao.",
			Keywords:     "chocolate,organic,cacao",
			SearchBlob:   "why our chocolate is organic we source organic cacao",
			LastSyncedAt: now,
			Active:       true,
		},
	}
	require.NoError(t, content.ReplaceCategory(ctx, nil, tenantID, domain.CategoryArticle, articles))

	return NewRetrievalService(log, content, DefaultRetrievalRules(), nil), tenantID
}

func TestPrepareAppliesCorrections(t *testing.T) {
	svc, _ := seedRetrievalFixture(t)

	tests := []struct {
		name      string
		query     string
		corrected string
		tokens    []string
	}{
		{
			name:      "misspelling corrected",
			query:     "Chocolat Diet",
			corrected: "chocolate diet",
			tokens:    []string{"chocolate", "diet"},
		},
		{
			name:      "hyphenated form expands",
			query:     "gluten-free snacks",
			corrected: "gluten free snacks",
			tokens:    []string{"gluten", "free", "snacks"},
		},
		{
			name:      "short tokens dropped",
			query:     "is it vegan",
			corrected: "is it vegan",
			tokens:    []string{"vegan"},
		},
		{
			name:      "blank query",
			query:     "   ",
			corrected: "",
			tokens:    nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sq := svc.Prepare(tc.query)
			assert.Equal(t, tc.corrected, sq.Corrected)
			if tc.tokens == nil {
				assert.Empty(t, sq.Tokens)
			} else {
				assert.Equal(t, tc.tokens, sq.Tokens)
			}
		})
	}
}

func TestRankedOrdersByRelevance(t *testing.T) {
	svc, tenantID := seedRetrievalFixture(t)

	ranked, err := svc.Ranked(context.Background(), tenantID, "chocolat diet", nil, 10)
	require.NoError(t, err)
	require.NotEmpty(t, ranked)

	assert.Equal(t, "Diet Chocolate Bar", ranked[0].Record.Title)
	for _, r := range ranked {
		// Zero-overlap records never appear, whatever the aggregate bonuses.
		assert.NotEqual(t, "Vanilla Bar", r.Record.Title)
		assert.Greater(t, r.Score, 0)
	}
	assert.True(t, ranked[0].Score > ranked[len(ranked)-1].Score)
}

func TestRankedHonorsCategoryAllowList(t *testing.T) {
	svc, tenantID := seedRetrievalFixture(t)

	ranked, err := svc.Ranked(context.Background(), tenantID, "chocolate", []string{domain.CategoryArticle}, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "Why our chocolate is organic", ranked[0].Record.Title)
}

func TestRankedEmptyQueryReturnsNothing(t *testing.T) {
	svc, tenantID := seedRetrievalFixture(t)

	ranked, err := svc.Ranked(context.Background(), tenantID, "   ", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestRankedAppliesLimit(t *testing.T) {
	svc, tenantID := seedRetrievalFixture(t)

	ranked, err := svc.Ranked(context.Background(), tenantID, "chocolate", nil, 2)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)
}

func TestRuleScorerConceptBonus(t *testing.T) {
	scorer := NewRuleScorer(DefaultRetrievalRules())
	query := ScoredQuery{Corrected: "vegan chocolate", Tokens: []string{"vegan", "chocolate"}}

	both := &domain.ContentRecord{
		Title:      "Vegan Chocolate Cookies",
		SearchBlob: "vegan chocolate cookies",
	}
	split := &domain.ContentRecord{
		Title:      "Chocolate Cookies",
		Body:       "Our vegan recipe uses oat milk.",
		SearchBlob: "chocolate cookies our vegan recipe uses oat milk",
	}
	single := &domain.ContentRecord{
		Title:      "Chocolate Cookies",
		SearchBlob: "chocolate cookies",
	}

	assert.Greater(t, scorer.Score(both, query), scorer.Score(split, query))
	assert.Greater(t, scorer.Score(split, query), scorer.Score(single, query))
}
