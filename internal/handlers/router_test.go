package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora-ai/velora-backend/internal/db/dbtest"
	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/handlers"
	"github.com/velora-ai/velora-backend/internal/middleware"
	"github.com/velora-ai/velora-backend/internal/normalization"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
	"github.com/velora-ai/velora-backend/internal/repos"
	"github.com/velora-ai/velora-backend/internal/server"
	"github.com/velora-ai/velora-backend/internal/services"
)

const testStoreDomain = "router-test.example.com"

type staticFetcher struct{}

func (staticFetcher) FetchCategory(ctx context.Context, storeDomain, accessToken, category string, onPage func([]normalization.RawRecord) error) error {
	if category != domain.CategoryItem {
		return nil
	}
	return onPage([]normalization.RawRecord{{
		ExternalID: "1",
		Title:      "Dark Chocolate Bar",
		BodyHTML:   "<p>70% cocoa.</p>",
	}})
}

type routerFixture struct {
	router *gin.Engine
	jobs   repos.JobRepo
	tenant repos.TenantRepo
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb := dbtest.Open(t)
	log, err := logger.New("prod")
	require.NoError(t, err)

	tenants := repos.NewTenantRepo(gdb, log)
	content := repos.NewContentRepo(gdb, log)
	jobs := repos.NewJobRepo(gdb, log)
	sessions := repos.NewChatSessionRepo(gdb, log)
	messages := repos.NewChatMessageRepo(gdb, log)
	analyticsRepo := repos.NewAnalyticsRepo(gdb, log)

	syncSvc := services.NewSyncService(log, jobs, content, staticFetcher{})
	scheduler := services.NewSchedulerService(log, jobs, tenants, syncSvc)
	retrieval := services.NewRetrievalService(log, content, services.DefaultRetrievalRules(), nil)
	analytics := services.NewAnalyticsService(log, analyticsRepo)
	// No model credential: chat turns answer with the friendly error reply.
	chat := services.NewChatService(log, sessions, messages, retrieval, analytics, nil)

	router := server.NewRouter(server.RouterConfig{
		ChatHandler:         handlers.NewChatHandler(log, chat, scheduler, syncSvc),
		SyncHandler:         handlers.NewSyncHandler(log, syncSvc),
		SearchHandler:       handlers.NewSearchHandler(log, retrieval),
		AnalyticsHandler:    handlers.NewAnalyticsHandler(log, analytics),
		TenantMiddleware:    middleware.NewTenantMiddleware(log, tenants),
		RateLimitMiddleware: middleware.NewRateLimitMiddleware(log, nil),
	})
	return &routerFixture{router: router, jobs: jobs, tenant: tenants}
}

func (fx *routerFixture) do(method, path string, body any, withTenant bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if withTenant {
		req.Header.Set(middleware.StoreDomainHeader, testStoreDomain)
	}
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func TestHealthcheck(t *testing.T) {
	fx := newRouterFixture(t)
	w := fx.do(http.MethodGet, "/healthcheck", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestMissingStoreDomainHeader(t *testing.T) {
	fx := newRouterFixture(t)
	w := fx.do(http.MethodGet, "/api/sync/status", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_store_domain")
}

func TestTenantCreatedOnFirstContact(t *testing.T) {
	fx := newRouterFixture(t)
	w := fx.do(http.MethodGet, "/api/sync/status", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	tenant, err := fx.tenant.GetByDomain(context.Background(), nil, testStoreDomain)
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.True(t, tenant.Active)
}

func TestTriggerSyncConflictsWithRunningJob(t *testing.T) {
	fx := newRouterFixture(t)

	// First contact creates the tenant row.
	w := fx.do(http.MethodGet, "/api/sync/status", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	tenant, err := fx.tenant.GetByDomain(context.Background(), nil, testStoreDomain)
	require.NoError(t, err)

	now := time.Now()
	_, err = fx.jobs.Create(context.Background(), nil, &domain.ScrapingJob{
		TenantID:  tenant.ID,
		Kind:      domain.JobKindManual,
		State:     domain.JobStateRunning,
		StartedAt: &now,
	})
	require.NoError(t, err)

	w = fx.do(http.MethodPost, "/api/sync", nil, true)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "sync_already_running")
}

func TestChatValidation(t *testing.T) {
	fx := newRouterFixture(t)

	w := fx.do(http.MethodPost, "/api/chat", gin.H{"session_id": "s-1"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_message")

	w = fx.do(http.MethodPost, "/api/chat", gin.H{"message": "hi there"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_session_id")
}

func TestChatWithoutModelStillAnswers(t *testing.T) {
	fx := newRouterFixture(t)

	w := fx.do(http.MethodPost, "/api/chat", gin.H{
		"session_id": "s-1",
		"message":    "Do you ship to Canada?",
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Reply     string `json:"reply"`
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "s-1", resp.SessionID)
	assert.NotEmpty(t, resp.Reply)
}

func TestSearchValidation(t *testing.T) {
	fx := newRouterFixture(t)

	w := fx.do(http.MethodGet, "/api/search", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_query")

	w = fx.do(http.MethodGet, "/api/search?q=chocolate&mode=bogus", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_mode")

	w = fx.do(http.MethodGet, "/api/search?q=chocolate", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyticsExposureEndpoint(t *testing.T) {
	fx := newRouterFixture(t)

	w := fx.do(http.MethodPost, "/api/analytics/exposure", gin.H{
		"item_id": "item-1",
		"title":   "Dark Chocolate Bar",
		"kind":    "purchased",
	}, true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = fx.do(http.MethodPost, "/api/analytics/exposure", gin.H{
		"item_id": "item-1",
		"kind":    "clicked",
	}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_kind")
}
