package app

import (
	"github.com/velora-ai/velora-backend/internal/clients/openai"
	"github.com/velora-ai/velora-backend/internal/clients/shopify"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
	"github.com/velora-ai/velora-backend/internal/services"
)

type Services struct {
	Sync      services.SyncService
	Scheduler services.SchedulerService
	Retrieval services.RetrievalService
	Chat      services.ChatService
	Analytics services.AnalyticsService
}

func wireServices(log *logger.Logger, cfg Config, reposet Repos) Services {
	log.Info("Wiring services...")

	shopifyClient := shopify.NewClient(log)

	// A missing model credential degrades chat to the friendly error reply
	// instead of blocking startup; sync and search stay fully functional.
	var llm services.LLMClient
	if openaiClient, err := openai.NewClient(log); err != nil {
		log.Warn("OpenAI client unavailable, chat turns will degrade", "error", err)
	} else {
		llm = openaiClient
	}

	rules, err := services.LoadRetrievalRules(cfg.RetrievalRulesPath)
	if err != nil {
		log.Warn("Retrieval rules override not loaded, using defaults", "error", err)
	}

	retrieval := services.NewRetrievalService(log, reposet.Content, rules, nil)
	syncSvc := services.NewSyncService(log, reposet.Job, reposet.Content, shopifyClient)
	scheduler := services.NewSchedulerService(log, reposet.Job, reposet.Tenant, syncSvc)
	analytics := services.NewAnalyticsService(log, reposet.Analytics)
	chat := services.NewChatService(log, reposet.ChatSession, reposet.ChatMessage, retrieval, analytics, llm)

	return Services{
		Sync:      syncSvc,
		Scheduler: scheduler,
		Retrieval: retrieval,
		Chat:      chat,
		Analytics: analytics,
	}
}
