package app

import (
	"github.com/velora-ai/velora-backend/internal/handlers"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

type Handlers struct {
	Chat      *handlers.ChatHandler
	Sync      *handlers.SyncHandler
	Search    *handlers.SearchHandler
	Analytics *handlers.AnalyticsHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Chat:      handlers.NewChatHandler(log, serviceset.Chat, serviceset.Scheduler, serviceset.Sync),
		Sync:      handlers.NewSyncHandler(log, serviceset.Sync),
		Search:    handlers.NewSearchHandler(log, serviceset.Retrieval),
		Analytics: handlers.NewAnalyticsHandler(log, serviceset.Analytics),
	}
}
