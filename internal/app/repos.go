package app

import (
	"gorm.io/gorm"

	"github.com/velora-ai/velora-backend/internal/platform/logger"
	"github.com/velora-ai/velora-backend/internal/repos"
)

type Repos struct {
	Tenant      repos.TenantRepo
	Content     repos.ContentRepo
	Job         repos.JobRepo
	ChatSession repos.ChatSessionRepo
	ChatMessage repos.ChatMessageRepo
	Analytics   repos.AnalyticsRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Tenant:      repos.NewTenantRepo(db, log),
		Content:     repos.NewContentRepo(db, log),
		Job:         repos.NewJobRepo(db, log),
		ChatSession: repos.NewChatSessionRepo(db, log),
		ChatMessage: repos.NewChatMessageRepo(db, log),
		Analytics:   repos.NewAnalyticsRepo(db, log),
	}
}
