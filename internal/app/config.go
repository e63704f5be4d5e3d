package app

import (
	"strings"

	"github.com/velora-ai/velora-backend/internal/platform/envutil"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

type Config struct {
	Port               string
	AllowOrigins       []string
	RetrievalRulesPath string

	// SchedulerEnabled turns the hourly staleness sweep off for one-off
	// environments (migrations, load tests) without a code change.
	SchedulerEnabled bool
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:               envutil.String("PORT", "8080"),
		RetrievalRulesPath: envutil.String("RETRIEVAL_RULES_PATH", ""),
		SchedulerEnabled:   envutil.Bool("SCHEDULER_ENABLED", true),
	}
	if raw := envutil.String("CORS_ALLOW_ORIGINS", ""); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
			}
		}
	}
	log.Info("Configuration loaded",
		"port", cfg.Port,
		"cors_origins", len(cfg.AllowOrigins),
		"retrieval_rules_path", cfg.RetrievalRulesPath,
		"scheduler_enabled", cfg.SchedulerEnabled,
	)
	return cfg
}
