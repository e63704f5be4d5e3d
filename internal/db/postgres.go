package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/platform/envutil"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	host := envutil.String("POSTGRES_HOST", "localhost")
	port := envutil.String("POSTGRES_PORT", "5432")
	user := envutil.String("POSTGRES_USER", "postgres")
	password := envutil.String("POSTGRES_PASSWORD", "")
	name := envutil.String("POSTGRES_NAME", "velora")
	sslmode := envutil.String("POSTGRES_SSLMODE", "disable")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)

	log.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	// Backs the advisory single-flight check with a real exclusion constraint
	// so two processes racing on the same tenant cannot both insert a running
	// job. The sync service maps the resulting insert conflict to
	// ErrSyncAlreadyRunning.
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS ux_scraping_job_tenant_running
		ON scraping_job (tenant_id)
		WHERE state = 'running'
	`).Error; err != nil {
		return fmt.Errorf("create running-job exclusion index: %w", err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}

// AutoMigrateAll migrates every persisted entity. Split out so tests can run
// the same migration against an in-memory sqlite database; ids and timestamps
// are assigned in application code so the schema carries no function defaults.
func AutoMigrateAll(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		// Identity
		&domain.Tenant{},

		// Content mirror
		&domain.ContentRecord{},

		// Sync jobs
		&domain.ScrapingJob{},

		// Chat
		&domain.ChatSession{},
		&domain.ChatMessage{},

		// Analytics
		&domain.PopularQuestion{},
		&domain.ProductMetric{},
	)
}
