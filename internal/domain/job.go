package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatePending   = "pending"
	JobStateRunning   = "running"
	JobStateCompleted = "completed"
	JobStateFailed    = "failed"
)

const (
	JobKindManual     = "manual"
	JobKindScheduled  = "scheduled"
	JobKindBackground = "background-trigger"
)

// ScrapingJob tracks one execution of the catalog sync pipeline. States move
// only forward; completed/failed rows are never mutated again. At most one job
// per tenant may be running at a time (advisory, see sync service).
type ScrapingJob struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`

	Kind  string `gorm:"type:text;not null;default:'manual'" json:"kind"`
	State string `gorm:"type:text;not null;default:'pending';index" json:"state"`

	Progress       int    `gorm:"not null;default:0" json:"progress"`
	ItemsFound     int    `gorm:"not null;default:0" json:"items_found"`
	ItemsProcessed int    `gorm:"not null;default:0" json:"items_processed"`
	Error          string `gorm:"type:text;not null;default:''" json:"error,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
}

func (ScrapingJob) TableName() string { return "scraping_job" }

// Terminal reports whether the job has reached an immutable state.
func (j *ScrapingJob) Terminal() bool {
	return j.State == JobStateCompleted || j.State == JobStateFailed
}
