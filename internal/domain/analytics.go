package domain

import (
	"time"

	"github.com/google/uuid"
)

// PopularQuestion is a tenant-scoped rolling counter keyed by normalized
// question text. Upserted, never deleted here.
type PopularQuestion struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_popular_question_tenant_question,priority:1" json:"tenant_id"`
	Question string    `gorm:"type:text;not null;uniqueIndex:ux_popular_question_tenant_question,priority:2" json:"question"`

	Frequency   int       `gorm:"not null;default:1" json:"frequency"`
	LastAskedAt time.Time `gorm:"not null" json:"last_asked_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (PopularQuestion) TableName() string { return "popular_question" }

// ProductMetric counts exposures per external item id.
type ProductMetric struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_product_metric_tenant_item,priority:1" json:"tenant_id"`
	ExternalItemID string    `gorm:"type:text;not null;uniqueIndex:ux_product_metric_tenant_item,priority:2" json:"external_item_id"`
	Title          string    `gorm:"type:text;not null;default:''" json:"title"`

	TimesRecommended int `gorm:"not null;default:0" json:"times_recommended"`
	TimesViewed      int `gorm:"not null;default:0" json:"times_viewed"`
	TimesPurchased   int `gorm:"not null;default:0" json:"times_purchased"`

	LastRecommendedAt *time.Time `json:"last_recommended_at,omitempty"`
	CreatedAt         time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null" json:"updated_at"`
}

func (ProductMetric) TableName() string { return "product_metric" }
