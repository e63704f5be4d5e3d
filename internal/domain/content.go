package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	CategoryItem       = "item"
	CategoryArticle    = "article"
	CategoryCollection = "collection"
	CategoryPage       = "page"
)

// KnownCategories returns the sync order used by the pipeline.
func KnownCategories() []string {
	return []string{CategoryItem, CategoryArticle, CategoryCollection, CategoryPage}
}

// ContentRecord is one normalized, searchable unit of tenant content. Rows for
// a (tenant, category) pair are replaced wholesale on every successful sync of
// that category.
type ContentRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_content_tenant_category_external,priority:1" json:"tenant_id"`
	Category   string    `gorm:"type:text;not null;uniqueIndex:ux_content_tenant_category_external,priority:2" json:"category"`
	ExternalID string    `gorm:"type:text;not null;uniqueIndex:ux_content_tenant_category_external,priority:3" json:"external_id"`

	Title   string `gorm:"type:text;not null;default:''" json:"title"`
	Body    string `gorm:"type:text;not null;default:''" json:"body"`
	Excerpt string `gorm:"type:text;not null;default:''" json:"excerpt"`
	URL     string `gorm:"type:text;not null;default:''" json:"url"`

	Vendor      string         `gorm:"type:text;not null;default:''" json:"vendor,omitempty"`
	ProductType string         `gorm:"type:text;not null;default:''" json:"product_type,omitempty"`
	Price       string         `gorm:"type:text;not null;default:''" json:"price,omitempty"`
	Tags        datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"tags"`

	// Derived lexical fields. SearchBlob is the lowercased concatenation of
	// the visible text; Keywords is a comma-joined, capped token list.
	SearchBlob string `gorm:"type:text;not null;default:''" json:"-"`
	Keywords   string `gorm:"type:text;not null;default:''" json:"keywords"`

	LastSyncedAt time.Time `gorm:"not null;index" json:"last_synced_at"`
	Active       bool      `gorm:"not null;default:true;index" json:"active"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ContentRecord) TableName() string { return "content_record" }
