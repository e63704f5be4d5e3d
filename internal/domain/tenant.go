package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is one onboarded store. Content and conversations are isolated per
// tenant; rows are created on first contact and never deleted here.
type Tenant struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StoreDomain string    `gorm:"type:text;not null;uniqueIndex" json:"store_domain"`
	Name        string    `gorm:"type:text;not null;default:''" json:"name"`
	Locale      string    `gorm:"type:text;not null;default:'en'" json:"locale"`
	Currency    string    `gorm:"type:text;not null;default:'USD'" json:"currency"`
	AccessToken string    `gorm:"type:text;not null;default:''" json:"-"`
	Active      bool      `gorm:"not null;default:true" json:"active"`

	// ErrorReply, when set, replaces the default user-facing message shown
	// for unrecoverable turn failures.
	ErrorReply string `gorm:"type:text;not null;default:''" json:"error_reply,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Tenant) TableName() string { return "tenant" }
