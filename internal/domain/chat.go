package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// SessionTTL is the sliding expiry window applied at session creation.
const SessionTTL = 24 * time.Hour

// ChatSession is one widget conversation. The session id is client-supplied
// and unique per tenant; the row is created lazily on the first message for
// an id that tenant has not used before. The same id presented under another
// tenant resolves to that tenant's own session, never to this one.
type ChatSession struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:ux_chat_session_tenant_session,priority:1" json:"tenant_id"`
	SessionID   string         `gorm:"type:text;not null;uniqueIndex:ux_chat_session_tenant_session,priority:2" json:"session_id"`
	Fingerprint string         `gorm:"type:text;not null;default:''" json:"fingerprint,omitempty"`
	Cart        datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"cart"`
	Locale      string         `gorm:"type:text;not null;default:'en'" json:"locale"`
	Active      bool           `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

func (ChatSession) TableName() string { return "chat_session" }

// ChatMessage is one turn within a session. Append-only, ordered by CreatedAt.
type ChatMessage struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID      `gorm:"type:uuid;not null;index:idx_chat_message_session,priority:1" json:"session_id"`
	Role      string         `gorm:"type:text;not null" json:"role"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;index:idx_chat_message_session,priority:2" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }
