package entities

import "time"

// Conversation represents a persisted conversation thread.
type Conversation struct {
	ID              uint   `gorm:"primaryKey"`
	PublicID        string `gorm:"type:varchar(40);uniqueIndex;not null"`
	TenantID        string `gorm:"type:varchar(64);not null;uniqueIndex:idx_conversation_tenant_phone;index:idx_conversation_tenant_status"`
	Phone           string `gorm:"type:varchar(32);not null;uniqueIndex:idx_conversation_tenant_phone"`
	DisplayName     string `gorm:"type:varchar(128)"`
	LastMessageBody string `gorm:"type:text"`
	LastMessageAt   *time.Time
	UnreadCount     int       `gorm:"not null;default:0"`
	Status          string    `gorm:"type:varchar(20);not null;index:idx_conversation_tenant_status"`
	ServiceStatus   string    `gorm:"type:varchar(20);not null;index"`
	DepartmentID    *string   `gorm:"type:varchar(64);index"`
	AgentID         *string   `gorm:"type:varchar(64);index"`
	Syncing         bool      `gorm:"not null;default:false"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Message represents a persisted message. The (conversation, gateway id)
// pair is the idempotency key for gateway re-deliveries.
type Message struct {
	ID             uint   `gorm:"primaryKey"`
	ConversationID uint   `gorm:"not null;uniqueIndex:idx_message_conversation_gateway;index"`
	GatewayID      string `gorm:"type:varchar(128);not null;uniqueIndex:idx_message_conversation_gateway"`
	FromMe         bool   `gorm:"not null"`
	Body           string `gorm:"type:text"`
	Type           string `gorm:"type:varchar(16);not null"`
	MediaRef       string `gorm:"type:varchar(255)"`
	Ack            int    `gorm:"not null;default:0"`
	Timestamp      time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (Message) TableName() string {
	return "messages"
}

// AssignmentEvent represents one row of a conversation's transfer trail.
type AssignmentEvent struct {
	ID               uint    `gorm:"primaryKey"`
	ConversationID   uint    `gorm:"not null;index"`
	FromDepartmentID *string `gorm:"type:varchar(64)"`
	FromAgentID      *string `gorm:"type:varchar(64)"`
	ToDepartmentID   *string `gorm:"type:varchar(64)"`
	ToAgentID        *string `gorm:"type:varchar(64)"`
	ActorID          string  `gorm:"type:varchar(64);not null"`
	Notes            string  `gorm:"type:text"`
	CreatedAt        time.Time
}

func (AssignmentEvent) TableName() string {
	return "assignment_events"
}
