package conversation

import "time"

// Status is the lifecycle status of a conversation. Conversations are never
// deleted, only archived.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusPending  Status = "PENDING"
	StatusResolved Status = "RESOLVED"
	StatusArchived Status = "ARCHIVED"
)

// ServiceStatus tracks who is serving the conversation.
type ServiceStatus string

const (
	// ServiceWaiting means no agent has claimed the conversation yet.
	ServiceWaiting ServiceStatus = "WAITING"
	// ServiceActive means an agent owns the conversation.
	ServiceActive ServiceStatus = "ACTIVE"
	// ServiceClosed means the conversation was resolved and released.
	ServiceClosed ServiceStatus = "CLOSED"
)

// MessageType classifies message content.
type MessageType string

const (
	MessageTypeText     MessageType = "TEXT"
	MessageTypeImage    MessageType = "IMAGE"
	MessageTypeVideo    MessageType = "VIDEO"
	MessageTypeAudio    MessageType = "AUDIO"
	MessageTypeDocument MessageType = "DOCUMENT"
)

// AckLevel is the delivery acknowledgment level of a message. Levels only
// ever increase for a given message.
type AckLevel int

const (
	AckNone      AckLevel = 0
	AckSent      AckLevel = 1
	AckDelivered AckLevel = 2
	AckRead      AckLevel = 3
)

func (a AckLevel) String() string {
	switch a {
	case AckSent:
		return "sent"
	case AckDelivered:
		return "delivered"
	case AckRead:
		return "read"
	default:
		return "none"
	}
}

// Conversation is the thread of messages with one external phone number
// within one tenant. Identity: tenant + phone.
type Conversation struct {
	ID       uint   `json:"-"`
	PublicID string `json:"id"`
	TenantID string `json:"tenant_id"`
	Phone    string `json:"phone"`

	DisplayName     string     `json:"display_name,omitempty"`
	LastMessageBody string     `json:"last_message_body,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	UnreadCount     int        `json:"unread_count"`

	Status        Status        `json:"status"`
	ServiceStatus ServiceStatus `json:"service_status"`

	// Ownership. AgentID, when set, must be a member of DepartmentID.
	// Mutated only through the assignment engine's CAS path.
	DepartmentID *string `json:"department_id,omitempty"`
	AgentID      *string `json:"agent_id,omitempty"`

	// Syncing is set while historical backfill from the gateway is running.
	Syncing bool `json:"syncing"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates an open, unowned conversation for a counterparty.
func NewConversation(publicID, tenantID, phone, displayName string) *Conversation {
	now := time.Now()
	return &Conversation{
		PublicID:      publicID,
		TenantID:      tenantID,
		Phone:         phone,
		DisplayName:   displayName,
		Status:        StatusOpen,
		ServiceStatus: ServiceWaiting,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Unowned reports whether no agent owns the conversation.
func (c *Conversation) Unowned() bool {
	return c.AgentID == nil
}

// Message is a single inbound or outbound message. Identity: conversation +
// gateway-assigned id, which doubles as the idempotency key.
type Message struct {
	ID             uint        `json:"-"`
	ConversationID uint        `json:"-"`
	GatewayID      string      `json:"gateway_id"`
	FromMe         bool        `json:"from_me"`
	Body           string      `json:"body"`
	Type           MessageType `json:"type"`
	MediaRef       string      `json:"media_ref,omitempty"`
	Ack            AckLevel    `json:"ack"`
	Timestamp      time.Time   `json:"timestamp"`
	CreatedAt      time.Time   `json:"created_at"`
}

// AssignmentEvent is one entry in a conversation's append-only transfer
// trail. A closure is recorded with nil target owner.
type AssignmentEvent struct {
	ID               uint      `json:"id"`
	ConversationID   uint      `json:"-"`
	FromDepartmentID *string   `json:"from_department_id,omitempty"`
	FromAgentID      *string   `json:"from_agent_id,omitempty"`
	ToDepartmentID   *string   `json:"to_department_id,omitempty"`
	ToAgentID        *string   `json:"to_agent_id,omitempty"`
	ActorID          string    `json:"actor_id"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Filter narrows conversation list queries.
type Filter struct {
	TenantID      string
	Status        *Status
	ServiceStatus *ServiceStatus
	DepartmentID  *string
	AgentID       *string
}

// Pagination is cursor-based over the numeric row id.
type Pagination struct {
	Limit *int
	After *uint
	Order string // "asc" (default) or "desc"
}
