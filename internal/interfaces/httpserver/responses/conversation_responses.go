package responses

import (
	"time"

	"zapdesk/services/routing-api/internal/domain/conversation"
)

// ConversationPayload is returned to clients.
type ConversationPayload struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	Phone           string     `json:"phone"`
	DisplayName     string     `json:"display_name,omitempty"`
	LastMessageBody string     `json:"last_message_body,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	UnreadCount     int        `json:"unread_count"`
	Status          string     `json:"status"`
	ServiceStatus   string     `json:"service_status"`
	DepartmentID    *string    `json:"department_id,omitempty"`
	AgentID         *string    `json:"agent_id,omitempty"`
	Syncing         bool       `json:"syncing"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ConversationFromDomain maps the domain conversation to DTO.
func ConversationFromDomain(c *conversation.Conversation) ConversationPayload {
	return ConversationPayload{
		ID:              c.PublicID,
		TenantID:        c.TenantID,
		Phone:           c.Phone,
		DisplayName:     c.DisplayName,
		LastMessageBody: c.LastMessageBody,
		LastMessageAt:   c.LastMessageAt,
		UnreadCount:     c.UnreadCount,
		Status:          string(c.Status),
		ServiceStatus:   string(c.ServiceStatus),
		DepartmentID:    c.DepartmentID,
		AgentID:         c.AgentID,
		Syncing:         c.Syncing,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// ConversationListResponse wraps conversation collections.
type ConversationListResponse struct {
	Data []ConversationPayload `json:"data"`
}

// MessagePayload is returned to clients.
type MessagePayload struct {
	GatewayID string    `json:"gateway_id"`
	FromMe    bool      `json:"from_me"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	MediaRef  string    `json:"media_ref,omitempty"`
	Ack       string    `json:"ack"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageFromDomain maps the domain message to DTO.
func MessageFromDomain(m *conversation.Message) MessagePayload {
	return MessagePayload{
		GatewayID: m.GatewayID,
		FromMe:    m.FromMe,
		Body:      m.Body,
		Type:      string(m.Type),
		MediaRef:  m.MediaRef,
		Ack:       m.Ack.String(),
		Timestamp: m.Timestamp,
	}
}

// MessageListResponse wraps message collections.
type MessageListResponse struct {
	Data []MessagePayload `json:"data"`
}

// AssignmentEventPayload is one transfer trail entry.
type AssignmentEventPayload struct {
	FromDepartmentID *string   `json:"from_department_id,omitempty"`
	FromAgentID      *string   `json:"from_agent_id,omitempty"`
	ToDepartmentID   *string   `json:"to_department_id,omitempty"`
	ToAgentID        *string   `json:"to_agent_id,omitempty"`
	ActorID          string    `json:"actor_id"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AssignmentEventFromDomain maps the domain event to DTO.
func AssignmentEventFromDomain(e *conversation.AssignmentEvent) AssignmentEventPayload {
	return AssignmentEventPayload{
		FromDepartmentID: e.FromDepartmentID,
		FromAgentID:      e.FromAgentID,
		ToDepartmentID:   e.ToDepartmentID,
		ToAgentID:        e.ToAgentID,
		ActorID:          e.ActorID,
		Notes:            e.Notes,
		CreatedAt:        e.CreatedAt,
	}
}

// AssignmentEventListResponse wraps the transfer trail.
type AssignmentEventListResponse struct {
	Data []AssignmentEventPayload `json:"data"`
}
