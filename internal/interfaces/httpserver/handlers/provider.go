package handlers

import (
	"github.com/rs/zerolog"

	"zapdesk/services/routing-api/internal/domain/assignment"
	"zapdesk/services/routing-api/internal/domain/conversation"
	"zapdesk/services/routing-api/internal/domain/inbound"
	"zapdesk/services/routing-api/internal/domain/session"
	"zapdesk/services/routing-api/internal/realtime"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Session      *SessionHandler
	Conversation *ConversationHandler
	Gateway      *GatewayHandler
	Realtime     *RealtimeHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(
	sessionService *session.Service,
	conversationService *conversation.Service,
	engine *assignment.Engine,
	processor *inbound.Processor,
	hub *realtime.Hub,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Session:      NewSessionHandler(sessionService, log),
		Conversation: NewConversationHandler(conversationService, engine, log),
		Gateway:      NewGatewayHandler(processor, sessionService, log),
		Realtime:     NewRealtimeHandler(hub, log),
	}
}
