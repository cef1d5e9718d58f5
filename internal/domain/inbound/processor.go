package inbound

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"zapdesk/services/routing-api/internal/domain/assignment"
	"zapdesk/services/routing-api/internal/domain/conversation"
	"zapdesk/services/routing-api/internal/domain/session"
	"zapdesk/services/routing-api/internal/infrastructure/metrics"
	"zapdesk/services/routing-api/internal/realtime"
	"zapdesk/services/routing-api/internal/utils/idgen"
	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

// MessagePayload is the normalized inbound message event from the gateway.
// Phone is the counterparty number regardless of direction.
type MessagePayload struct {
	GatewayID string    `json:"gateway_id"`
	Phone     string    `json:"phone"`
	PushName  string    `json:"push_name"`
	FromMe    bool      `json:"from_me"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	MediaRef  string    `json:"media_ref"`
	Timestamp time.Time `json:"timestamp"`
}

// AckPayload is a delivery-receipt event from the gateway.
type AckPayload struct {
	GatewayID string `json:"gateway_id"`
	Phone     string `json:"phone"`
	Ack       int    `json:"ack"`
}

// Processor is the single intake point for gateway events, shared by the
// webhook handler and the socket consumer. Re-delivered events are absorbed
// by the (conversation, gateway id) message identity, so the gateway may
// retry freely.
type Processor struct {
	sessions      session.Store
	conversations conversation.Store
	engine        *assignment.Engine
	publisher     realtime.Publisher
	log           zerolog.Logger
}

func NewProcessor(sessions session.Store, conversations conversation.Store, engine *assignment.Engine, publisher realtime.Publisher, log zerolog.Logger) *Processor {
	return &Processor{
		sessions:      sessions,
		conversations: conversations,
		engine:        engine,
		publisher:     publisher,
		log:           log.With().Str("component", "inbound_processor").Logger(),
	}
}

// HandleMessage processes one message event. A malformed payload is logged
// and dropped without error so the gateway does not retry garbage; a storage
// failure is returned so it does.
func (p *Processor) HandleMessage(ctx context.Context, sessionName string, payload MessagePayload) error {
	if payload.GatewayID == "" || payload.Phone == "" {
		metrics.InboundMessagesTotal.WithLabelValues("malformed").Inc()
		p.log.Warn().
			Str("session", sessionName).
			Str("gateway_id", payload.GatewayID).
			Msg("dropping malformed inbound message")
		return nil
	}

	sess, err := p.sessions.FindByNameAny(ctx, sessionName)
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			metrics.InboundMessagesTotal.WithLabelValues("malformed").Inc()
			p.log.Warn().Str("session", sessionName).Msg("dropping message for unknown session")
			return nil
		}
		metrics.InboundMessagesTotal.WithLabelValues("failed").Inc()
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to resolve session")
	}

	conv, isNew, err := p.resolveConversation(ctx, sess.TenantID, payload)
	if err != nil {
		metrics.InboundMessagesTotal.WithLabelValues("failed").Inc()
		return err
	}

	msg := &conversation.Message{
		ConversationID: conv.ID,
		GatewayID:      payload.GatewayID,
		FromMe:         payload.FromMe,
		Body:           payload.Body,
		Type:           normalizeType(payload.Type),
		MediaRef:       payload.MediaRef,
		Timestamp:      messageTime(payload.Timestamp),
	}
	if payload.FromMe {
		msg.Ack = conversation.AckSent
	}

	created, err := p.conversations.UpsertMessage(ctx, msg)
	if err != nil {
		metrics.InboundMessagesTotal.WithLabelValues("failed").Inc()
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to store message")
	}
	if !created {
		metrics.InboundMessagesTotal.WithLabelValues("duplicate").Inc()
		p.log.Debug().
			Str("gateway_id", payload.GatewayID).
			Str("conversation_id", conv.PublicID).
			Msg("duplicate gateway message absorbed")
		return nil
	}

	// A resolved thread comes back when the customer writes again.
	if !isNew && (conv.Status == conversation.StatusResolved || conv.Status == conversation.StatusArchived) {
		if err := p.conversations.Reopen(ctx, conv.ID); err != nil {
			p.log.Error().Err(err).Str("conversation_id", conv.PublicID).Msg("failed to reopen conversation")
		}
	}

	incrementUnread := !payload.FromMe
	if err := p.conversations.BumpSnapshot(ctx, conv.ID, msg.Body, msg.Timestamp, incrementUnread); err != nil {
		p.log.Error().Err(err).Str("conversation_id", conv.PublicID).Msg("failed to update conversation snapshot")
	}

	metrics.InboundMessagesTotal.WithLabelValues("stored").Inc()
	p.publisher.Publish(sess.TenantID, realtime.Event{
		Kind:           realtime.EventNewMessage,
		ConversationID: conv.PublicID,
		Payload:        msg,
	})
	return nil
}

// HandleAck raises a message's acknowledgment level. Unknown messages and
// stale levels are ignored.
func (p *Processor) HandleAck(ctx context.Context, sessionName string, payload AckPayload) error {
	if payload.GatewayID == "" {
		return nil
	}
	sess, err := p.sessions.FindByNameAny(ctx, sessionName)
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return nil
		}
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to resolve session")
	}
	conv, err := p.conversations.FindByPhone(ctx, sess.TenantID, payload.Phone)
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return nil
		}
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to resolve conversation")
	}
	ack := conversation.AckLevel(payload.Ack)
	if ack < conversation.AckSent || ack > conversation.AckRead {
		return nil
	}
	if err := p.conversations.UpdateAck(ctx, conv.ID, payload.GatewayID, ack); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update ack level")
	}
	return nil
}

// resolveConversation finds or creates the conversation for the payload's
// counterparty, routing it on first contact. A conversation that was stored
// unrouted (no default department at the time) is re-routed on the next
// inbound message, so configuring the department later heals the queue.
func (p *Processor) resolveConversation(ctx context.Context, tenantID string, payload MessagePayload) (*conversation.Conversation, bool, error) {
	conv, err := p.conversations.FindByPhone(ctx, tenantID, payload.Phone)
	if err == nil {
		if conv.DepartmentID == nil && conv.AgentID == nil && conv.ServiceStatus == conversation.ServiceWaiting {
			if routeErr := p.engine.RouteNewConversation(ctx, conv); routeErr != nil {
				p.log.Error().Err(routeErr).Str("conversation_id", conv.PublicID).Msg("failed to route conversation")
			}
		}
		return conv, false, nil
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		return nil, false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to look up conversation")
	}

	publicID, err := idgen.GenerateSecureID("conv", 24)
	if err != nil {
		return nil, false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate conversation id")
	}
	conv = conversation.NewConversation(publicID, tenantID, payload.Phone, payload.PushName)
	if err := p.conversations.Create(ctx, conv); err != nil {
		// A concurrent event for the same phone may have created it first.
		existing, findErr := p.conversations.FindByPhone(ctx, tenantID, payload.Phone)
		if findErr == nil {
			return existing, false, nil
		}
		return nil, false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create conversation")
	}

	if err := p.engine.RouteNewConversation(ctx, conv); err != nil {
		p.log.Error().Err(err).Str("conversation_id", conv.PublicID).Msg("failed to route new conversation")
	}
	return conv, true, nil
}

func normalizeType(raw string) conversation.MessageType {
	switch strings.ToUpper(raw) {
	case "IMAGE":
		return conversation.MessageTypeImage
	case "VIDEO":
		return conversation.MessageTypeVideo
	case "AUDIO", "PTT":
		return conversation.MessageTypeAudio
	case "DOCUMENT":
		return conversation.MessageTypeDocument
	default:
		return conversation.MessageTypeText
	}
}

func messageTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}
