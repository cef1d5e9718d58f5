package conversation

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"zapdesk/services/routing-api/internal/domain/gateway"
	"zapdesk/services/routing-api/internal/domain/session"
	"zapdesk/services/routing-api/internal/realtime"
	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

// Service covers the agent-facing read and send paths. Ownership mutations
// live in the assignment engine, not here.
type Service struct {
	store     Store
	sessions  session.Store
	gateway   gateway.Client
	publisher realtime.Publisher
	log       zerolog.Logger
}

func NewService(store Store, sessions session.Store, gw gateway.Client, publisher realtime.Publisher, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		sessions:  sessions,
		gateway:   gw,
		publisher: publisher,
		log:       log.With().Str("component", "conversation_service").Logger(),
	}
}

func (s *Service) List(ctx context.Context, filter Filter, pagination *Pagination) ([]*Conversation, error) {
	convs, err := s.store.List(ctx, filter, pagination)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list conversations")
	}
	return convs, nil
}

func (s *Service) Get(ctx context.Context, tenantID, publicID string) (*Conversation, error) {
	conv, err := s.store.FindByPublicID(ctx, tenantID, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation not found")
	}
	return conv, nil
}

func (s *Service) Messages(ctx context.Context, tenantID, publicID string, pagination *Pagination) ([]*Message, error) {
	conv, err := s.store.FindByPublicID(ctx, tenantID, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation not found")
	}
	msgs, err := s.store.ListMessages(ctx, conv.ID, pagination)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}
	return msgs, nil
}

// MarkRead zeroes the unread counter. Called when an agent opens the thread.
func (s *Service) MarkRead(ctx context.Context, tenantID, publicID string) error {
	conv, err := s.store.FindByPublicID(ctx, tenantID, publicID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation not found")
	}
	if err := s.store.ResetUnread(ctx, conv.ID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to reset unread counter")
	}
	return nil
}

// SendInput is an outbound message request from an agent.
type SendInput struct {
	SessionName string
	Body        string
	MediaRef    string
}

// Send delivers an outbound message through the gateway and records it
// locally. The gateway-assigned id keys the row, so the echo of this message
// on the inbound stream is absorbed as a duplicate.
func (s *Service) Send(ctx context.Context, tenantID, publicID string, in SendInput) (*Message, error) {
	if in.Body == "" && in.MediaRef == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"message body or media reference is required", nil, "d41a7f28-6c9e-4b50-a3d7-82f0c5e1b964")
	}

	conv, err := s.store.FindByPublicID(ctx, tenantID, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation not found")
	}
	if conv.ServiceStatus == ServiceClosed {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInvalidTransition,
			"conversation is closed", nil, "7a0c3e95-4d1f-4b82-9c60-e57b2a8d0f13")
	}

	sess, err := s.sessions.FindByName(ctx, tenantID, in.SessionName)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "session not found")
	}
	if sess.Status != session.StatusConnected {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInvalidTransition,
			"session is not connected", nil, "1e8d5b40-9f27-4c63-b0a8-d46c3e7f9a25")
	}

	gatewayID, err := s.gateway.SendMessage(ctx, sess.Name, conv.Phone, in.Body, in.MediaRef)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "gateway send failed")
	}

	msg := &Message{
		ConversationID: conv.ID,
		GatewayID:      gatewayID,
		FromMe:         true,
		Body:           in.Body,
		Type:           MessageTypeText,
		MediaRef:       in.MediaRef,
		Ack:            AckSent,
		Timestamp:      time.Now(),
	}
	if in.MediaRef != "" {
		msg.Type = MessageTypeDocument
	}
	if _, err := s.store.UpsertMessage(ctx, msg); err != nil {
		// The message left the gateway; the inbound echo will backfill it.
		s.log.Error().Err(err).
			Str("conversation_id", conv.PublicID).
			Str("gateway_id", gatewayID).
			Msg("failed to record outbound message")
	} else if err := s.store.BumpSnapshot(ctx, conv.ID, msg.Body, msg.Timestamp, false); err != nil {
		s.log.Error().Err(err).Str("conversation_id", conv.PublicID).Msg("failed to update conversation snapshot")
	}

	s.publisher.Publish(tenantID, realtime.Event{
		Kind:           realtime.EventNewMessage,
		ConversationID: conv.PublicID,
		Payload:        msg,
	})
	return msg, nil
}
