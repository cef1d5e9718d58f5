package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"zapdesk/services/routing-api/internal/domain/gateway"
	"zapdesk/services/routing-api/internal/infrastructure/metrics"
	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

// WebhookDefaults fills the gaps of a PUSH_WEBHOOK switch when the request
// omits the callback URL or event list.
type WebhookDefaults struct {
	URL    string
	Events []string
}

// Service owns the session state machine. It is the only component allowed
// to mutate session rows.
type Service struct {
	store           Store
	gateway         gateway.Client
	qrExpiry        time.Duration
	webhookDefaults WebhookDefaults
	log             zerolog.Logger
}

// NewService creates the session lifecycle service.
func NewService(store Store, gw gateway.Client, qrExpiry time.Duration, webhookDefaults WebhookDefaults, log zerolog.Logger) *Service {
	return &Service{
		store:           store,
		gateway:         gw,
		qrExpiry:        qrExpiry,
		webhookDefaults: webhookDefaults,
		log:             log.With().Str("component", "session-service").Logger(),
	}
}

// Provision creates a session in STOPPED. Idempotent: if the name already
// exists for the tenant the existing session is returned unchanged.
func (s *Service) Provision(ctx context.Context, tenantID, name string) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "session name is required", nil, "4c1f9e72-8a3d-4b6e-9f20-5d7c1a8e3b41")
	}

	existing, err := s.store.FindByName(ctx, tenantID, name)
	if err == nil {
		return existing, nil
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to look up session")
	}

	sess := NewSession(tenantID, name)
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to provision session")
	}

	s.log.Info().Str("tenant_id", tenantID).Str("session", name).Msg("session provisioned")
	return sess, nil
}

// Get retrieves a session by tenant-scoped name.
func (s *Service) Get(ctx context.Context, tenantID, name string) (*Session, error) {
	sess, err := s.store.FindByName(ctx, tenantID, name)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "session not found")
	}
	return sess, nil
}

// List retrieves all enabled sessions for a tenant.
func (s *Service) List(ctx context.Context, tenantID string) ([]*Session, error) {
	sessions, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list sessions")
	}
	return sessions, nil
}

// RequestConnect moves a STOPPED or FAILED session into AWAITING_SCAN and
// stores the QR challenge obtained from the gateway.
func (s *Service) RequestConnect(ctx context.Context, tenantID, name string) (*Session, error) {
	sess, err := s.store.FindByName(ctx, tenantID, name)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "session not found")
	}

	if sess.Status == StatusConnected {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInvalidTransition, "session is already connected", nil, "8e2b5d10-f4c7-4a19-b36e-2d9f0c4a7e58")
	}
	if !CanTransition(sess.Status, StatusAwaitingScan) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInvalidTransition,
			fmt.Sprintf("cannot request connect from status %s", sess.Status), nil, "1a7d3f92-6b0e-4c85-a41d-9e6b2f8d0c37")
	}

	challenge, err := s.gateway.RequestQR(ctx, sess.Name)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "gateway QR request failed")
	}

	expiresAt := challenge.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(s.qrExpiry)
	}

	sess.Status = StatusAwaitingScan
	sess.QRCode = challenge.Code
	sess.QRExpiresAt = &expiresAt
	sess.Identity = nil

	if err := s.store.Update(ctx, sess); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to persist session")
	}

	metrics.SessionTransitionsTotal.WithLabelValues(string(StatusAwaitingScan)).Inc()
	s.log.Info().Str("tenant_id", tenantID).Str("session", name).Time("qr_expires_at", expiresAt).Msg("session awaiting scan")
	return sess, nil
}

// OnGatewayStatusChange applies a status callback from the gateway. The
// callback is idempotent: a repeated or out-of-order report for a status
// already applied is a no-op.
func (s *Service) OnGatewayStatusChange(ctx context.Context, name string, newStatus Status, identity *Identity) (*Session, error) {
	sess, err := s.store.FindByNameAny(ctx, name)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "session not found")
	}

	// Duplicate delivery of a status already applied: absorbed, not an error.
	if sess.Status == newStatus {
		s.log.Debug().Str("session", name).Str("status", string(newStatus)).Msg("duplicate status callback absorbed")
		return sess, nil
	}

	if !CanTransition(sess.Status, newStatus) {
		s.log.Warn().
			Str("session", name).
			Str("from", string(sess.Status)).
			Str("to", string(newStatus)).
			Msg("out-of-order status callback ignored")
		return sess, nil
	}

	if sess.Status == StatusAwaitingScan {
		sess.ClearQR()
	}
	if newStatus == StatusConnected {
		sess.Identity = identity
	}
	if newStatus == StatusStopped || newStatus == StatusFailed {
		sess.Identity = nil
	}
	sess.Status = newStatus

	if err := s.store.Update(ctx, sess); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to persist session status")
	}

	metrics.SessionTransitionsTotal.WithLabelValues(string(newStatus)).Inc()
	s.log.Info().Str("session", name).Str("status", string(newStatus)).Msg("session status applied")
	return sess, nil
}

// SetDeliveryMode atomically enables the requested delivery mode and
// disables the other, then tells the gateway to stop emitting on the
// previous channel. The two modes are never both active.
func (s *Service) SetDeliveryMode(ctx context.Context, tenantID, name string, mode DeliveryMode, webhook *WebhookConfig) (*Session, error) {
	sess, err := s.store.FindByName(ctx, tenantID, name)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "session not found")
	}

	switch mode {
	case DeliveryModeWebhook:
		if webhook == nil {
			webhook = &WebhookConfig{}
		}
		if strings.TrimSpace(webhook.URL) == "" {
			webhook.URL = s.webhookDefaults.URL
		}
		if len(webhook.Events) == 0 {
			webhook.Events = s.webhookDefaults.Events
		}
		if strings.TrimSpace(webhook.URL) == "" {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "webhook URL is required for PUSH_WEBHOOK mode", nil, "6f0a2c84-3e9b-4d17-8c52-b1e7d4f9a026")
		}
		if err := s.gateway.SetWebhook(ctx, sess.Name, webhook.URL, webhook.Events, webhook.EncodeMedia); err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "gateway webhook configuration failed")
		}
		sess.DeliveryMode = DeliveryModeWebhook
		sess.Webhook = webhook
	case DeliveryModeSocket:
		if err := s.gateway.SetSocketMode(ctx, sess.Name); err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "gateway socket-mode configuration failed")
		}
		sess.DeliveryMode = DeliveryModeSocket
		// Webhook settings for the inactive mode are cleared, never left
		// half-enabled.
		sess.Webhook = nil
	default:
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("unknown delivery mode %q", mode), nil, "0d5e8b31-7a2f-4c96-9e40-6c3b8f1d5a79")
	}

	if err := s.store.Update(ctx, sess); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to persist delivery mode")
	}

	s.log.Info().Str("tenant_id", tenantID).Str("session", name).Str("mode", string(mode)).Msg("delivery mode switched")
	return sess, nil
}

// Logout disconnects a CONNECTED session and returns it to STOPPED.
func (s *Service) Logout(ctx context.Context, tenantID, name string) (*Session, error) {
	sess, err := s.store.FindByName(ctx, tenantID, name)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "session not found")
	}
	if sess.Status != StatusConnected {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInvalidTransition, "session is not connected", nil, "3b9c6e47-0d2a-48f1-b58c-7e4a1d9f2c60")
	}

	if err := s.gateway.Logout(ctx, sess.Name); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "gateway logout failed")
	}

	sess.Status = StatusStopped
	sess.Identity = nil
	sess.ClearQR()
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to persist session")
	}
	metrics.SessionTransitionsTotal.WithLabelValues(string(StatusStopped)).Inc()
	return sess, nil
}

// Disable soft-disables a session. Message history keeps referencing it.
func (s *Service) Disable(ctx context.Context, tenantID, name string) error {
	if err := s.store.Disable(ctx, tenantID, name); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to disable session")
	}
	return nil
}
