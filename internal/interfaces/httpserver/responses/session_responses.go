package responses

import (
	"time"

	"zapdesk/services/routing-api/internal/domain/session"
)

// SessionPayload is returned to clients.
type SessionPayload struct {
	TenantID     string     `json:"tenant_id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	DeliveryMode string     `json:"delivery_mode"`
	WebhookURL   string     `json:"webhook_url,omitempty"`
	QRCode       string     `json:"qr_code,omitempty"`
	QRExpiresAt  *time.Time `json:"qr_expires_at,omitempty"`
	ExternalID   string     `json:"external_id,omitempty"`
	DisplayName  string     `json:"display_name,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SessionFromDomain maps the domain session to DTO.
func SessionFromDomain(s *session.Session) SessionPayload {
	payload := SessionPayload{
		TenantID:     s.TenantID,
		Name:         s.Name,
		Status:       string(s.Status),
		DeliveryMode: string(s.DeliveryMode),
		QRCode:       s.QRCode,
		QRExpiresAt:  s.QRExpiresAt,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if s.Webhook != nil {
		payload.WebhookURL = s.Webhook.URL
	}
	if s.Identity != nil {
		payload.ExternalID = s.Identity.ExternalID
		payload.DisplayName = s.Identity.DisplayName
	}
	return payload
}

// SessionListResponse wraps session collections.
type SessionListResponse struct {
	Data []SessionPayload `json:"data"`
}
