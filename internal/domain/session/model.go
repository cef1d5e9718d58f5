package session

import "time"

// Status represents the lifecycle state of a WhatsApp connection.
type Status string

const (
	// StatusStopped indicates the session exists but is not connecting.
	StatusStopped Status = "STOPPED"
	// StatusAwaitingScan indicates a QR challenge is pending.
	StatusAwaitingScan Status = "AWAITING_SCAN"
	// StatusConnected indicates the WhatsApp account is online.
	StatusConnected Status = "CONNECTED"
	// StatusFailed indicates the gateway reported a terminal failure.
	StatusFailed Status = "FAILED"
)

// DeliveryMode selects how the gateway delivers inbound events.
// The two modes are mutually exclusive; a session is always in exactly one.
type DeliveryMode string

const (
	DeliveryModeWebhook DeliveryMode = "PUSH_WEBHOOK"
	DeliveryModeSocket  DeliveryMode = "PERSISTENT_SOCKET"
)

// validTransitions encodes the session state machine. CONNECTED is reachable
// only through AWAITING_SCAN.
var validTransitions = map[Status][]Status{
	StatusStopped:      {StatusAwaitingScan},
	StatusAwaitingScan: {StatusConnected, StatusStopped, StatusFailed},
	StatusConnected:    {StatusFailed, StatusStopped},
	StatusFailed:       {StatusAwaitingScan, StatusStopped},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// WebhookConfig holds the push-webhook delivery settings.
type WebhookConfig struct {
	URL         string   `json:"url"`
	Events      []string `json:"events"`
	EncodeMedia bool     `json:"encode_media"`
}

// Identity describes the WhatsApp account bound to a connected session.
type Identity struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
}

// Session is a single named WhatsApp account connection managed through the
// gateway. Names are unique per tenant.
type Session struct {
	ID           uint           `json:"-"`
	TenantID     string         `json:"tenant_id"`
	Name         string         `json:"name"`
	Status       Status         `json:"status"`
	DeliveryMode DeliveryMode   `json:"delivery_mode"`
	Webhook      *WebhookConfig `json:"webhook,omitempty"`

	// QR fields are populated only while AWAITING_SCAN.
	QRCode      string     `json:"qr_code,omitempty"`
	QRExpiresAt *time.Time `json:"qr_expires_at,omitempty"`

	// Identity fields are populated once CONNECTED.
	Identity *Identity `json:"identity,omitempty"`

	// Enabled is cleared instead of deleting rows that messages reference.
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a provisioned session in STOPPED with socket delivery.
func NewSession(tenantID, name string) *Session {
	now := time.Now()
	return &Session{
		TenantID:     tenantID,
		Name:         name,
		Status:       StatusStopped,
		DeliveryMode: DeliveryModeSocket,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ClearQR drops the QR challenge fields. Called whenever the session leaves
// AWAITING_SCAN.
func (s *Session) ClearQR() {
	s.QRCode = ""
	s.QRExpiresAt = nil
}

// QRExpired reports whether the session sits in AWAITING_SCAN past its QR
// deadline.
func (s *Session) QRExpired(now time.Time) bool {
	return s.Status == StatusAwaitingScan && s.QRExpiresAt != nil && now.After(*s.QRExpiresAt)
}
