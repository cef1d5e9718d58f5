package gateway

import (
	"context"
	"time"
)

// QRChallenge is the pairing challenge returned by the gateway.
type QRChallenge struct {
	Code      string
	ExpiresAt time.Time
}

// Client abstracts the external WhatsApp transport service. All calls carry
// a bounded timeout; transport failures surface as ErrorTypeExternal or
// ErrorTypeTimeout and are safe to retry.
type Client interface {
	// RequestQR asks the gateway to start pairing for a session.
	RequestQR(ctx context.Context, sessionName string) (*QRChallenge, error)

	// SetWebhook switches the session to push-webhook delivery.
	SetWebhook(ctx context.Context, sessionName, url string, events []string, encodeMedia bool) error

	// SetSocketMode switches the session to persistent-socket delivery.
	SetSocketMode(ctx context.Context, sessionName string) error

	// SendMessage sends an outbound message and returns the gateway-assigned
	// message id.
	SendMessage(ctx context.Context, sessionName, to, body, mediaRef string) (string, error)

	// Logout disconnects the WhatsApp account bound to the session.
	Logout(ctx context.Context, sessionName string) error
}
