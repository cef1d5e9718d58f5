package requests

// ProvisionSessionRequest creates or returns a named session.
type ProvisionSessionRequest struct {
	Name string `json:"name" binding:"required"`
}

// SetDeliveryModeRequest switches the gateway delivery mode of a session.
type SetDeliveryModeRequest struct {
	Mode        string   `json:"mode" binding:"required,oneof=PUSH_WEBHOOK PERSISTENT_SOCKET"`
	WebhookURL  string   `json:"webhook_url"`
	Events      []string `json:"events"`
	EncodeMedia bool     `json:"encode_media"`
}
