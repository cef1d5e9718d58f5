package realtime

// EventKind identifies the client-facing event types.
type EventKind string

const (
	EventNewMessage       EventKind = "chat:new-message"
	EventOwnershipChanged EventKind = "chat:ownership-changed"
	EventStatusChanged    EventKind = "chat:status-changed"
)

// Event is one entry on a tenant's realtime stream. Delivery is
// best-effort: disconnected clients miss events and reconcile by reloading
// conversations on reconnect.
type Event struct {
	Kind           EventKind `json:"kind"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Payload        any       `json:"payload,omitempty"`
}

// Publisher pushes events to every connected client of a tenant.
type Publisher interface {
	Publish(tenantID string, event Event)
}
