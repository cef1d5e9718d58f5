package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"zapdesk/services/routing-api/internal/infrastructure/metrics"
)

// Hub is the in-process client registry: it tracks which live connections
// belong to which tenant and fans events out to them. It is created at
// process start and injected everywhere (never a package-level singleton),
// so a distributed pub/sub can replace it without touching call sites.
type Hub struct {
	mu      sync.RWMutex
	tenants map[string]map[string]*Client
	buffer  int
	log     zerolog.Logger
}

var _ Publisher = (*Hub)(nil)

// NewHub creates an empty registry. buffer is the per-client event queue
// depth; a client that falls behind loses events rather than stalling the
// publisher.
func NewHub(buffer int, log zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{
		tenants: make(map[string]map[string]*Client),
		buffer:  buffer,
		log:     log.With().Str("component", "fanout-hub").Logger(),
	}
}

// Register adds a client to its tenant's membership set and returns it
// wired to the hub's buffer size.
func (h *Hub) Register(tenantID, clientID string) *Client {
	client := newClient(clientID, tenantID, h.buffer)

	h.mu.Lock()
	clients, ok := h.tenants[tenantID]
	if !ok {
		clients = make(map[string]*Client)
		h.tenants[tenantID] = clients
	}
	// A reconnect with the same client id replaces the stale registration.
	old, replaced := clients[clientID]
	if replaced {
		old.closeSend()
	}
	clients[clientID] = client
	h.mu.Unlock()

	if !replaced {
		metrics.FanoutClients.Inc()
	}
	h.log.Debug().Str("tenant_id", tenantID).Str("client_id", clientID).Msg("client registered")
	return client
}

// Unregister removes the client and closes its event channel. Removal is
// keyed on the client itself, not its id: a stale handler tearing down after
// a reconnect must not evict the replacement registration.
func (h *Hub) Unregister(client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	removed := false
	clients, ok := h.tenants[client.TenantID]
	if ok {
		if current, exists := clients[client.ID]; exists && current == client {
			delete(clients, client.ID)
			removed = true
		}
		if len(clients) == 0 {
			delete(h.tenants, client.TenantID)
		}
	}
	h.mu.Unlock()

	client.closeSend()
	if removed {
		metrics.FanoutClients.Dec()
	}
	h.log.Debug().Str("tenant_id", client.TenantID).Str("client_id", client.ID).Msg("client unregistered")
}

// Publish delivers the event to every currently-registered client of the
// tenant. Events for the same conversation reach each client in publish
// order; a slow client drops the event instead of blocking the caller.
func (h *Hub) Publish(tenantID string, event Event) {
	h.mu.RLock()
	clients := h.tenants[tenantID]
	targets := make([]*Client, 0, len(clients))
	for _, c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if client.deliver(event) {
			metrics.FanoutEventsTotal.WithLabelValues("delivered").Inc()
		} else {
			metrics.FanoutEventsTotal.WithLabelValues("dropped").Inc()
			h.log.Warn().
				Str("tenant_id", tenantID).
				Str("client_id", client.ID).
				Str("kind", string(event.Kind)).
				Msg("client buffer full, event dropped")
		}
	}
}

// ClientCount returns the number of registered clients for a tenant.
func (h *Hub) ClientCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tenants[tenantID])
}
