package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"zapdesk/services/routing-api/internal/interfaces/httpserver/responses"
	"zapdesk/services/routing-api/internal/realtime"
	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

// RealtimeHandler upgrades agent connections onto the fanout hub.
type RealtimeHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewRealtimeHandler constructs the handler.
func NewRealtimeHandler(hub *realtime.Hub, log zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin enforcement belongs to the fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.With().Str("handler", "realtime").Logger(),
	}
}

// Subscribe handles GET /v1/realtime/ws
// @Summary Subscribe to realtime events
// @Description Upgrades to a websocket carrying the tenant's conversation events.
// @Tags Realtime
// @Param X-Tenant-Id header string true "Tenant id"
// @Param client_id query string true "Stable client id, one per agent device"
// @Success 101
// @Failure 400 {object} responses.ErrorResponse
// @Router /v1/realtime/ws [get]
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	tenant := tenantID(c)
	clientID := c.Query("client_id")
	if tenant == "" || clientID == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "tenant and client_id are required", "f72e0a94-5c8b-4d36-81f0-29a6d4e7b053")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("client_id", clientID).Msg("websocket upgrade failed")
		return
	}

	client := h.hub.Register(tenant, clientID)
	defer h.hub.Unregister(client)

	h.log.Info().Str("tenant_id", tenant).Str("client_id", clientID).Msg("realtime client connected")
	client.ServeConn(conn, h.log)
	h.log.Info().Str("tenant_id", tenant).Str("client_id", clientID).Msg("realtime client disconnected")
}
