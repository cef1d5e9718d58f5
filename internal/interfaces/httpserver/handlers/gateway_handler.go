package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"zapdesk/services/routing-api/internal/domain/inbound"
	"zapdesk/services/routing-api/internal/domain/session"
	"zapdesk/services/routing-api/internal/interfaces/httpserver/responses"
	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

// gatewayEvent is the callback envelope posted by the WhatsApp gateway.
type gatewayEvent struct {
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Payload json.RawMessage `json:"payload"`
}

type statusPayload struct {
	Status      string `json:"status"`
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
}

// GatewayHandler receives gateway callbacks: messages, delivery receipts and
// session status changes. A 2xx acknowledges the event; anything else makes
// the gateway retry it.
type GatewayHandler struct {
	processor *inbound.Processor
	sessions  *session.Service
	log       zerolog.Logger
}

// NewGatewayHandler constructs the handler.
func NewGatewayHandler(processor *inbound.Processor, sessions *session.Service, log zerolog.Logger) *GatewayHandler {
	return &GatewayHandler{
		processor: processor,
		sessions:  sessions,
		log:       log.With().Str("handler", "gateway").Logger(),
	}
}

// HandleEvent handles POST /gateway/events
// @Summary Gateway callback intake
// @Description Receives message, ack and session-status events from the WhatsApp gateway.
// @Tags Gateway
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} responses.ErrorResponse
// @Router /gateway/events [post]
func (h *GatewayHandler) HandleEvent(c *gin.Context) {
	var event gatewayEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		// Unparseable bodies are acknowledged; retrying cannot fix them.
		h.log.Warn().Err(err).Msg("dropping unparseable gateway callback")
		c.JSON(http.StatusOK, gin.H{"status": "dropped"})
		return
	}

	ctx := c.Request.Context()
	switch event.Event {
	case "message":
		var payload inbound.MessagePayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			h.log.Warn().Err(err).Str("session", event.Session).Msg("dropping malformed message payload")
			c.JSON(http.StatusOK, gin.H{"status": "dropped"})
			return
		}
		if err := h.processor.HandleMessage(ctx, event.Session, payload); err != nil {
			// The gateway only sees the retryable status; the detail lands
			// in the service log.
			h.logProcessError(err)
			responses.HandleError(c, err, "failed to process message event")
			return
		}
	case "message.ack":
		var payload inbound.AckPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			h.log.Warn().Err(err).Str("session", event.Session).Msg("dropping malformed ack payload")
			c.JSON(http.StatusOK, gin.H{"status": "dropped"})
			return
		}
		if err := h.processor.HandleAck(ctx, event.Session, payload); err != nil {
			h.logProcessError(err)
			responses.HandleError(c, err, "failed to process ack event")
			return
		}
	case "session.status":
		var payload statusPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			h.log.Warn().Err(err).Str("session", event.Session).Msg("dropping malformed status payload")
			c.JSON(http.StatusOK, gin.H{"status": "dropped"})
			return
		}
		var identity *session.Identity
		if payload.ExternalID != "" {
			identity = &session.Identity{ExternalID: payload.ExternalID, DisplayName: payload.DisplayName}
		}
		if _, err := h.sessions.OnGatewayStatusChange(ctx, event.Session, session.Status(payload.Status), identity); err != nil {
			if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
				h.log.Warn().Str("session", event.Session).Msg("dropping status callback for unknown session")
				c.JSON(http.StatusOK, gin.H{"status": "dropped"})
				return
			}
			h.logProcessError(err)
			responses.HandleError(c, err, "failed to process status event")
			return
		}
	default:
		h.log.Debug().Str("event", event.Event).Str("session", event.Session).Msg("ignoring unknown gateway event")
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *GatewayHandler) logProcessError(err error) {
	if platformErr := platformerrors.GetPlatformError(err); platformErr != nil {
		platformerrors.LogError(h.log, platformErr)
		return
	}
	h.log.Error().Err(err).Msg("gateway event processing failed")
}
