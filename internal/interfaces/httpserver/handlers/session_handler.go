package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"zapdesk/services/routing-api/internal/domain/session"
	"zapdesk/services/routing-api/internal/interfaces/httpserver/requests"
	"zapdesk/services/routing-api/internal/interfaces/httpserver/responses"
	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

// SessionHandler exposes HTTP entrypoints for session lifecycle management.
type SessionHandler struct {
	service *session.Service
	log     zerolog.Logger
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(service *session.Service, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		log:     log.With().Str("handler", "session").Logger(),
	}
}

// Provision handles POST /v1/sessions
// @Summary Provision a session
// @Description Creates a named WhatsApp session, or returns the existing one.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param X-Tenant-Id header string true "Tenant id"
// @Param request body requests.ProvisionSessionRequest true "Provision request"
// @Success 200 {object} responses.SessionPayload
// @Failure 400 {object} responses.ErrorResponse
// @Router /v1/sessions [post]
func (h *SessionHandler) Provision(c *gin.Context) {
	var req requests.ProvisionSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "7f2c8e15-9b4d-4a60-83f7-c51e0d9a6b28")
		return
	}

	sess, err := h.service.Provision(c.Request.Context(), tenantID(c), req.Name)
	if err != nil {
		responses.HandleError(c, err, "failed to provision session")
		return
	}
	c.JSON(http.StatusOK, responses.SessionFromDomain(sess))
}

// List handles GET /v1/sessions
// @Summary List sessions
// @Tags Sessions
// @Produce json
// @Param X-Tenant-Id header string true "Tenant id"
// @Success 200 {object} responses.SessionListResponse
// @Router /v1/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.service.List(c.Request.Context(), tenantID(c))
	if err != nil {
		responses.HandleError(c, err, "failed to list sessions")
		return
	}
	payloads := make([]responses.SessionPayload, 0, len(sessions))
	for _, sess := range sessions {
		payloads = append(payloads, responses.SessionFromDomain(sess))
	}
	c.JSON(http.StatusOK, responses.SessionListResponse{Data: payloads})
}

// Get handles GET /v1/sessions/:name
// @Summary Get a session
// @Tags Sessions
// @Produce json
// @Param X-Tenant-Id header string true "Tenant id"
// @Param name path string true "Session name"
// @Success 200 {object} responses.SessionPayload
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/sessions/{name} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.service.Get(c.Request.Context(), tenantID(c), c.Param("name"))
	if err != nil {
		responses.HandleError(c, err, "session not found")
		return
	}
	c.JSON(http.StatusOK, responses.SessionFromDomain(sess))
}

// Connect handles POST /v1/sessions/:name/connect
// @Summary Start pairing
// @Description Requests a QR challenge from the gateway and moves the session to AWAITING_SCAN.
// @Tags Sessions
// @Produce json
// @Param X-Tenant-Id header string true "Tenant id"
// @Param name path string true "Session name"
// @Success 200 {object} responses.SessionPayload
// @Failure 409 {object} responses.ErrorResponse
// @Router /v1/sessions/{name}/connect [post]
func (h *SessionHandler) Connect(c *gin.Context) {
	sess, err := h.service.RequestConnect(c.Request.Context(), tenantID(c), c.Param("name"))
	if err != nil {
		responses.HandleError(c, err, "failed to start pairing")
		return
	}
	c.JSON(http.StatusOK, responses.SessionFromDomain(sess))
}

// SetDeliveryMode handles PUT /v1/sessions/:name/delivery
// @Summary Switch delivery mode
// @Description Switches the session between push-webhook and persistent-socket delivery.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param X-Tenant-Id header string true "Tenant id"
// @Param name path string true "Session name"
// @Param request body requests.SetDeliveryModeRequest true "Delivery mode"
// @Success 200 {object} responses.SessionPayload
// @Failure 400 {object} responses.ErrorResponse
// @Router /v1/sessions/{name}/delivery [put]
func (h *SessionHandler) SetDeliveryMode(c *gin.Context) {
	var req requests.SetDeliveryModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "d83a5e07-1f6c-4b92-a470-29e8b5d0c364")
		return
	}

	var webhook *session.WebhookConfig
	if session.DeliveryMode(req.Mode) == session.DeliveryModeWebhook {
		webhook = &session.WebhookConfig{
			URL:         req.WebhookURL,
			Events:      req.Events,
			EncodeMedia: req.EncodeMedia,
		}
	}

	sess, err := h.service.SetDeliveryMode(c.Request.Context(), tenantID(c), c.Param("name"), session.DeliveryMode(req.Mode), webhook)
	if err != nil {
		responses.HandleError(c, err, "failed to switch delivery mode")
		return
	}
	c.JSON(http.StatusOK, responses.SessionFromDomain(sess))
}

// Logout handles POST /v1/sessions/:name/logout
// @Summary Log out a session
// @Tags Sessions
// @Produce json
// @Param X-Tenant-Id header string true "Tenant id"
// @Param name path string true "Session name"
// @Success 200 {object} responses.SessionPayload
// @Failure 409 {object} responses.ErrorResponse
// @Router /v1/sessions/{name}/logout [post]
func (h *SessionHandler) Logout(c *gin.Context) {
	sess, err := h.service.Logout(c.Request.Context(), tenantID(c), c.Param("name"))
	if err != nil {
		responses.HandleError(c, err, "failed to log out session")
		return
	}
	c.JSON(http.StatusOK, responses.SessionFromDomain(sess))
}

// Disable handles DELETE /v1/sessions/:name
// @Summary Disable a session
// @Tags Sessions
// @Param X-Tenant-Id header string true "Tenant id"
// @Param name path string true "Session name"
// @Success 204
// @Router /v1/sessions/{name} [delete]
func (h *SessionHandler) Disable(c *gin.Context) {
	if err := h.service.Disable(c.Request.Context(), tenantID(c), c.Param("name")); err != nil {
		responses.HandleError(c, err, "failed to disable session")
		return
	}
	c.Status(http.StatusNoContent)
}
