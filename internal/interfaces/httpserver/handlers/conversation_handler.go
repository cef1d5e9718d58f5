package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"zapdesk/services/routing-api/internal/domain/assignment"
	"zapdesk/services/routing-api/internal/domain/conversation"
	"zapdesk/services/routing-api/internal/interfaces/httpserver/requests"
	"zapdesk/services/routing-api/internal/interfaces/httpserver/responses"
	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

// ConversationHandler exposes HTTP entrypoints for conversations and
// ownership operations.
type ConversationHandler struct {
	service *conversation.Service
	engine  *assignment.Engine
	log     zerolog.Logger
}

// NewConversationHandler constructs the handler.
func NewConversationHandler(service *conversation.Service, engine *assignment.Engine, log zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		engine:  engine,
		log:     log.With().Str("handler", "conversation").Logger(),
	}
}

// List handles GET /v1/conversations
// @Summary List conversations
// @Tags Conversations
// @Produce json
// @Param X-Tenant-Id header string true "Tenant id"
// @Param status query string false "Lifecycle status filter"
// @Param service_status query string false "Service status filter"
// @Param department_id query string false "Department filter"
// @Param agent_id query string false "Agent filter"
// @Param limit query int false "Page size"
// @Param after query int false "Cursor"
// @Success 200 {object} responses.ConversationListResponse
// @Router /v1/conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	filter := conversation.Filter{TenantID: tenantID(c)}
	if v := c.Query("status"); v != "" {
		status := conversation.Status(v)
		filter.Status = &status
	}
	if v := c.Query("service_status"); v != "" {
		status := conversation.ServiceStatus(v)
		filter.ServiceStatus = &status
	}
	if v := c.Query("department_id"); v != "" {
		filter.DepartmentID = &v
	}
	if v := c.Query("agent_id"); v != "" {
		filter.AgentID = &v
	}

	convs, err := h.service.List(c.Request.Context(), filter, paginationFromQuery(c))
	if err != nil {
		responses.HandleError(c, err, "failed to list conversations")
		return
	}
	payloads := make([]responses.ConversationPayload, 0, len(convs))
	for _, conv := range convs {
		payloads = append(payloads, responses.ConversationFromDomain(conv))
	}
	c.JSON(http.StatusOK, responses.ConversationListResponse{Data: payloads})
}

// Get handles GET /v1/conversations/:id
// @Summary Get a conversation
// @Tags Conversations
// @Produce json
// @Param X-Tenant-Id header string true "Tenant id"
// @Param id path string true "Conversation id"
// @Success 200 {object} responses.ConversationPayload
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/conversations/{id} [get]
func (h *ConversationHandler) Get(c *gin.Context) {
	conv, err := h.service.Get(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "conversation not found")
		return
	}
	c.JSON(http.StatusOK, responses.ConversationFromDomain(conv))
}

// Messages handles GET /v1/conversations/:id/messages
// @Summary List messages
// @Tags Conversations
// @Produce json
// @Param X-Tenant-Id header string true "Tenant id"
// @Param id path string true "Conversation id"
// @Success 200 {object} responses.MessageListResponse
// @Router /v1/conversations/{id}/messages [get]
func (h *ConversationHandler) Messages(c *gin.Context) {
	msgs, err := h.service.Messages(c.Request.Context(), tenantID(c), c.Param("id"), paginationFromQuery(c))
	if err != nil {
		responses.HandleError(c, err, "failed to list messages")
		return
	}
	payloads := make([]responses.MessagePayload, 0, len(msgs))
	for _, msg := range msgs {
		payloads = append(payloads, responses.MessageFromDomain(msg))
	}
	c.JSON(http.StatusOK, responses.MessageListResponse{Data: payloads})
}

// MarkRead handles POST /v1/conversations/:id/read
// @Summary Mark a conversation read
// @Tags Conversations
// @Param X-Tenant-Id header string true "Tenant id"
// @Param id path string true "Conversation id"
// @Success 204
// @Router /v1/conversations/{id}/read [post]
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), tenantID(c), c.Param("id")); err != nil {
		responses.HandleError(c, err, "failed to mark conversation read")
		return
	}
	c.Status(http.StatusNoContent)
}

// Send handles POST /v1/conversations/:id/messages
// @Summary Send a message
// @Tags Conversations
// @Accept json
// @Produce json
// @Param X-Tenant-Id header string true "Tenant id"
// @Param id path string true "Conversation id"
// @Param request body requests.SendMessageRequest true "Message"
// @Success 200 {object} responses.MessagePayload
// @Failure 400 {object} responses.ErrorResponse
// @Router /v1/conversations/{id}/messages [post]
func (h *ConversationHandler) Send(c *gin.Context) {
	var req requests.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "e05b9c37-2d8f-4a61-b4e0-71c6f3a8d952")
		return
	}
	msg, err := h.service.Send(c.Request.Context(), tenantID(c), c.Param("id"), conversation.SendInput{
		SessionName: req.SessionName,
		Body:        req.Body,
		MediaRef:    req.MediaRef,
	})
	if err != nil {
		responses.HandleError(c, err, "failed to send message")
		return
	}
	c.JSON(http.StatusOK, responses.MessageFromDomain(msg))
}

// Claim handles POST /v1/conversations/:id/claim
// @Summary Claim a conversation
// @Description Pulls a waiting conversation to the calling agent. Exactly one concurrent claimer wins.
// @Tags Conversations
// @Accept json
// @Produce json
// @Param X-Tenant-Id header string true "Tenant id"
// @Param id path string true "Conversation id"
// @Param request body requests.ClaimConversationRequest true "Claim request"
// @Success 200 {object} responses.ConversationPayload
// @Failure 409 {object} responses.ErrorResponse
// @Router /v1/conversations/{id}/claim [post]
func (h *ConversationHandler) Claim(c *gin.Context) {
	var req requests.ClaimConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "6b3f0d85-4e2a-4c97-81b6-f09d5c7e2a43")
		return
	}
	conv, err := h.engine.Claim(c.Request.Context(), tenantID(c), c.Param("id"), req.AgentID)
	if err != nil {
		responses.HandleError(c, err, "failed to claim conversation")
		return
	}
	c.JSON(http.StatusOK, responses.ConversationFromDomain(conv))
}

// Transfer handles POST /v1/conversations/:id/transfer
// @Summary Transfer a conversation
// @Tags Conversations
// @Accept json
// @Produce json
// @Param X-Tenant-Id header string true "Tenant id"
// @Param id path string true "Conversation id"
// @Param request body requests.TransferConversationRequest true "Transfer request"
// @Success 200 {object} responses.ConversationPayload
// @Failure 409 {object} responses.ErrorResponse
// @Router /v1/conversations/{id}/transfer [post]
func (h *ConversationHandler) Transfer(c *gin.Context) {
	var req requests.TransferConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "a71d4e29-8c5f-4b03-96d2-e60f8b3c5d17")
		return
	}
	conv, err := h.engine.Transfer(c.Request.Context(), tenantID(c), c.Param("id"), assignment.TransferInput{
		DepartmentID: req.DepartmentID,
		AgentID:      req.AgentID,
		ActorID:      req.ActorID,
		Notes:        req.Notes,
	})
	if err != nil {
		responses.HandleError(c, err, "failed to transfer conversation")
		return
	}
	c.JSON(http.StatusOK, responses.ConversationFromDomain(conv))
}

// Close handles POST /v1/conversations/:id/close
// @Summary Close a conversation
// @Tags Conversations
// @Accept json
// @Produce json
// @Param X-Tenant-Id header string true "Tenant id"
// @Param id path string true "Conversation id"
// @Param request body requests.CloseConversationRequest true "Close request"
// @Success 200 {object} responses.ConversationPayload
// @Router /v1/conversations/{id}/close [post]
func (h *ConversationHandler) Close(c *gin.Context) {
	var req requests.CloseConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "29d7f4a0-6e1b-4c58-93a7-b80e2d5f6c14")
		return
	}
	conv, err := h.engine.Close(c.Request.Context(), tenantID(c), c.Param("id"), req.ActorID)
	if err != nil {
		responses.HandleError(c, err, "failed to close conversation")
		return
	}
	c.JSON(http.StatusOK, responses.ConversationFromDomain(conv))
}

// Events handles GET /v1/conversations/:id/events
// @Summary Transfer history
// @Tags Conversations
// @Produce json
// @Param X-Tenant-Id header string true "Tenant id"
// @Param id path string true "Conversation id"
// @Success 200 {object} responses.AssignmentEventListResponse
// @Router /v1/conversations/{id}/events [get]
func (h *ConversationHandler) Events(c *gin.Context) {
	events, err := h.engine.History(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to list transfer history")
		return
	}
	payloads := make([]responses.AssignmentEventPayload, 0, len(events))
	for _, event := range events {
		payloads = append(payloads, responses.AssignmentEventFromDomain(event))
	}
	c.JSON(http.StatusOK, responses.AssignmentEventListResponse{Data: payloads})
}

func paginationFromQuery(c *gin.Context) *conversation.Pagination {
	pagination := &conversation.Pagination{Order: c.Query("order")}
	if v := c.Query("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			pagination.Limit = &limit
		}
	}
	if v := c.Query("after"); v != "" {
		if after, err := strconv.ParseUint(v, 10, 64); err == nil {
			cursor := uint(after)
			pagination.After = &cursor
		}
	}
	return pagination
}
