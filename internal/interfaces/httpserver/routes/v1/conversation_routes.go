package v1

import (
	"github.com/gin-gonic/gin"

	"zapdesk/services/routing-api/internal/interfaces/httpserver/handlers"
)

func registerConversationRoutes(router gin.IRoutes, handler *handlers.ConversationHandler) {
	router.GET("/conversations", handler.List)
	router.GET("/conversations/:id", handler.Get)
	router.GET("/conversations/:id/messages", handler.Messages)
	router.POST("/conversations/:id/messages", handler.Send)
	router.POST("/conversations/:id/read", handler.MarkRead)
	router.POST("/conversations/:id/claim", handler.Claim)
	router.POST("/conversations/:id/transfer", handler.Transfer)
	router.POST("/conversations/:id/close", handler.Close)
	router.GET("/conversations/:id/events", handler.Events)
}
