package v1

import (
	"github.com/gin-gonic/gin"

	"zapdesk/services/routing-api/internal/interfaces/httpserver/handlers"
)

func registerRealtimeRoutes(router gin.IRoutes, handler *handlers.RealtimeHandler) {
	router.GET("/realtime/ws", handler.Subscribe)
}
