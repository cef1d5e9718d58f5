package v1

import (
	"github.com/gin-gonic/gin"

	"zapdesk/services/routing-api/internal/interfaces/httpserver/handlers"
)

func registerSessionRoutes(router gin.IRoutes, handler *handlers.SessionHandler) {
	router.POST("/sessions", handler.Provision)
	router.GET("/sessions", handler.List)
	router.GET("/sessions/:name", handler.Get)
	router.POST("/sessions/:name/connect", handler.Connect)
	router.PUT("/sessions/:name/delivery", handler.SetDeliveryMode)
	router.POST("/sessions/:name/logout", handler.Logout)
	router.DELETE("/sessions/:name", handler.Disable)
}
