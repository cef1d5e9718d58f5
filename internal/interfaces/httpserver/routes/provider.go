package routes

import (
	"github.com/gin-gonic/gin"

	"zapdesk/services/routing-api/internal/interfaces/httpserver/handlers"
	v1 "zapdesk/services/routing-api/internal/interfaces/httpserver/routes/v1"
)

// Provider coordinates all route registrations.
type Provider struct {
	V1       *v1.Routes
	handlers *handlers.Provider
}

// NewProvider constructs the route provider.
func NewProvider(handlerProvider *handlers.Provider) *Provider {
	return &Provider{
		V1:       v1.NewRoutes(handlerProvider),
		handlers: handlerProvider,
	}
}

// Register attaches all available routes to the gin engine.
func (p *Provider) Register(engine *gin.Engine) {
	p.V1.Register(engine)

	// Gateway callbacks live outside /v1: their contract follows the
	// gateway, not the agent API.
	engine.POST("/gateway/events", p.handlers.Gateway.HandleEvent)
}
