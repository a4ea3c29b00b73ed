package websocket

import (
	"github.com/gin-gonic/gin"

	"github.com/kandev/taskboard/internal/auth"
	"github.com/kandev/taskboard/internal/common/logger"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

// Gateway represents the WebSocket gateway
type Gateway struct {
	Hub        *Hub
	Dispatcher *ws.Dispatcher
	Handler    *Handler
	logger     *logger.Logger
}

// NewGateway creates a new WebSocket gateway with all components initialized
func NewGateway(allowedOrigins []string, log *logger.Logger) *Gateway {
	dispatcher := ws.NewDispatcher()
	hub := NewHub(dispatcher, log)
	handler := NewHandler(hub, allowedOrigins, log)

	RegisterHealthHandler(dispatcher)

	return &Gateway{
		Hub:        hub,
		Dispatcher: dispatcher,
		Handler:    handler,
		logger:     log,
	}
}

// SetupRoutes adds the authenticated WebSocket route to the Gin engine
func (g *Gateway) SetupRoutes(router *gin.Engine, authManager *auth.Manager) {
	router.GET("/ws", auth.RequireSession(authManager), g.Handler.HandleConnection)
}
