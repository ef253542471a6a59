package router

import (
	"github.com/labstack/echo/v4"

	"tradepost/internal/adapter/api/handler"
)

// SetupWebSocketRouter wires the realtime endpoint. Authentication happens
// inside the handler before the upgrade, so no middleware here.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws/chat", wsHandler.HandleWebSocket)
}
