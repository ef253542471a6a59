package router

import (
	"github.com/labstack/echo/v4"

	"tradepost/internal/adapter/api/handler"
	"tradepost/internal/adapter/api/middleware"
)

// SetupChatRouter wires all chat REST routes (excluding WebSocket).
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	roomGroup := e.Group("/v1/rooms")
	roomGroup.Use(authMiddleware.Authenticate)

	roomGroup.POST("", chatHandler.CreateRoom)            // POST /v1/rooms - resolve or create room for a listing
	roomGroup.GET("", chatHandler.ListRooms)              // GET /v1/rooms - caller's rooms
	roomGroup.GET("/:id", chatHandler.GetRoom)            // GET /v1/rooms/:id
	roomGroup.GET("/:id/messages", chatHandler.GetMessages)   // GET /v1/rooms/:id/messages
	roomGroup.POST("/:id/messages", chatHandler.SendMessage)  // POST /v1/rooms/:id/messages
	roomGroup.PUT("/:id/read", chatHandler.MarkRoomAsRead)    // PUT /v1/rooms/:id/read
	roomGroup.POST("/:id/block", chatHandler.BlockRoom)       // POST /v1/rooms/:id/block
	roomGroup.POST("/:id/unblock", chatHandler.UnblockRoom)   // POST /v1/rooms/:id/unblock

	messageGroup := e.Group("/v1/messages")
	messageGroup.Use(authMiddleware.Authenticate)
	messageGroup.DELETE("/:id", chatHandler.DeleteMessage) // DELETE /v1/messages/:id - soft delete own message

	unread := e.Group("/v1/unread-count")
	unread.Use(authMiddleware.Authenticate)
	unread.GET("", chatHandler.GetUnreadCount) // GET /v1/unread-count - total across rooms
}
