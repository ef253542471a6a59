package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	gorillaws "github.com/gorilla/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	ws "tradepost/internal/infrastructure/websocket"
	"tradepost/internal/usecase"
	"tradepost/pkg/errors"
	"tradepost/pkg/logger"
	"tradepost/pkg/response"
)

type WebSocketHandler struct {
	wsManager *ws.Manager
	verifier  usecase.AuthVerifier
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Restrict in production
	},
}

func NewWebSocketHandler(wsManager *ws.Manager, verifier usecase.AuthVerifier) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		verifier:  verifier,
	}
}

// HandleWebSocket authenticates the caller and upgrades the connection. The
// credential comes from the "token" query param (browser clients cannot set
// headers on websocket dials) or a regular bearer header. Authentication
// failures are rejected before the upgrade.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		authHeader := c.Request().Header.Get("Authorization")
		if parts := strings.Split(authHeader, " "); len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}

	userID, err := h.verifier.VerifyToken(c.Request().Context(), token)
	if err != nil {
		return response.Error(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	// Registration is synchronous so a join_room arriving on the very first
	// read is already visible to the subscription table.
	h.wsManager.RegisterClient(client)

	// First frame on every connection is the connected ack.
	if ack, err := json.Marshal(map[string]interface{}{
		"type":          "connected",
		"connection_id": client.ID,
		"user_id":       userID,
	}); err == nil {
		h.wsManager.SendToClient(client, ack)
	} else {
		logger.Error("Failed to marshal connected ack: %v", err)
	}

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	return nil
}
