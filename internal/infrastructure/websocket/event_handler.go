package websocket

import (
	"context"
	"encoding/json"

	"tradepost/internal/usecase"
	"tradepost/pkg/errors"
	"tradepost/pkg/logger"
)

type inboundEvent struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	Content   string `json:"content"`
	MessageID string `json:"message_id"`
}

// ChatEventHandler routes inbound connection events to the chat use cases.
// Events on one connection are handled strictly in arrival order because the
// read pump calls HandleEvent synchronously.
type ChatEventHandler struct {
	manager     *Manager
	roomUseCase *usecase.RoomUseCase
	messages    *usecase.MessageUseCase
}

func NewChatEventHandler(manager *Manager, roomUseCase *usecase.RoomUseCase, messages *usecase.MessageUseCase) *ChatEventHandler {
	return &ChatEventHandler{
		manager:     manager,
		roomUseCase: roomUseCase,
		messages:    messages,
	}
}

func (h *ChatEventHandler) HandleEvent(client *Client, raw []byte) {
	var event inboundEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.sendError(client, errors.BadRequest("Malformed event", err))
		return
	}

	ctx := context.Background()

	switch event.Type {
	case "join_room":
		h.handleJoin(ctx, client, event.RoomID)
	case "leave_room":
		h.handleLeave(client, event.RoomID)
	case "send_message":
		h.handleSend(ctx, client, event)
	case "typing_start":
		h.messages.HandleTyping(ctx, event.RoomID, client.UserID, true)
	case "typing_stop":
		h.messages.HandleTyping(ctx, event.RoomID, client.UserID, false)
	case "mark_read":
		h.handleMarkRead(ctx, client, event.RoomID)
	case "ping":
		h.send(client, map[string]interface{}{"type": "pong"})
	default:
		h.sendError(client, errors.BadRequest("Unknown event type: "+event.Type, nil))
	}
}

// handleJoin authorizes the user against the room, subscribes the connection
// and announces the arrival to the other participants. Joining a blocked room
// is allowed; only sending is restricted.
func (h *ChatEventHandler) handleJoin(ctx context.Context, client *Client, roomID string) {
	if roomID == "" {
		h.sendError(client, errors.BadRequest("room_id is required", nil))
		return
	}

	room, err := h.roomUseCase.GetRoom(ctx, roomID, client.UserID)
	if err != nil {
		h.sendError(client, err)
		return
	}

	h.manager.Subscribe(client, roomID)

	h.send(client, map[string]interface{}{
		"type":    "joined_room",
		"room_id": roomID,
		"room":    room,
	})

	payload, err := json.Marshal(map[string]interface{}{
		"type":    "user_joined",
		"room_id": roomID,
		"user_id": client.UserID,
	})
	if err == nil {
		h.manager.BroadcastToRoomExcept(roomID, client.UserID, payload)
	}
}

func (h *ChatEventHandler) handleLeave(client *Client, roomID string) {
	if roomID == "" {
		return
	}
	h.manager.Unsubscribe(client, roomID)
	h.send(client, map[string]interface{}{
		"type":    "left_room",
		"room_id": roomID,
	})
}

// handleSend runs the message pipeline. The sender gets a direct ack with the
// persisted message; the pipeline itself broadcasts new_message to the room,
// sender included.
func (h *ChatEventHandler) handleSend(ctx context.Context, client *Client, event inboundEvent) {
	if event.RoomID == "" {
		h.sendError(client, errors.BadRequest("room_id is required", nil))
		return
	}

	message, err := h.messages.SendMessage(ctx, event.RoomID, client.UserID, event.Content)
	if err != nil {
		h.sendError(client, err)
		return
	}

	h.send(client, map[string]interface{}{
		"type":    "message_sent",
		"room_id": event.RoomID,
		"message": message,
	})
}

func (h *ChatEventHandler) handleMarkRead(ctx context.Context, client *Client, roomID string) {
	if roomID == "" {
		h.sendError(client, errors.BadRequest("room_id is required", nil))
		return
	}

	updated, err := h.messages.MarkRead(ctx, roomID, client.UserID)
	if err != nil {
		h.sendError(client, err)
		return
	}

	h.send(client, map[string]interface{}{
		"type":    "marked_read",
		"room_id": roomID,
		"updated": updated,
	})
}

func (h *ChatEventHandler) send(client *Client, event map[string]interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal %v event: %v", event["type"], err)
		return
	}
	h.manager.SendToClient(client, payload)
}

func (h *ChatEventHandler) sendError(client *Client, err error) {
	code := "INTERNAL_ERROR"
	message := "Something went wrong"
	if appErr, ok := err.(*errors.AppError); ok {
		code = appErr.Code
		message = appErr.Message
	}
	h.send(client, map[string]interface{}{
		"type":    "error",
		"code":    code,
		"message": message,
	})
}
