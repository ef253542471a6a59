package handler

import (
	"github.com/labstack/echo/v4"

	"tradepost/internal/usecase"
	"tradepost/pkg/response"
	"tradepost/pkg/utils"
)

type ChatHandler struct {
	roomUseCase    *usecase.RoomUseCase
	messageUseCase *usecase.MessageUseCase
}

func NewChatHandler(roomUseCase *usecase.RoomUseCase, messageUseCase *usecase.MessageUseCase) *ChatHandler {
	return &ChatHandler{
		roomUseCase:    roomUseCase,
		messageUseCase: messageUseCase,
	}
}

type createRoomRequest struct {
	ListingID string `json:"listing_id" validate:"required"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// CreateRoom resolves or creates the chat room between the caller and the
// listing's seller. Returns the existing room when one already exists.
func (h *ChatHandler) CreateRoom(c echo.Context) error {
	var req createRoomRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	room, err := h.roomUseCase.GetOrCreateRoom(c.Request().Context(), userID, req.ListingID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, room)
}

// ListRooms returns the caller's rooms, most recently active first.
func (h *ChatHandler) ListRooms(c echo.Context) error {
	userID := c.Get("uid").(string)
	params := utils.GetPaginationParams(c, 20)

	rooms, total, err := h.roomUseCase.ListRooms(c.Request().Context(), userID, params.Limit, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, rooms, total, params.Limit, params.Offset)
}

func (h *ChatHandler) GetRoom(c echo.Context) error {
	userID := c.Get("uid").(string)

	room, err := h.roomUseCase.GetRoom(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, room)
}

func (h *ChatHandler) GetMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	params := utils.GetPaginationParams(c, 50)

	messages, total, err := h.messageUseCase.GetHistory(c.Request().Context(), c.Param("id"), userID, params)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, params.Limit, params.Offset)
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	message, err := h.messageUseCase.SendMessage(c.Request().Context(), c.Param("id"), userID, req.Content)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ChatHandler) MarkRoomAsRead(c echo.Context) error {
	userID := c.Get("uid").(string)

	updated, err := h.messageUseCase.MarkRead(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"updated": updated,
	})
}

func (h *ChatHandler) BlockRoom(c echo.Context) error {
	userID := c.Get("uid").(string)

	if err := h.roomUseCase.BlockRoom(c.Request().Context(), c.Param("id"), userID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"blocked": true,
	})
}

func (h *ChatHandler) UnblockRoom(c echo.Context) error {
	userID := c.Get("uid").(string)

	if err := h.roomUseCase.UnblockRoom(c.Request().Context(), c.Param("id"), userID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"blocked": false,
	})
}

func (h *ChatHandler) DeleteMessage(c echo.Context) error {
	userID := c.Get("uid").(string)

	if err := h.messageUseCase.DeleteMessage(c.Request().Context(), c.Param("id"), userID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"deleted": true,
	})
}

func (h *ChatHandler) GetUnreadCount(c echo.Context) error {
	userID := c.Get("uid").(string)

	total, err := h.roomUseCase.UnreadCountTotal(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"unread_count": total,
	})
}
