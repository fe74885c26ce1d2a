package httpapi

import (
	"net/http"
	"strconv"

	"tggate/internal/telegram"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleHistory(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offsetID, _ := strconv.Atoi(c.QueryParam("offset_id"))

	messages, err := s.gateway.History(c.Request().Context(), c.Param("chat_id"), limit, offsetID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, messages)
}

type sendRequest struct {
	ChatID     string `json:"chat_id"`
	Text       string `json:"text"`
	ReplyToID  int    `json:"reply_to_msg_id,omitempty"`
	Silent     bool   `json:"silent,omitempty"`
	ScheduleAt int64  `json:"schedule_at,omitempty"`
}

func (s *Server) handleSend(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	if req.ChatID == "" || req.Text == "" {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "chat_id and text are required"})
	}

	sent, err := s.gateway.Send(c.Request().Context(), req.ChatID, req.Text, telegram.SendOptions{
		ReplyToID:  req.ReplyToID,
		Silent:     req.Silent,
		ScheduleAt: req.ScheduleAt,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, sent)
}

type editRequest struct {
	ChatID    string `json:"chat_id"`
	MessageID int    `json:"message_id"`
	Text      string `json:"text"`
}

func (s *Server) handleEdit(c echo.Context) error {
	var req editRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	if req.ChatID == "" || req.MessageID == 0 || req.Text == "" {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "chat_id, message_id and text are required"})
	}

	edited, err := s.gateway.Edit(c.Request().Context(), req.ChatID, req.MessageID, req.Text)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, edited)
}

type deleteRequest struct {
	ChatID     string `json:"chat_id"`
	MessageIDs []int  `json:"message_ids"`
}

func (s *Server) handleDelete(c echo.Context) error {
	var req deleteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	if req.ChatID == "" || len(req.MessageIDs) == 0 {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "chat_id and message_ids are required"})
	}

	if err := s.gateway.Delete(c.Request().Context(), req.ChatID, req.MessageIDs); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"deleted": true})
}

type forwardRequest struct {
	FromChatID string `json:"from_chat_id"`
	ToChatID   string `json:"to_chat_id"`
	MessageIDs []int  `json:"message_ids"`
}

func (s *Server) handleForward(c echo.Context) error {
	var req forwardRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	if req.FromChatID == "" || req.ToChatID == "" || len(req.MessageIDs) == 0 {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "from_chat_id, to_chat_id and message_ids are required"})
	}

	ids, err := s.gateway.Forward(c.Request().Context(), req.FromChatID, req.ToChatID, req.MessageIDs)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]int{"message_ids": ids})
}

type pinRequest struct {
	ChatID    string `json:"chat_id"`
	MessageID int    `json:"message_id"`
	Unpin     bool   `json:"unpin,omitempty"`
}

func (s *Server) handlePin(c echo.Context) error {
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	if req.ChatID == "" || req.MessageID == 0 {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "chat_id and message_id are required"})
	}

	if err := s.gateway.Pin(c.Request().Context(), req.ChatID, req.MessageID, req.Unpin); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// reactRequest sets or, with an empty reaction, clears a message reaction.
type reactRequest struct {
	ChatID    string `json:"chat_id"`
	MessageID int    `json:"message_id"`
	Reaction  string `json:"reaction,omitempty"`
}

func (s *Server) handleReact(c echo.Context) error {
	var req reactRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	if req.ChatID == "" || req.MessageID == 0 {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "chat_id and message_id are required"})
	}

	if err := s.gateway.React(c.Request().Context(), req.ChatID, req.MessageID, req.Reaction); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

type markReadRequest struct {
	ChatID string `json:"chat_id"`
	MaxID  int    `json:"message_id,omitempty"`
}

func (s *Server) handleMarkRead(c echo.Context) error {
	var req markReadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	if req.ChatID == "" {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "chat_id is required"})
	}

	if err := s.gateway.MarkRead(c.Request().Context(), req.ChatID, req.MaxID); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// searchRequest scopes a message search. An empty chat_id searches across
// all chats.
type searchRequest struct {
	ChatID string `json:"chat_id,omitempty"`
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
}

func (s *Server) handleSearch(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	if req.Query == "" {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "query is required"})
	}

	messages, err := s.gateway.Search(c.Request().Context(), req.ChatID, req.Query, req.Limit)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, messages)
}
