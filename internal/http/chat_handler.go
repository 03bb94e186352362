package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/taskplanner/internal/application"
	"github.com/example/taskplanner/internal/persistence"
)

type chatService interface {
	Send(ctx context.Context, principal application.Principal, params application.ChatParams) (application.ChatReply, error)
	History(ctx context.Context, principal application.Principal, skip, limit int) ([]persistence.Record, error)
	Clear(ctx context.Context, principal application.Principal) (int, error)
}

// ChatHandler serves the assistant conversation.
type ChatHandler struct {
	service   chatService
	responder responder
}

func NewChatHandler(service chatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{service: service, responder: newResponder(logger)}
}

type chatRequest struct {
	Message string `json:"message"`
	Context string `json:"context"`
}

type chatResponse struct {
	Response  string `json:"response"`
	CreatedAt string `json:"created_at"`
}

// Send serves POST /chat.
func (h *ChatHandler) Send(c echo.Context) error {
	var req chatRequest
	if err := decodeInto(c, &req); err != nil {
		return h.responder.badRequest(c, err)
	}
	reply, err := h.service.Send(c.Request().Context(), principalFrom(c), application.ChatParams(req))
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, chatResponse{Response: reply.Response, CreatedAt: reply.CreatedAt})
}

// History serves GET /chat/history.
func (h *ChatHandler) History(c echo.Context) error {
	var vErr application.ValidationError
	skip := queryInt(c, "skip", 0, &vErr)
	limit := queryInt(c, "limit", application.DefaultChatHistoryLimit, &vErr)
	if vErr.HasErrors() {
		return h.responder.handleServiceError(c, &vErr)
	}
	messages, err := h.service.History(c.Request().Context(), principalFrom(c), skip, limit)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, nonNil(messages))
}

// Clear serves DELETE /chat/history.
func (h *ChatHandler) Clear(c echo.Context) error {
	if _, err := h.service.Clear(c.Request().Context(), principalFrom(c)); err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusNoContent, nil)
}
