package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/taskplanner/internal/application"
	"github.com/example/taskplanner/internal/persistence"
)

type templateService interface {
	BulkImport(ctx context.Context, principal application.Principal, entries []any) ([]persistence.Record, error)
}

// TemplateHandler serves bulk template import.
type TemplateHandler struct {
	service   templateService
	responder responder
}

func NewTemplateHandler(service templateService, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{service: service, responder: newResponder(logger)}
}

type bulkImportResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// BulkImport serves POST /task-templates/bulk-import.
func (h *TemplateHandler) BulkImport(c echo.Context) error {
	payload, err := decodeObject(c)
	if err != nil {
		return h.responder.badRequest(c, err)
	}
	entries, ok := payload["templates"].([]any)
	if !ok {
		return h.responder.badRequest(c, fmt.Errorf("invalid data format: expected a 'templates' list"))
	}

	imported, err := h.service.BulkImport(c.Request().Context(), principalFrom(c), entries)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, bulkImportResponse{
		Message: fmt.Sprintf("Successfully imported %d templates", len(imported)),
		Count:   len(imported),
	})
}
