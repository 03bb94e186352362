package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/example/taskplanner/internal/application"
	"github.com/example/taskplanner/internal/persistence"
)

type taskService interface {
	List(ctx context.Context, principal application.Principal, params application.TaskListParams) ([]persistence.Record, error)
	Lookup(ctx context.Context, principal application.Principal, ref string) (persistence.Record, error)
	Complete(ctx context.Context, principal application.Principal, ref string) error
	Archive(ctx context.Context, principal application.Principal, id int64) (persistence.Record, error)
	Unarchive(ctx context.Context, principal application.Principal, id int64) (persistence.Record, error)
}

// TaskHandler serves the task routes that go beyond plain record CRUD.
type TaskHandler struct {
	service   taskService
	responder responder
	logger    *slog.Logger
}

func NewTaskHandler(service taskService, logger *slog.Logger) *TaskHandler {
	base := defaultLogger(logger)
	return &TaskHandler{service: service, responder: newResponder(base), logger: base}
}

// List serves GET /tasks.
func (h *TaskHandler) List(c echo.Context) error {
	base, err := listParams(c)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	var vErr application.ValidationError
	params := application.TaskListParams{
		Skip:            base.Skip,
		Limit:           base.Limit,
		Assignee:        strings.TrimSpace(c.QueryParam("assignee")),
		IncludeArchived: queryBool(c, "include_archived", &vErr),
	}
	switch source := strings.ToLower(strings.TrimSpace(c.QueryParam("source"))); source {
	case "", "external":
	case "local":
		params.LocalOnly = true
	default:
		addFieldError(&vErr, "source", "must be one of: local, external")
	}
	if vErr.HasErrors() {
		return h.responder.handleServiceError(c, &vErr)
	}

	tasks, err := h.service.List(c.Request().Context(), principalFrom(c), params)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, nonNil(tasks))
}

// Get serves GET /tasks/:id. The id may name a spreadsheet task.
func (h *TaskHandler) Get(c echo.Context) error {
	task, err := h.service.Lookup(c.Request().Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, task)
}

// Complete serves POST /tasks/:id/complete.
func (h *TaskHandler) Complete(c echo.Context) error {
	ref := c.Param("id")
	principal := principalFrom(c)
	if err := h.service.Complete(c.Request().Context(), principal, ref); err != nil {
		return h.responder.handleServiceError(c, err)
	}
	handlerLogger(c.Request().Context(), h.logger, "TaskHandler", "Complete", "task_ref", ref).
		InfoContext(c.Request().Context(), "task completed")
	return h.responder.writeJSON(c, http.StatusOK, map[string]any{
		"message":      "Task marked as completed",
		"task_id":      ref,
		"completed_by": principal.Label,
	})
}

// Archive serves POST /tasks/:id/archive.
func (h *TaskHandler) Archive(c echo.Context) error {
	return h.toggle(c, h.service.Archive)
}

// Unarchive serves POST /tasks/:id/unarchive.
func (h *TaskHandler) Unarchive(c echo.Context) error {
	return h.toggle(c, h.service.Unarchive)
}

func (h *TaskHandler) toggle(c echo.Context, fn func(context.Context, application.Principal, int64) (persistence.Record, error)) error {
	id, err := pathID(c)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	task, err := fn(c.Request().Context(), principalFrom(c), id)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, task)
}
