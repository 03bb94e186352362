package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/taskplanner/internal/application"
	"github.com/example/taskplanner/internal/persistence"
)

type adminService interface {
	ListLoginAttempts(ctx context.Context, principal application.Principal, limit int) ([]persistence.Record, error)
	ListAccessCodes(ctx context.Context, principal application.Principal) ([]application.AccessCodeView, error)
	CreateAccessCode(ctx context.Context, principal application.Principal, params application.CreateAccessCodeParams) (application.AccessCodeView, error)
	UpdateAccessCode(ctx context.Context, principal application.Principal, id int64, params application.UpdateAccessCodeParams) (application.AccessCodeView, error)
}

// AdminHandler serves login auditing and access code management.
type AdminHandler struct {
	service   adminService
	responder responder
	logger    *slog.Logger
}

func NewAdminHandler(service adminService, logger *slog.Logger) *AdminHandler {
	base := defaultLogger(logger)
	return &AdminHandler{service: service, responder: newResponder(base), logger: base}
}

type accessCodeRequest struct {
	Label string `json:"label"`
	Code  string `json:"code"`
	Role  string `json:"role"`
}

type accessCodeUpdateRequest struct {
	IsActive *bool   `json:"is_active"`
	Role     *string `json:"role"`
}

// LoginAttempts serves GET /admin/login-attempts.
func (h *AdminHandler) LoginAttempts(c echo.Context) error {
	var vErr application.ValidationError
	limit := queryInt(c, "limit", application.DefaultLoginAttemptLimit, &vErr)
	if vErr.HasErrors() {
		return h.responder.handleServiceError(c, &vErr)
	}
	attempts, err := h.service.ListLoginAttempts(c.Request().Context(), principalFrom(c), limit)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, nonNil(attempts))
}

// AccessCodes serves GET /admin/access-codes.
func (h *AdminHandler) AccessCodes(c echo.Context) error {
	codes, err := h.service.ListAccessCodes(c.Request().Context(), principalFrom(c))
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	if codes == nil {
		codes = []application.AccessCodeView{}
	}
	return h.responder.writeJSON(c, http.StatusOK, codes)
}

// CreateAccessCode serves POST /admin/access-codes.
func (h *AdminHandler) CreateAccessCode(c echo.Context) error {
	var req accessCodeRequest
	if err := decodeInto(c, &req); err != nil {
		return h.responder.badRequest(c, err)
	}
	principal := principalFrom(c)
	view, err := h.service.CreateAccessCode(c.Request().Context(), principal, application.CreateAccessCodeParams(req))
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	handlerLogger(c.Request().Context(), h.logger, "AdminHandler", "CreateAccessCode", "code_label", view.Label, "principal", principal.Label).
		InfoContext(c.Request().Context(), "access code created")
	return h.responder.writeJSON(c, http.StatusCreated, view)
}

// UpdateAccessCode serves PUT /admin/access-codes/:id.
func (h *AdminHandler) UpdateAccessCode(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	var req accessCodeUpdateRequest
	if err := decodeInto(c, &req); err != nil {
		return h.responder.badRequest(c, err)
	}
	view, err := h.service.UpdateAccessCode(c.Request().Context(), principalFrom(c), id, application.UpdateAccessCodeParams(req))
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, view)
}
