package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/taskplanner/internal/application"
	"github.com/example/taskplanner/internal/logging"
)

// Error codes carried in error bodies.
const (
	codeBadRequest         = "bad_request"
	codeValidation         = "validation_error"
	codeUnauthenticated    = "unauthenticated"
	codeInvalidCredentials = "invalid_credentials"
	codeForbidden          = "forbidden"
	codeNotFound           = "not_found"
	codeAlreadyExists      = "already_exists"
	codeMethodNotAllowed   = "method_not_allowed"
	codeDependency         = "dependency_failure"
	codeInternal           = "internal_error"
)

var errBadRequestBody = errors.New("invalid request body")

type errorResponse struct {
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) loggerFor(c echo.Context) *slog.Logger {
	if logger := logging.FromContext(c.Request().Context()); logger != nil {
		return logger
	}
	return r.logger
}

func (r responder) writeJSON(c echo.Context, status int, payload any) error {
	if status == http.StatusNoContent || payload == nil {
		return c.NoContent(status)
	}
	return c.JSON(status, payload)
}

func (r responder) writeError(c echo.Context, status int, code, message string, fields map[string]string) error {
	if status == http.StatusUnauthorized {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	}
	return c.JSON(status, errorResponse{ErrorCode: code, Message: message, Errors: fields})
}

func (r responder) badRequest(c echo.Context, err error) error {
	message := errBadRequestBody.Error()
	if err != nil {
		message = err.Error()
	}
	return r.writeError(c, http.StatusBadRequest, codeBadRequest, message, nil)
}

// handleServiceError maps application errors onto statuses and error bodies.
func (r responder) handleServiceError(c echo.Context, err error) error {
	var vErr *application.ValidationError
	switch {
	case err == nil:
		return r.writeError(c, http.StatusInternalServerError, codeInternal, "Internal server error", nil)
	case errors.As(err, &vErr):
		return r.writeError(c, http.StatusUnprocessableEntity, codeValidation, "Validation failed", vErr.FieldErrors)
	case errors.Is(err, errBadRequestBody):
		return r.badRequest(c, err)
	case errors.Is(err, application.ErrInvalidCredentials):
		return r.writeError(c, http.StatusUnauthorized, codeInvalidCredentials, "Invalid password", nil)
	case errors.Is(err, application.ErrUnauthenticated):
		return r.writeError(c, http.StatusUnauthorized, codeUnauthenticated, "Could not validate credentials", nil)
	case errors.Is(err, application.ErrForbidden):
		return r.writeError(c, http.StatusForbidden, codeForbidden, "Insufficient permissions", nil)
	case errors.Is(err, application.ErrNotFound):
		return r.writeError(c, http.StatusNotFound, codeNotFound, "Resource not found", nil)
	case errors.Is(err, application.ErrAlreadyExists):
		return r.writeError(c, http.StatusConflict, codeAlreadyExists, err.Error(), nil)
	case errors.Is(err, application.ErrDependency):
		r.loggerFor(c).ErrorContext(c.Request().Context(), "dependency failed", "error", err)
		return r.writeError(c, http.StatusInternalServerError, codeDependency, err.Error(), nil)
	default:
		r.loggerFor(c).ErrorContext(c.Request().Context(), "request failed", "error", err)
		return r.writeError(c, http.StatusInternalServerError, codeInternal, "Internal server error", nil)
	}
}

// handleEchoError renders errors raised by echo itself, such as unknown
// routes, in the shared error body.
func (r responder) handleEchoError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = r.handleServiceError(c, err)
		return
	}

	message := http.StatusText(he.Code)
	if he.Message != nil {
		message = fmt.Sprint(he.Message)
	}
	code := codeInternal
	switch he.Code {
	case http.StatusBadRequest:
		code = codeBadRequest
	case http.StatusUnauthorized:
		code = codeUnauthenticated
	case http.StatusForbidden:
		code = codeForbidden
	case http.StatusNotFound:
		code = codeNotFound
	case http.StatusMethodNotAllowed:
		code = codeMethodNotAllowed
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(he.Code)
		return
	}
	_ = r.writeError(c, he.Code, code, message, nil)
}
