package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/taskplanner/internal/application"
)

type loginService interface {
	Login(ctx context.Context, params application.LoginParams) (application.LoginResult, error)
}

// AuthHandler serves login, session and logout.
type AuthHandler struct {
	access    loginService
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(access loginService, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{access: access, responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(c echo.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(c.Request().Context(), h.logger, "AuthHandler", operation, attrs...)
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Label       string `json:"label"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type sessionResponse struct {
	Label         string `json:"label"`
	Role          string `json:"role"`
	ExpiresAt     string `json:"expires_at"`
	Authenticated bool   `json:"authenticated"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Login exchanges an access code for a bearer token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := decodeInto(c, &req); err != nil {
		h.log(c, "Login", "error_kind", "bad_request").WarnContext(c.Request().Context(), "failed to decode login request", "error", err)
		return h.responder.badRequest(c, err)
	}

	result, err := h.access.Login(c.Request().Context(), application.LoginParams{
		Secret:   req.Password,
		ClientIP: c.RealIP(),
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}

	return h.responder.writeJSON(c, http.StatusOK, loginResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
		Label:       result.Principal.Label,
		Role:        string(result.Principal.Role),
		ExpiresAt:   application.SessionExpiry(result.Principal),
	})
}

// Session echoes the validated principal.
func (h *AuthHandler) Session(c echo.Context) error {
	principal := principalFrom(c)
	return h.responder.writeJSON(c, http.StatusOK, sessionResponse{
		Label:         principal.Label,
		Role:          string(principal.Role),
		ExpiresAt:     application.SessionExpiry(principal),
		Authenticated: true,
	})
}

// Logout is stateless; clients drop their token.
func (h *AuthHandler) Logout(c echo.Context) error {
	return h.responder.writeJSON(c, http.StatusOK, messageResponse{Message: "Logged out"})
}
