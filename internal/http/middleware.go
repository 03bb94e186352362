package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/taskplanner/internal/application"
	"github.com/example/taskplanner/internal/logging"
)

// SessionValidator resolves bearer tokens into principals.
type SessionValidator interface {
	ValidateToken(ctx context.Context, token string) (application.Principal, error)
}

// RequireSession rejects requests without a valid bearer token and stores the
// principal on the request context.
func RequireSession(validator SessionValidator, logger *slog.Logger) echo.MiddlewareFunc {
	responder := newResponder(logger)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request())
			if token == "" {
				return responder.writeError(c, http.StatusUnauthorized, codeUnauthenticated, "Not authenticated", nil)
			}

			ctx := c.Request().Context()
			principal, err := validator.ValidateToken(ctx, token)
			if err != nil {
				handlerLogger(ctx, logger, "RequireSession", "").WarnContext(ctx, "session rejected", "error", err)
				return responder.handleServiceError(c, err)
			}

			c.SetRequest(c.Request().WithContext(ContextWithPrincipal(ctx, principal)))
			return next(c)
		}
	}
}

// RequireRole rejects principals below the required role. It must run after
// RequireSession.
func RequireRole(role application.Role, logger *slog.Logger) echo.MiddlewareFunc {
	responder := newResponder(logger)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := application.Authorize(principalFrom(c), role); err != nil {
				return responder.handleServiceError(c, err)
			}
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequestLogger attaches a request scoped logger carrying the request id and
// logs each completed request.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	base = defaultLogger(base)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = c.Response().Header().Get(echo.HeaderXRequestID)
			}
			logger := base.With(
				"request_id", requestID,
				"method", req.Method,
				"path", req.URL.Path,
			)

			ctx := logging.ContextWithLogger(req.Context(), logger)
			c.SetRequest(req.WithContext(ctx))

			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			attrs := []any{"status", status, "duration", time.Since(start)}
			switch {
			case status >= http.StatusInternalServerError:
				logger.ErrorContext(ctx, "request completed", attrs...)
			case status >= http.StatusBadRequest:
				logger.WarnContext(ctx, "request completed", attrs...)
			default:
				logger.InfoContext(ctx, "request completed", attrs...)
			}
			return nil
		}
	}
}
