package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/metavr/access-service/internal/service"
)

// requestTimeout bounds the store calls made by a single request.
const requestTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{"success": false, "message": message})
}

// serviceError answers err with the status its kind maps to. Credential,
// session and handshake failures get a fixed message; the reason was
// already written to the security log by the service.
func serviceError(c echo.Context, log *slog.Logger, err error) error {
	switch {
	case errors.Is(err, service.ErrCredentialInvalid):
		return fail(c, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrAccountNotActive):
		return fail(c, http.StatusUnauthorized, "Account is suspended or inactive")
	case service.IsUnauthenticated(err):
		return fail(c, http.StatusUnauthorized, "Invalid session token")
	case service.IsHandshakeFailure(err):
		return fail(c, http.StatusBadRequest, "Invalid or expired handshake token")
	case errors.Is(err, service.ErrForbidden):
		return fail(c, http.StatusForbidden, service.Detail(err))
	case errors.Is(err, service.ErrNotFound):
		return fail(c, http.StatusNotFound, service.Detail(err))
	case errors.Is(err, service.ErrBadRequest):
		return fail(c, http.StatusBadRequest, service.Detail(err))
	}
	log.ErrorContext(c.Request().Context(), "request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	return fail(c, http.StatusInternalServerError, "internal error")
}
