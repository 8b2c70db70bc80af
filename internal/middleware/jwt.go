package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"net/http" // HTTP status codes for responses
	"strings"

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/metavr/access-service/internal/utils"
)

// Cookie names shared by the auth handlers and the session middleware.
const (
	SessionCookie   = "session"
	HandshakeCookie = "handshake"
)

// SessionValidator checks a session token. *service.AuthService satisfies it.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*utils.TokenClaims, error)
}

// RequireSession returns an Echo middleware that validates the session
// cookie and injects the session's user id, role and claims into the
// request context. Handlers read them back with UserID, Role and Claims.
func RequireSession(auth SessionValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := CookieFromRequest(c, SessionCookie)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Session token required"})
			}

			// The reason a session was refused is recorded by the validator's
			// security log; the caller only learns that it was refused.
			claims, err := auth.ValidateSession(c.Request().Context(), token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Invalid or expired session"})
			}

			c.Set(ctxUserID, claims.UserID)
			c.Set(ctxRole, claims.Role)
			c.Set(ctxClaims, claims)
			return next(c)
		}
	}
}

// CookieFromRequest reads cookie name from the raw Cookie header(s) of the
// request. Repeated Cookie headers are joined the way HTTP/2 splits them.
func CookieFromRequest(c echo.Context, name string) (string, bool) {
	header := strings.Join(c.Request().Header.Values("Cookie"), "; ")
	return utils.CookieValue(nil, header, name)
}
