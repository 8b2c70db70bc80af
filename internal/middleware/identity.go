package middleware

// identity.go holds the context keys written by RequireSession and the
// accessors handlers use to read them. Anonymous requests read back as
// empty values.

import (
	"github.com/labstack/echo/v4"

	"github.com/metavr/access-service/internal/model"
	"github.com/metavr/access-service/internal/utils"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxClaims = "claims"
)

// UserID returns the authenticated principal id or "".
func UserID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok {
		return s
	}
	return ""
}

// Role returns the authenticated principal role or "".
func Role(c echo.Context) model.Role {
	if s, ok := c.Get(ctxRole).(string); ok {
		return model.Role(s)
	}
	return ""
}

// Claims returns the validated session claims, or nil for anonymous
// requests.
func Claims(c echo.Context) *utils.TokenClaims {
	cl, _ := c.Get(ctxClaims).(*utils.TokenClaims)
	return cl
}

// currentUserID is the rate-limit identity: the principal id, or "anon".
func currentUserID(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
