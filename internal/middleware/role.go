package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/metavr/access-service/internal/model"
)

// RequireRole returns a middleware function that enforces that the
// authenticated principal has one of the specified roles. It assumes
// RequireSession has already stored the role in the context; a missing
// role is treated like a wrong one.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	// Build a set of allowed roles for constant-time lookups.
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := Role(c)
			if role == "" || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": roleMessage(roles)})
			}
			return next(c)
		}
	}
}

func roleMessage(roles []model.Role) string {
	if len(roles) == 1 {
		switch roles[0] {
		case model.RoleAdmin:
			return "Admin access required"
		case model.RoleSupervisor:
			return "Supervisor access required"
		}
	}
	return "forbidden"
}
