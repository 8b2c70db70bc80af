package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/metavr/access-service/internal/handler"    // handlers for every endpoint
	"github.com/metavr/access-service/internal/middleware" // session, role, origin and rate limit middleware
	"github.com/metavr/access-service/internal/model"
)

// Guards are the middleware applied route by route. A nil entry is skipped.
type Guards struct {
	Sessions middleware.SessionValidator
	Origin   echo.MiddlewareFunc // CSRF origin check on state-changing routes
	Limit    echo.MiddlewareFunc // default rate limit for public routes
	Strict   echo.MiddlewareFunc // rate limit for password and access-code guesses
}

func (g Guards) chain(mw ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mw))
	for _, m := range mw {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (g Guards) role(r model.Role) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{middleware.RequireSession(g.Sessions), middleware.RequireRole(r)}
}

// RegisterRoutes registers the operational endpoints: liveness and
// readiness checks and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc, metrics http.Handler) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers the login protocol, session-based app access
// checks and supervisor access-code administration under /auth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g Guards) {
	grp := e.Group("/auth")

	// Login, handshake and logout change cookies, so they all carry the
	// origin check. Login is where passwords get guessed.
	grp.POST("/login", a.Login, g.chain(g.Origin, g.Strict)...)
	grp.POST("/handshake", a.Handshake, g.chain(g.Origin, g.Limit)...)
	grp.POST("/logout", a.Logout, g.chain(g.Origin)...)

	grp.GET("/validate-app-access", a.ValidateAppAccess, g.chain(g.Limit)...)
	grp.POST("/access-codes/check", a.CheckAccessCode, g.chain(g.Strict)...)

	// Admin-only code administration. These are cookie-authenticated writes,
	// so they carry the origin check too.
	admin := append(g.chain(g.Origin), g.role(model.RoleAdmin)...)
	grp.POST("/access-codes/sync", a.SyncAccessCodes, admin...)
	grp.POST("/access-codes/regenerate", a.RegenerateAccessCode, admin...)
	grp.POST("/supervisors/welcome-email", a.SendSupervisorWelcome, admin...)
}

// RegisterUserAccess registers the access request workflow under
// /user-access. Submitting and resending are public; review and
// management need a supervisor session.
func RegisterUserAccess(e *echo.Echo, u *handler.UserAccessHandler, g Guards) {
	grp := e.Group("/user-access")

	grp.POST("/request", u.Submit, g.chain(g.Limit)...)
	grp.POST("/resend-code", u.ResendCode, g.chain(g.Strict)...)

	sup := g.role(model.RoleSupervisor)
	grp.GET("/requests", u.ListPending, sup...)
	grp.GET("/requests/history", u.ListHistory, sup...)
	grp.GET("/users", u.ListUsers, sup...)

	write := append(g.chain(g.Origin), sup...)
	grp.POST("/approve", u.Approve, write...)
	grp.POST("/reject", u.Reject, write...)
	grp.POST("/regenerate-code", u.RegenerateCode, write...)
	grp.POST("/toggle-access", u.ToggleAccess, write...)
}
