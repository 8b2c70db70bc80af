package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/metavr/access-service/internal/config"
	"github.com/metavr/access-service/internal/middleware"
	"github.com/metavr/access-service/internal/model"
	"github.com/metavr/access-service/internal/service"
)

// Authenticator is the login and handshake side of *service.AuthService.
type Authenticator interface {
	Login(ctx context.Context, email, password string, rememberMe bool) (service.LoginResult, error)
	ExchangeHandshake(ctx context.Context, token string) (service.ExchangeResult, error)
	Logout(ctx context.Context, token string) error
}

// AccessResolver is the part of *service.AccessService the auth endpoints
// expose.
type AccessResolver interface {
	CheckAppAccess(ctx context.Context, token, appPath string) service.AppAccessResult
	VerifyAccessCode(ctx context.Context, appKey, code string) service.AccessCodeResult
	SyncSupervisorCodes(ctx context.Context, supervisorID string, assignments []service.AppAssignment) (map[string]model.AccessCodeEntry, error)
	RegenerateSupervisorCode(ctx context.Context, supervisorID, appKey string) (model.AccessCodeEntry, error)
	SendSupervisorWelcome(ctx context.Context, supervisorID, password string) error
}

// AuthHandler bundles dependencies for the /auth endpoints.
type AuthHandler struct {
	Auth    Authenticator
	Access  AccessResolver
	cookies cookieWriter
	log     *slog.Logger
}

func NewAuthHandler(cfg config.Config, auth Authenticator, access AccessResolver, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{Auth: auth, Access: access, cookies: cookieWriter{secure: cfg.Production()}, log: log}
}

// ----- DTOs -----

type loginReq struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type handshakeReq struct {
	Token string `json:"token"`
}

type checkCodeReq struct {
	AppKey string `json:"appKey"`
	Code   string `json:"code"`
}

type syncCodesReq struct {
	SupervisorID string                  `json:"supervisorId"`
	Assignments  []service.AppAssignment `json:"assignments"`
}

type regenerateCodeReq struct {
	SupervisorID string `json:"supervisorId"`
	AppKey       string `json:"appKey"`
}

type welcomeReq struct {
	SupervisorID string `json:"supervisorId"`
	Password     string `json:"password"`
}

type checkCodeResp struct {
	Success bool `json:"success"`
	service.AccessCodeResult
}

// Login verifies credentials and hands the browser a short-lived handshake
// cookie. The session itself is only created by Handshake.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password, req.RememberMe)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	h.cookies.set(c, middleware.HandshakeCookie, res.HandshakeToken, res.MaxAge)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Login successful", "role": res.Role})
}

// Handshake exchanges a handshake token, from the body or the handshake
// cookie, for a session cookie.
func (h *AuthHandler) Handshake(c echo.Context) error {
	var req handshakeReq
	// An empty or non-JSON body is fine: the cookie may carry the token.
	_ = c.Bind(&req)
	token := strings.TrimSpace(req.Token)
	if token == "" {
		token, _ = middleware.CookieFromRequest(c, middleware.HandshakeCookie)
	}
	if token == "" {
		return fail(c, http.StatusBadRequest, "Handshake token missing")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Auth.ExchangeHandshake(ctx, token)
	h.cookies.clear(c, middleware.HandshakeCookie)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	h.cookies.set(c, middleware.SessionCookie, res.SessionToken, res.MaxAge)
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"message":    "Session created",
		"role":       res.Role,
		"redirectTo": res.RedirectTo,
	})
}

// Logout revokes the session behind the cookie, if any, and always
// succeeds.
func (h *AuthHandler) Logout(c echo.Context) error {
	token, _ := middleware.CookieFromRequest(c, middleware.SessionCookie)

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, token); err != nil {
		h.log.WarnContext(ctx, "logout failed", "error", err)
	}
	h.cookies.clear(c, middleware.SessionCookie)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Logged out"})
}

// ValidateAppAccess tells an application front end whether the current
// session may open appPath. It never returns an error status.
func (h *AuthHandler) ValidateAppAccess(c echo.Context) error {
	token, ok := middleware.CookieFromRequest(c, middleware.SessionCookie)
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{"success": false, "allowed": false, "message": "No session token found"})
	}
	appPath := c.QueryParam("appPath")
	if appPath == "" {
		return c.JSON(http.StatusOK, echo.Map{"success": false, "allowed": false, "message": "appPath query parameter is required"})
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res := h.Access.CheckAppAccess(ctx, token, appPath)
	body := echo.Map{"success": true, "allowed": res.Allowed}
	if res.Allowed {
		body["role"] = res.Role
		body["userId"] = res.UserID
	}
	return c.JSON(http.StatusOK, body)
}

// CheckAccessCode validates a nine-digit code for an application.
func (h *AuthHandler) CheckAccessCode(c echo.Context) error {
	var req checkCodeReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.AppKey) == "" || strings.TrimSpace(req.Code) == "" {
		return fail(c, http.StatusBadRequest, "appKey and code are required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res := h.Access.VerifyAccessCode(ctx, req.AppKey, req.Code)
	return c.JSON(http.StatusOK, checkCodeResp{Success: true, AccessCodeResult: res})
}

// SyncAccessCodes replaces a supervisor's code set. Admin only.
func (h *AuthHandler) SyncAccessCodes(c echo.Context) error {
	var req syncCodesReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.SupervisorID) == "" {
		return fail(c, http.StatusBadRequest, "supervisorId is required")
	}
	for _, a := range req.Assignments {
		if strings.TrimSpace(a.AppID) == "" || strings.TrimSpace(a.AppKey) == "" {
			return fail(c, http.StatusBadRequest, "every assignment needs appId and appKey")
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	codes, err := h.Access.SyncSupervisorCodes(ctx, req.SupervisorID, req.Assignments)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": codes})
}

// RegenerateAccessCode issues a new code for one supervisor app. Admin only.
func (h *AuthHandler) RegenerateAccessCode(c echo.Context) error {
	var req regenerateCodeReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.SupervisorID) == "" || strings.TrimSpace(req.AppKey) == "" {
		return fail(c, http.StatusBadRequest, "supervisorId and appKey are required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	entry, err := h.Access.RegenerateSupervisorCode(ctx, req.SupervisorID, req.AppKey)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": entry})
}

// SendSupervisorWelcome mails a supervisor their password and codes. Admin
// only.
func (h *AuthHandler) SendSupervisorWelcome(c echo.Context) error {
	var req welcomeReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.SupervisorID) == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "supervisorId and password are required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Access.SendSupervisorWelcome(ctx, req.SupervisorID, req.Password); err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Welcome email sent successfully"})
}
