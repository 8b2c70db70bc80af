package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/metavr/access-service/internal/middleware"
	"github.com/metavr/access-service/internal/model"
	"github.com/metavr/access-service/internal/service"
)

// UserAccess is the request workflow implemented by
// *service.UserAccessService.
type UserAccess interface {
	SubmitAccessRequest(ctx context.Context, in service.SubmitAccessInput) (service.SubmitResult, error)
	ListPendingRequests(ctx context.Context, supervisorID string) (map[string][]service.PendingRequest, error)
	ListRequestHistory(ctx context.Context, supervisorID string, limit int) ([]model.AccessRequest, error)
	ApproveAccessRequest(ctx context.Context, supervisorID, requestID string) (string, error)
	RejectAccessRequest(ctx context.Context, supervisorID, requestID, reason string) error
	RegenerateUserAccessCode(ctx context.Context, supervisorID, userID, appKey string) (string, error)
	ToggleUserAppAccess(ctx context.Context, supervisorID, userID, appKey string, enabled bool) error
	ResendAccessCode(ctx context.Context, email, appKey string) error
	ListUsersWithAccess(ctx context.Context, supervisorID string) ([]service.UserWithAccess, error)
}

// UserAccessHandler serves /user-access. Public endpoints are request and
// resend-code; everything else runs behind a supervisor session.
type UserAccessHandler struct {
	Users UserAccess
	log   *slog.Logger
}

func NewUserAccessHandler(users UserAccess, log *slog.Logger) *UserAccessHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UserAccessHandler{Users: users, log: log}
}

type submitReq struct {
	Email  string   `json:"email"`
	AppIDs []string `json:"appIds"`
	Name   string   `json:"name"`
	Phone  string   `json:"phone"`
}

type reviewReq struct {
	RequestID string `json:"requestId"`
	Reason    string `json:"reason"`
}

type userAppReq struct {
	UserID  string `json:"userId"`
	AppKey  string `json:"appKey"`
	Enabled *bool  `json:"enabled"`
}

type resendReq struct {
	Email  string `json:"email"`
	AppKey string `json:"appKey"`
}

type submitResp struct {
	Success bool `json:"success"`
	service.SubmitResult
}

// Submit records a public access request.
func (h *UserAccessHandler) Submit(c echo.Context) error {
	var req submitReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if !strings.Contains(req.Email, "@") {
		return fail(c, http.StatusBadRequest, "a valid email is required")
	}
	if len(req.AppIDs) == 0 {
		return fail(c, http.StatusBadRequest, "At least one app must be selected")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Users.SubmitAccessRequest(ctx, service.SubmitAccessInput{
		Email: req.Email, AppIDs: req.AppIDs, Name: req.Name, Phone: req.Phone,
	})
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, submitResp{Success: true, SubmitResult: res})
}

// ListPending lists the pending requests the supervisor may review.
func (h *UserAccessHandler) ListPending(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	data, err := h.Users.ListPendingRequests(ctx, middleware.UserID(c))
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": data})
}

// ListHistory lists recent requests of any status. ?limit is optional.
func (h *UserAccessHandler) ListHistory(c echo.Context) error {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil {
		limit = 0
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	data, err := h.Users.ListRequestHistory(ctx, middleware.UserID(c), limit)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": data})
}

func (h *UserAccessHandler) Approve(c echo.Context) error {
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.RequestID) == "" {
		return fail(c, http.StatusBadRequest, "requestId is required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	userID, err := h.Users.ApproveAccessRequest(ctx, middleware.UserID(c), req.RequestID)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Access request approved and access code sent via email",
		"userId":  userID,
	})
}

func (h *UserAccessHandler) Reject(c echo.Context) error {
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.RequestID) == "" {
		return fail(c, http.StatusBadRequest, "requestId is required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Users.RejectAccessRequest(ctx, middleware.UserID(c), req.RequestID, req.Reason); err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Access request rejected and notification sent via email"})
}

// RegenerateCode replaces a managed user's code and mails it.
func (h *UserAccessHandler) RegenerateCode(c echo.Context) error {
	var req userAppReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.AppKey) == "" {
		return fail(c, http.StatusBadRequest, "userId and appKey are required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	code, err := h.Users.RegenerateUserAccessCode(ctx, middleware.UserID(c), req.UserID, req.AppKey)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "code": code, "message": "Access code regenerated and sent via email"})
}

// ToggleAccess pauses or resumes a managed user's grant.
func (h *UserAccessHandler) ToggleAccess(c echo.Context) error {
	var req userAppReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.AppKey) == "" || req.Enabled == nil {
		return fail(c, http.StatusBadRequest, "userId, appKey and enabled are required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	enabled := *req.Enabled
	if err := h.Users.ToggleUserAppAccess(ctx, middleware.UserID(c), req.UserID, req.AppKey, enabled); err != nil {
		return serviceError(c, h.log, err)
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "App access " + state + " successfully"})
}

// ResendCode mails a user their approved code again. Public.
func (h *UserAccessHandler) ResendCode(c echo.Context) error {
	var req resendReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Users.ResendAccessCode(ctx, req.Email, req.AppKey); err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Access code has been sent to your email address"})
}

// ListUsers lists users holding approved codes for the supervisor's apps.
func (h *UserAccessHandler) ListUsers(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	data, err := h.Users.ListUsersWithAccess(ctx, middleware.UserID(c))
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": data})
}
