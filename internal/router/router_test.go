package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/metavr/access-service/internal/config"
	"github.com/metavr/access-service/internal/handler"
	"github.com/metavr/access-service/internal/middleware"
	"github.com/metavr/access-service/internal/utils"
)

type onlySupervisor struct{}

func (onlySupervisor) ValidateSession(_ context.Context, token string) (*utils.TokenClaims, error) {
	if token == "sup" {
		return &utils.TokenClaims{UserID: "sup-1", Role: "supervisor"}, nil
	}
	return nil, errors.New("invalid")
}

func newServer() *echo.Echo {
	e := echo.New()
	g := Guards{
		Sessions: onlySupervisor{},
		Origin:   middleware.RequireOrigin([]string{"https://dash.metavr.test"}, nil),
	}
	RegisterRoutes(e, handler.Readiness(), http.NotFoundHandler())
	RegisterAuth(e, handler.NewAuthHandler(config.Config{}, nil, nil, nil), g)
	RegisterUserAccess(e, handler.NewUserAccessHandler(nil, nil), g)
	return e
}

func do(e *echo.Echo, method, path, cookie, origin string) int {
	req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestHealthz(t *testing.T) {
	e := newServer()
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz", "", ""))
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/readyz", "", ""))
}

func TestAdminRoutesNeedAdminSession(t *testing.T) {
	e := newServer()
	const origin = "https://dash.metavr.test"
	for _, path := range []string{"/auth/access-codes/sync", "/auth/access-codes/regenerate", "/auth/supervisors/welcome-email"} {
		assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodPost, path, "", origin), path)
		assert.Equal(t, http.StatusForbidden, do(e, http.MethodPost, path, "session=sup", origin), path)
	}
}

func TestAdminRoutesCheckOrigin(t *testing.T) {
	e := newServer()
	for _, path := range []string{"/auth/access-codes/sync", "/auth/access-codes/regenerate", "/auth/supervisors/welcome-email"} {
		assert.Equal(t, http.StatusForbidden, do(e, http.MethodPost, path, "session=admin", ""), path)
		assert.Equal(t, http.StatusForbidden, do(e, http.MethodPost, path, "session=admin", "https://evil.test"), path)
	}
}

func TestSupervisorWritesCheckOriginFirst(t *testing.T) {
	e := newServer()
	assert.Equal(t, http.StatusForbidden, do(e, http.MethodPost, "/user-access/approve", "session=sup", "https://evil.test"))
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodPost, "/user-access/approve", "", "https://dash.metavr.test"))
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/user-access/requests", "session=nope", ""))
}

func TestLoginNeedsOrigin(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, do(newServer(), http.MethodPost, "/auth/login", "", ""))
}
