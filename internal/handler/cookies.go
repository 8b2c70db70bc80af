package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// cookieWriter issues the handshake and session cookies. Both are
// httpOnly, SameSite=Strict and scoped to "/"; Secure is set in production.
type cookieWriter struct {
	secure bool
}

func (w cookieWriter) set(c echo.Context, name, value string, maxAge time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   w.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (w cookieWriter) clear(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   w.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
