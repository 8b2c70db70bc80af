package middleware

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityLog receives rejected requests. *logging.SecurityLogger
// satisfies it.
type SecurityLog interface {
	Event(ctx context.Context, event string, attrs ...any)
}

// RequireOrigin rejects state-changing requests whose Origin (or, failing
// that, Referer) is not one of allowed. Safe methods always pass, and an
// empty allow list disables the check.
func RequireOrigin(allowed []string, sec SecurityLog) echo.MiddlewareFunc {
	var origins []string
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}
			if len(origins) == 0 {
				return next(c)
			}

			header := r.Header.Get("Origin")
			if header == "" {
				header = r.Header.Get("Referer")
			}
			if header == "" {
				if sec != nil {
					sec.Event(r.Context(), "csrf_origin_missing", "path", r.URL.Path, "method", r.Method)
				}
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "Origin header required"})
			}

			origin := originOf(header)
			if !slices.Contains(origins, origin) {
				if sec != nil {
					sec.Event(r.Context(), "csrf_origin_mismatch", "path", r.URL.Path, "method", r.Method, "origin", origin)
				}
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "Origin not allowed"})
			}
			return next(c)
		}
	}
}

// originOf reduces a URL to scheme://host[:port]. Values that do not parse
// as absolute URLs are compared verbatim.
func originOf(v string) string {
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return v
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
