package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health answers liveness checks. It never touches a dependency.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Check is one dependency pinged by Readiness.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Readiness returns a handler that pings every check with a short timeout.
// It answers 503 with the failing check names while any of them is down.
func Readiness(checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		ready := true
		for _, ch := range checks {
			if err := ch.Ping(ctx); err != nil {
				status[ch.Name] = "down"
				ready = false
				continue
			}
			status[ch.Name] = "up"
		}
		if !ready {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"success": false, "checks": status})
		}
		return c.JSON(http.StatusOK, echo.Map{"success": true, "checks": status})
	}
}
