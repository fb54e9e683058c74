package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RoleKey is the echo context key under which RequireRole stores the
// resolved role for later middleware such as the audit log.
const RoleKey = "role"

// RequireRole returns middleware that lets the request through only when the
// caller's current role is one of roles.
func RequireRole(g *Guard, roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := g.Authorize(c.Request().Context(), roles...)
			c.Set(RoleKey, string(d.Role))
			if !d.OK {
				return echo.NewHTTPError(http.StatusForbidden, d.Reason)
			}
			return next(c)
		}
	}
}

// RequireSession rejects requests that carry no authenticated session.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if SessionFromContext(c.Request().Context()) == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}
