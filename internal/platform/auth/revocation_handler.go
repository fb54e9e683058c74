package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterSignOutRoute registers POST /auth/logout, which revokes the
// caller's current session token.
func RegisterSignOutRoute(g *echo.Group, revocations *Revocations) {
	g.POST("/auth/logout", handleSignOut(revocations))
}

func handleSignOut(revocations *Revocations) echo.HandlerFunc {
	return func(c echo.Context) error {
		s := SessionFromContext(c.Request().Context())
		if s == nil || s.TokenID == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "no active session")
		}
		revocations.Revoke(s.TokenID, s.ExpiresAt)
		return c.NoContent(http.StatusNoContent)
	}
}
