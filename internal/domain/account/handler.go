// Package account exposes the caller's role and the admin role-management endpoint.
package account

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carepoint/portal/internal/platform/auth"
	"github.com/carepoint/portal/internal/platform/identity"
)

type Handler struct {
	guard  *auth.Guard
	logger zerolog.Logger
}

func NewHandler(guard *auth.Guard, logger zerolog.Logger) *Handler {
	return &Handler{guard: guard, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/me", h.Me)
	api.GET("/me/authorize", h.Authorize)
	api.PUT("/admin/users/:id/role", h.UpdateRole)
}

// Me is the caller's identity and role badge.
type Me struct {
	UserID  string           `json:"userId"`
	Email   string           `json:"email,omitempty"`
	Display auth.RoleDisplay `json:"role"`
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	me := Me{Display: auth.Display(h.guard.CurrentRole(ctx))}
	if s := auth.SessionFromContext(ctx); s != nil {
		me.UserID = s.UserID
		me.Email = s.Email
	}
	return c.JSON(http.StatusOK, me)
}

// Authorize answers whether the caller holds one of the ?role= values.
func (h *Handler) Authorize(c echo.Context) error {
	var allowed []auth.Role
	for _, v := range c.QueryParams()["role"] {
		r, ok := auth.ParseRole(v)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid role: "+v)
		}
		allowed = append(allowed, r)
	}
	if len(allowed) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one role is required")
	}
	return c.JSON(http.StatusOK, h.guard.Authorize(c.Request().Context(), allowed...))
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) UpdateRole(c echo.Context) error {
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	role, ok := auth.ParseRole(req.Role)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role: "+req.Role)
	}

	err := h.guard.UpdateRole(c.Request().Context(), c.Param("id"), role)
	var pe *identity.ProviderError
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, auth.Display(role))
	case errors.Is(err, auth.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, identity.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	case errors.As(err, &pe):
		return echo.NewHTTPError(http.StatusBadGateway, pe.Message)
	default:
		h.logger.Error().Err(err).Msg("role update")
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
}
