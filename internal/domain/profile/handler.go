package profile

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carepoint/portal/internal/platform/auth"
	"github.com/carepoint/portal/internal/platform/storage"
)

type Handler struct {
	wizard *Wizard
	logger zerolog.Logger
}

func NewHandler(wizard *Wizard, logger zerolog.Logger) *Handler {
	return &Handler{wizard: wizard, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/profile", auth.RequireSession())
	g.GET("", h.GetProfile)
	g.PUT("/steps/:step", h.SubmitStep)
	g.POST("/back", h.Back)
	g.POST("/complete", h.Complete)
}

func (h *Handler) GetProfile(c echo.Context) error {
	p, err := h.wizard.Get(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SubmitStep(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 64<<10))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read body")
	}
	ctx := c.Request().Context()
	p, err := h.wizard.SubmitStep(ctx, auth.UserIDFromContext(ctx), Step(c.Param("step")), json.RawMessage(body))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Back(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.wizard.Back(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Complete(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.wizard.Complete(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) fail(err error) error {
	switch {
	case storage.IsStorageError(err):
		h.logger.Error().Err(err).Msg("profile storage failure")
		return echo.NewHTTPError(http.StatusInternalServerError, "profile storage unavailable")
	case errors.Is(err, ErrStepAhead), errors.Is(err, ErrIncomplete):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
