package checkout

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carepoint/portal/internal/domain/cart"
)

type Handler struct {
	co     *Coordinator
	logger zerolog.Logger
}

func NewHandler(co *Coordinator, logger zerolog.Logger) *Handler {
	return &Handler{co: co, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/checkout", h.Checkout)
	api.GET("/checkout/notice", h.GetNotice)
}

// Checkout answers 204 for an empty cart and 201 with the bill otherwise.
func (h *Handler) Checkout(c echo.Context) error {
	res, err := h.co.Checkout(c.Request().Context(), cart.SessionID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "checkout could not be saved, please retry")
	}
	if res == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetNotice(c echo.Context) error {
	n, ok := h.co.Notice(cart.SessionID(c))
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, n)
}
