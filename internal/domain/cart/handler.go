package cart

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carepoint/portal/internal/domain/medication"
	"github.com/carepoint/portal/internal/platform/auth"
)

// SessionHeader carries the cart session for callers without a user id.
const SessionHeader = "X-Session-ID"

// SessionID resolves the cart session for a request: the authenticated user,
// else the X-Session-ID header. When neither is present a new id is issued
// and echoed back in the response header.
func SessionID(c echo.Context) string {
	if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
		return uid
	}
	if sid := c.Request().Header.Get(SessionHeader); sid != "" {
		return sid
	}
	sid := uuid.NewString()
	c.Response().Header().Set(SessionHeader, sid)
	return sid
}

type Handler struct {
	sessions *Sessions
	catalog  *medication.Catalog
	logger   zerolog.Logger
}

func NewHandler(sessions *Sessions, catalog *medication.Catalog, logger zerolog.Logger) *Handler {
	return &Handler{sessions: sessions, catalog: catalog, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/cart", h.GetCart)
	api.DELETE("/cart", h.ClearCart)
	api.POST("/cart/items", h.AddItem)
	api.PATCH("/cart/items/:id", h.AdjustItem)
	api.DELETE("/cart/items/:id", h.RemoveItem)
}

func (h *Handler) GetCart(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessions.Snapshot(SessionID(c)))
}

type addRequest struct {
	MedicineID string `json:"medicineId"`
}

// AddItem resolves the medicine from the catalog and adds one unit.
// Out-of-stock medicines are refused.
func (h *Handler) AddItem(c echo.Context) error {
	var req addRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.MedicineID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "medicineId is required")
	}

	m, err := h.catalog.Get(c.Request().Context(), req.MedicineID)
	if errors.Is(err, medication.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "medicine not found")
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("resolve medicine for cart")
		return echo.NewHTTPError(http.StatusInternalServerError, "medicine storage unavailable")
	}
	if !m.InStock {
		return echo.NewHTTPError(http.StatusConflict, "medicine is out of stock")
	}

	sid := SessionID(c)
	var snap Snapshot
	h.sessions.With(sid, func(cart *Cart) error {
		cart.Add(*m)
		snap = cart.Snapshot()
		return nil
	})
	return c.JSON(http.StatusOK, snap)
}

type adjustRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) AdjustItem(c echo.Context) error {
	var req adjustRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var snap Snapshot
	h.sessions.With(SessionID(c), func(cart *Cart) error {
		cart.AdjustQuantity(c.Param("id"), req.Delta)
		snap = cart.Snapshot()
		return nil
	})
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) RemoveItem(c echo.Context) error {
	var snap Snapshot
	h.sessions.With(SessionID(c), func(cart *Cart) error {
		cart.Remove(c.Param("id"))
		snap = cart.Snapshot()
		return nil
	})
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) ClearCart(c echo.Context) error {
	h.sessions.With(SessionID(c), func(cart *Cart) error {
		cart.Clear()
		return nil
	})
	return c.NoContent(http.StatusNoContent)
}
