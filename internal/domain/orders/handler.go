package orders

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carepoint/portal/internal/platform/auth"
	"github.com/carepoint/portal/internal/platform/storage"
	"github.com/carepoint/portal/pkg/pagination"
)

type Handler struct {
	store  *Store
	guard  *auth.Guard
	logger zerolog.Logger
}

func NewHandler(store *Store, guard *auth.Guard, logger zerolog.Logger) *Handler {
	return &Handler{store: store, guard: guard, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/orders", h.ListOrders)

	// Write endpoints: doctor, admin
	writeGroup := api.Group("", auth.RequireRole(h.guard, auth.RoleDoctor, auth.RoleAdmin))
	writeGroup.POST("/orders", h.CreateOrder)
	writeGroup.PATCH("/orders/:id/status", h.UpdateStatus)

	adminGroup := api.Group("", auth.RequireRole(h.guard, auth.RoleAdmin))
	adminGroup.PUT("/orders", h.ReplaceOrders)
}

func (h *Handler) ListOrders(c echo.Context) error {
	orders, err := h.store.List(c.Request().Context())
	if err != nil {
		return h.storageFailure(err)
	}
	if status := c.QueryParam("status"); status != "" {
		filtered := make([]PrescriptionOrder, 0, len(orders))
		for _, o := range orders {
			if string(o.Status) == status {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	return c.JSON(http.StatusOK, pagination.Respond(orders, pagination.FromContext(c)))
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var no NewOrder
	if err := c.Bind(&no); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.store.Add(c.Request().Context(), no)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusCreated, o)
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.store.SetStatus(c.Request().Context(), c.Param("id"), req.Status); err != nil {
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ReplaceOrders overwrites the collection with the request body.
func (h *Handler) ReplaceOrders(c echo.Context) error {
	var orders []PrescriptionOrder
	if err := (&echo.DefaultBinder{}).BindBody(c, &orders); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.store.SaveAll(c.Request().Context(), orders); err != nil {
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) fail(err error) error {
	if storage.IsStorageError(err) {
		return h.storageFailure(err)
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func (h *Handler) storageFailure(err error) error {
	h.logger.Error().Err(err).Msg("order storage failure")
	return echo.NewHTTPError(http.StatusInternalServerError, "order storage unavailable")
}
