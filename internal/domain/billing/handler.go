package billing

import (
	"errors"
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
	// Read endpoints and payment: any signed-in user
	api.GET("/bills", h.ListBills)
	api.GET("/bills/summary", h.GetSummary)
	api.GET("/bills/:id", h.GetBill)
	api.POST("/bills/:id/pay", h.PayBill)

	// Write endpoints: admin
	writeGroup := api.Group("", auth.RequireRole(h.guard, auth.RoleAdmin))
	writeGroup.POST("/bills", h.CreateBill)
	writeGroup.PATCH("/bills/:id/status", h.UpdateStatus)
	writeGroup.DELETE("/bills/:id", h.DeleteBill)
}

func (h *Handler) ListBills(c echo.Context) error {
	bills, err := h.store.List(c.Request().Context())
	if err != nil {
		return h.storageFailure(err)
	}
	if status := c.QueryParam("status"); status != "" {
		filtered := make([]Bill, 0, len(bills))
		for _, b := range bills {
			if string(b.Status) == status {
				filtered = append(filtered, b)
			}
		}
		bills = filtered
	}
	return c.JSON(http.StatusOK, pagination.Respond(bills, pagination.FromContext(c)))
}

func (h *Handler) GetSummary(c echo.Context) error {
	sum, err := h.store.Summary(c.Request().Context())
	if err != nil {
		return h.storageFailure(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) GetBill(c echo.Context) error {
	b, err := h.store.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "bill not found")
	}
	if err != nil {
		return h.storageFailure(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) CreateBill(c echo.Context) error {
	var nb NewBill
	if err := c.Bind(&nb); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.store.Add(c.Request().Context(), nb)
	if err != nil {
		if storage.IsStorageError(err) {
			return h.storageFailure(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, b)
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
		if storage.IsStorageError(err) {
			return h.storageFailure(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// PayBill marks a bill as paid on behalf of the patient.
func (h *Handler) PayBill(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.store.Get(ctx, c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "bill not found")
		}
		return h.storageFailure(err)
	}
	if err := h.store.SetStatus(ctx, c.Param("id"), StatusPaid); err != nil {
		return h.storageFailure(err)
	}
	b, err := h.store.Get(ctx, c.Param("id"))
	if err != nil {
		return h.storageFailure(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) DeleteBill(c echo.Context) error {
	if err := h.store.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return h.storageFailure(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) storageFailure(err error) error {
	h.logger.Error().Err(err).Msg("bill storage failure")
	return echo.NewHTTPError(http.StatusInternalServerError, "bill storage unavailable")
}
