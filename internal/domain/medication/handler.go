package medication

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
	catalog *Catalog
	guard   *auth.Guard
	logger  zerolog.Logger
}

func NewHandler(catalog *Catalog, guard *auth.Guard, logger zerolog.Logger) *Handler {
	return &Handler{catalog: catalog, guard: guard, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/medicines", h.ListMedicines)
	api.GET("/medicines/categories", h.ListCategories)
	api.GET("/medicines/:id", h.GetMedicine)

	writeGroup := api.Group("", auth.RequireRole(h.guard, auth.RoleAdmin))
	writeGroup.POST("/medicines", h.CreateMedicine)
	writeGroup.PATCH("/medicines/:id/stock", h.UpdateStock)
}

// ListMedicines supports ?q= search and ?category= filtering.
func (h *Handler) ListMedicines(c echo.Context) error {
	items, err := h.catalog.List(c.Request().Context())
	if err != nil {
		return h.storageFailure(err)
	}
	items = Filter(items, c.QueryParam("q"))
	if cat := c.QueryParam("category"); cat != "" {
		byCategory := make([]Medicine, 0, len(items))
		for _, m := range items {
			if m.Category == cat {
				byCategory = append(byCategory, m)
			}
		}
		items = byCategory
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pagination.FromContext(c)))
}

func (h *Handler) ListCategories(c echo.Context) error {
	items, err := h.catalog.List(c.Request().Context())
	if err != nil {
		return h.storageFailure(err)
	}
	return c.JSON(http.StatusOK, Categories(items))
}

func (h *Handler) GetMedicine(c echo.Context) error {
	m, err := h.catalog.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "medicine not found")
	}
	if err != nil {
		return h.storageFailure(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) CreateMedicine(c echo.Context) error {
	var nm NewMedicine
	if err := c.Bind(&nm); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.catalog.Add(c.Request().Context(), nm)
	if err != nil {
		if storage.IsStorageError(err) {
			return h.storageFailure(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

type stockRequest struct {
	InStock *bool `json:"inStock"`
}

func (h *Handler) UpdateStock(c echo.Context) error {
	var req stockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.InStock == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "inStock is required")
	}
	if err := h.catalog.SetStock(c.Request().Context(), c.Param("id"), *req.InStock); err != nil {
		return h.storageFailure(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) storageFailure(err error) error {
	h.logger.Error().Err(err).Msg("medicine storage failure")
	return echo.NewHTTPError(http.StatusInternalServerError, "medicine storage unavailable")
}
