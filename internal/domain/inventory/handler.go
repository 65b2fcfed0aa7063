package inventory

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/shu-io/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/medicines", h.ListMedicines)
	api.POST("/medicines", h.AddMedicine)
	api.GET("/medicines/:name", h.GetMedicine)
	api.PUT("/medicines/:name/quantity", h.UpdateQuantity)
	api.DELETE("/medicines/:name", h.DeleteMedicine)
	api.GET("/medicines/:name/availability", h.CheckAvailability)
}

// nameParam resolves the medicine name from the request: an explicit ?name=
// query parameter wins, otherwise the :name path segment with percent-escapes
// decoded. The query form exists because catalog names containing a slash,
// such as "Paracetamol 150mg/ml", cannot travel as a single path segment.
func nameParam(c echo.Context) string {
	if name := c.QueryParam("name"); name != "" {
		return name
	}
	raw := c.Param("name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrDuplicateMedicine):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrMedicineNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInsufficientStock):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type medicineRequest struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"price"`
}

type medicineResponse struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"price"`
}

func toResponse(m Medicine) medicineResponse {
	return medicineResponse{Name: m.Name, Quantity: m.Quantity, UnitPrice: m.UnitPrice}
}

func (h *Handler) AddMedicine(c echo.Context) error {
	var req medicineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if err := h.svc.AddMedicine(c.Request().Context(), req.Name, req.Quantity, req.UnitPrice); err != nil {
		if errors.Is(err, ErrDuplicateMedicine) || errors.Is(err, ErrPersist) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.GetMedicine(req.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, toResponse(m))
}

func (h *Handler) GetMedicine(c echo.Context) error {
	m, err := h.svc.GetMedicine(nameParam(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toResponse(m))
}

func (h *Handler) ListMedicines(c echo.Context) error {
	pg := pagination.FromContext(c)
	all := h.svc.ListMedicines()

	total := len(all)
	start, end := pg.Window(total)
	items := make([]medicineResponse, 0, end-start)
	for _, m := range all[start:end] {
		items = append(items, toResponse(m))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) UpdateQuantity(c echo.Context) error {
	var req updateQuantityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	name := nameParam(c)
	if err := h.svc.UpdateQuantity(c.Request().Context(), name, req.Quantity); err != nil {
		if errors.Is(err, ErrMedicineNotFound) || errors.Is(err, ErrPersist) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.GetMedicine(name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toResponse(m))
}

func (h *Handler) DeleteMedicine(c echo.Context) error {
	if err := h.svc.DeleteMedicine(c.Request().Context(), nameParam(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CheckAvailability(c echo.Context) error {
	qty, err := strconv.Atoi(c.QueryParam("qty"))
	if err != nil || qty <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "qty must be a positive integer")
	}
	name := nameParam(c)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"name":      name,
		"qty":       qty,
		"available": h.svc.CheckAvailability(name, qty),
	})
}
