package patient

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/shu-io/clinic/internal/domain/inventory"
	"github.com/shu-io/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.AddPatient)
	api.GET("/patients/:name", h.GetPatientHistory)
	api.POST("/patients/:name/prescriptions", h.AddPrescription)
}

// nameParam resolves the patient name from the request, preferring an
// explicit ?name= query parameter so names containing a slash stay
// addressable.
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

type patientRequest struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

type patientResponse struct {
	Name          string         `json:"name"`
	Age           int            `json:"age"`
	Gender        string         `json:"gender"`
	Prescriptions []Prescription `json:"prescriptions"`
}

func toResponse(p Patient) patientResponse {
	return patientResponse{Name: p.Name, Age: p.Age, Gender: p.Gender, Prescriptions: p.Prescriptions}
}

func (h *Handler) AddPatient(c echo.Context) error {
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddPatient(c.Request().Context(), req.Name, req.Age, req.Gender); err != nil {
		switch {
		case errors.Is(err, ErrDuplicatePatient):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrPersist):
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	p, err := h.svc.GetPatientHistory(req.Name)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, toResponse(p))
}

func (h *Handler) GetPatientHistory(c echo.Context) error {
	p, err := h.svc.GetPatientHistory(nameParam(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, toResponse(p))
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	all := h.svc.ListPatients()

	total := len(all)
	start, end := pg.Window(total)
	items := make([]patientResponse, 0, end-start)
	for _, p := range all[start:end] {
		items = append(items, toResponse(p))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type prescriptionRequest struct {
	Medicines map[string]int `json:"medicines"`
}

func (h *Handler) AddPrescription(c echo.Context) error {
	var req prescriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rx, err := h.svc.AddPrescription(c.Request().Context(), nameParam(c), req.Medicines)
	if err != nil {
		switch {
		case errors.Is(err, ErrPatientNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, inventory.ErrInsufficientStock):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ErrPersist), errors.Is(err, inventory.ErrPersist):
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, rx)
}
