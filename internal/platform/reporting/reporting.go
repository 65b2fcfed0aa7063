// Package reporting renders read-only reports and receipts from ledger and
// registry snapshots. It never mutates clinic state; everything it consumes
// is a copy handed over by the owning service.
package reporting

import (
	"errors"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/shu-io/clinic/internal/domain/inventory"
	"github.com/shu-io/clinic/internal/domain/patient"
)

// InventoryReader is the read-only slice of the ledger the reports need.
type InventoryReader interface {
	Snapshot() map[string]inventory.Medicine
	LowStock() map[string]inventory.Medicine
}

// PatientReader is the read-only slice of the registry the receipts need.
type PatientReader interface {
	GetPatientHistory(name string) (patient.Patient, error)
}

// InventoryReport is a stock-and-valuation summary of the whole ledger.
type InventoryReport struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Items       int          `json:"items"`
	TotalUnits  int          `json:"total_units"`
	StockValue  float64      `json:"stock_value"`
	Medicines   []ReportLine `json:"medicines"`
}

// LowStockReport lists every medicine below the reorder threshold.
type LowStockReport struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Threshold   int          `json:"threshold"`
	Medicines   []ReportLine `json:"medicines"`
}

// ReportLine is one medicine row in a report.
type ReportLine struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"price"`
	Value     float64 `json:"value"`
}

func reportLines(meds map[string]inventory.Medicine) []ReportLine {
	lines := make([]ReportLine, 0, len(meds))
	for _, m := range meds {
		lines = append(lines, ReportLine{
			Name:      m.Name,
			Quantity:  m.Quantity,
			UnitPrice: m.UnitPrice,
			Value:     float64(m.Quantity) * m.UnitPrice,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })
	return lines
}

// BuildInventoryReport summarizes a ledger snapshot.
func BuildInventoryReport(meds map[string]inventory.Medicine) InventoryReport {
	report := InventoryReport{
		GeneratedAt: time.Now().UTC(),
		Items:       len(meds),
		Medicines:   reportLines(meds),
	}
	for _, line := range report.Medicines {
		report.TotalUnits += line.Quantity
		report.StockValue += line.Value
	}
	return report
}

// BuildLowStockReport lists the ledger's low-stock subset.
func BuildLowStockReport(low map[string]inventory.Medicine) LowStockReport {
	return LowStockReport{
		GeneratedAt: time.Now().UTC(),
		Threshold:   inventory.LowStockThreshold,
		Medicines:   reportLines(low),
	}
}

// Handler exposes the report and receipt endpoints.
type Handler struct {
	inv      InventoryReader
	patients PatientReader
}

func NewHandler(inv InventoryReader, patients PatientReader) *Handler {
	return &Handler{inv: inv, patients: patients}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reports/inventory", h.InventoryReport)
	api.GET("/reports/low-stock", h.LowStockReport)
	api.GET("/patients/:name/prescriptions/:id/receipt", h.PrescriptionReceipt)
}

func (h *Handler) InventoryReport(c echo.Context) error {
	return c.JSON(http.StatusOK, BuildInventoryReport(h.inv.Snapshot()))
}

func (h *Handler) LowStockReport(c echo.Context) error {
	return c.JSON(http.StatusOK, BuildLowStockReport(h.inv.LowStock()))
}

func (h *Handler) PrescriptionReceipt(c echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		name = c.Param("name")
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	p, err := h.patients.GetPatientHistory(name)
	if err != nil {
		if errors.Is(err, patient.ErrPatientNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription id")
	}
	rx, ok := p.FindPrescription(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
	}

	receipt := RenderReceipt(p, rx, h.inv.Snapshot())
	return c.Blob(http.StatusOK, echo.MIMETextPlainCharsetUTF8, []byte(receipt))
}
