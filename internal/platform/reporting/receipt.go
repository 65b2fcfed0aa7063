package reporting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shu-io/clinic/internal/domain/inventory"
	"github.com/shu-io/clinic/internal/domain/patient"
)

// Clinic letterhead, kept as domain configuration.
const (
	clinicName    = "LNMedico"
	clinicTagline = "Healthcare Management System"
	clinicContact = "Bhopal, Madhya Pradesh | +91-XXXXX-XXXXX | contact@lnmedico.com"
	receiptRule   = "--------------------------------------------------------------------------"
	receiptPrefix = "LNM"
)

// RenderReceipt produces the printable text receipt for one prescription.
// Unit prices come from the current ledger snapshot; a medicine that has
// since been deleted from the ledger is priced at zero rather than failing
// the receipt.
func RenderReceipt(p patient.Patient, rx patient.Prescription, meds map[string]inventory.Medicine) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n%s\n%s\n", clinicName, clinicTagline, clinicContact)
	b.WriteString(receiptRule + "\n")
	b.WriteString("PRESCRIPTION RECEIPT\n")
	fmt.Fprintf(&b, "Receipt No: %s-%s\n", receiptPrefix, rx.Date.Format("20060102150405"))
	fmt.Fprintf(&b, "Date:       %s\n", rx.Date.Format("02/01/2006 03:04 PM"))
	fmt.Fprintf(&b, "Patient:    %s\n", p.Name)
	fmt.Fprintf(&b, "Age:        %d\n", p.Age)
	fmt.Fprintf(&b, "Gender:     %s\n", p.Gender)
	b.WriteString(receiptRule + "\n")
	fmt.Fprintf(&b, "%-4s %-40s %8s %10s %10s\n", "S.No", "Medicine", "Qty", "Unit", "Total")

	names := make([]string, 0, len(rx.Medicines))
	for name := range rx.Medicines {
		names = append(names, name)
	}
	sort.Strings(names)

	var grandTotal float64
	for i, name := range names {
		qty := rx.Medicines[name]
		price := meds[name].UnitPrice // zero value when the medicine is gone
		lineTotal := price * float64(qty)
		grandTotal += lineTotal
		fmt.Fprintf(&b, "%-4d %-40s %8d %10.2f %10.2f\n", i+1, name, qty, price, lineTotal)
	}

	b.WriteString(receiptRule + "\n")
	fmt.Fprintf(&b, "%65s %10.2f\n", "Grand Total:", grandTotal)
	return b.String()
}
