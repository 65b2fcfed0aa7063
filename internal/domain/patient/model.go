package patient

import (
	"time"

	"github.com/google/uuid"
)

// Prescription is an immutable dispensing record: once written it is never
// updated or removed from a patient's history. Medicines holds the line
// items as medicine name -> quantity dispensed; the names are weak
// references into the ledger, so deleting a medicine later does not
// invalidate the record.
type Prescription struct {
	ID        uuid.UUID      `json:"id"`
	Date      time.Time      `json:"date"`
	Medicines map[string]int `json:"medicines"`
}

// Patient is one registration, keyed by unique name. Prescriptions is
// append-only and kept in chronological (insertion) order.
type Patient struct {
	Name          string         `json:"-"`
	Age           int            `json:"age"`
	Gender        string         `json:"gender"`
	Prescriptions []Prescription `json:"prescriptions"`
}

// FindPrescription returns the prescription with the given id, if present.
func (p Patient) FindPrescription(id uuid.UUID) (Prescription, bool) {
	for _, rx := range p.Prescriptions {
		if rx.ID == id {
			return rx, true
		}
	}
	return Prescription{}, false
}
