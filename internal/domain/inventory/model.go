package inventory

// LowStockThreshold is the quantity below which a medicine is flagged for
// reorder. Spelled as a constant of the ledger, not a tunable.
const LowStockThreshold = 10

// Medicine is one entry in the stock ledger. Entries are keyed by their
// unique name; the Name field is rehydrated from the document key on load
// so the stored snapshot stays a plain name -> {quantity, price} mapping.
type Medicine struct {
	Name      string  `json:"-"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"price"`
}

// Low reports whether the medicine is below the reorder threshold.
func (m Medicine) Low() bool {
	return m.Quantity < LowStockThreshold
}
