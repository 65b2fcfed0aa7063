package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrDuplicateMedicine = errors.New("medicine already exists")
	ErrMedicineNotFound  = errors.New("medicine not found")
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrPersist marks a snapshot write failure. It is a fault of the store,
	// not of the request, and handlers map it to a server error.
	ErrPersist = errors.New("persist medicines snapshot")
)

// Service is the authoritative stock and pricing state. All reads and writes
// go through a single mutex, and every mutation replaces the in-memory map
// only after the new snapshot has been persisted, so callers never observe a
// state the store does not hold and a failed save leaves nothing behind.
type Service struct {
	mu   sync.Mutex
	repo Repository
	meds map[string]Medicine
}

// NewService loads the ledger from the repository. A repository that has no
// medicines document yet is seeded with the default catalog, which is
// persisted immediately so the seed survives a restart, matching a fresh
// clinic install.
func NewService(ctx context.Context, repo Repository) (*Service, error) {
	meds, found, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load medicines: %w", err)
	}
	if !found {
		meds = DefaultCatalog()
		if err := repo.Save(ctx, meds); err != nil {
			return nil, fmt.Errorf("seed medicines: %w", err)
		}
	}
	return &Service{repo: repo, meds: meds}, nil
}

// commit persists next and, only on success, makes it the current state.
func (s *Service) commit(ctx context.Context, next map[string]Medicine) error {
	if err := s.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.meds = next
	return nil
}

func (s *Service) clone() map[string]Medicine {
	next := make(map[string]Medicine, len(s.meds))
	for name, m := range s.meds {
		next[name] = m
	}
	return next
}

// AddMedicine inserts a new ledger entry.
func (s *Service) AddMedicine(ctx context.Context, name string, quantity int, unitPrice float64) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if quantity < 0 {
		return fmt.Errorf("quantity must not be negative")
	}
	if unitPrice < 0 {
		return fmt.Errorf("price must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meds[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMedicine, name)
	}
	next := s.clone()
	next[name] = Medicine{Name: name, Quantity: quantity, UnitPrice: unitPrice}
	return s.commit(ctx, next)
}

// UpdateQuantity overwrites the stock level of an existing medicine.
func (s *Service) UpdateQuantity(ctx context.Context, name string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("quantity must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meds[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMedicineNotFound, name)
	}
	m.Quantity = quantity
	next := s.clone()
	next[name] = m
	return s.commit(ctx, next)
}

// DeleteMedicine removes a ledger entry. Prescription history that references
// the name is untouched; there is no cascade.
func (s *Service) DeleteMedicine(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meds[name]; !ok {
		return fmt.Errorf("%w: %s", ErrMedicineNotFound, name)
	}
	next := s.clone()
	delete(next, name)
	return s.commit(ctx, next)
}

// GetMedicine looks up a single entry.
func (s *Service) GetMedicine(name string) (Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meds[name]
	if !ok {
		return Medicine{}, fmt.Errorf("%w: %s", ErrMedicineNotFound, name)
	}
	return m, nil
}

// ListMedicines returns all entries sorted by name.
func (s *Service) ListMedicines() []Medicine {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]Medicine, 0, len(s.meds))
	for _, m := range s.meds {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// CheckAvailability reports whether at least requiredQty units of the named
// medicine are in stock. An unknown name is simply not available, never an
// error.
func (s *Service) CheckAvailability(name string, requiredQty int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available(name, requiredQty)
}

func (s *Service) available(name string, requiredQty int) bool {
	m, ok := s.meds[name]
	return ok && m.Quantity >= requiredQty
}

// DeductQuantity removes qty units from the named medicine if, and only if,
// that much stock is available. The availability check and the decrement
// happen under the same lock hold, so quantity can never go negative. The
// returned bool mirrors CheckAvailability; the error is reserved for
// persistence failures, after which stock is unchanged.
func (s *Service) DeductQuantity(ctx context.Context, name string, qty int) (bool, error) {
	if qty <= 0 {
		return false, fmt.Errorf("quantity must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available(name, qty) {
		return false, nil
	}
	m := s.meds[name]
	m.Quantity -= qty
	next := s.clone()
	next[name] = m
	if err := s.commit(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// DeductAll atomically removes every requested line item. All items are
// validated before any is deducted, and the whole deduction persists as one
// snapshot write; either every quantity is applied or none is. A shortfall
// on any item aborts with ErrInsufficientStock naming the medicine.
func (s *Service) DeductAll(ctx context.Context, items map[string]int) error {
	if len(items) == 0 {
		return fmt.Errorf("no line items")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, qty := range items {
		if qty <= 0 {
			return fmt.Errorf("quantity for %s must be positive", name)
		}
		if !s.available(name, qty) {
			return fmt.Errorf("%w: %s", ErrInsufficientStock, name)
		}
	}
	next := s.clone()
	for name, qty := range items {
		m := next[name]
		m.Quantity -= qty
		next[name] = m
	}
	return s.commit(ctx, next)
}

// Restock adds quantities back to the ledger. It is the compensation path
// for a prescription whose history append failed after DeductAll committed;
// items whose medicine has since been deleted are skipped.
func (s *Service) Restock(ctx context.Context, items map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.clone()
	for name, qty := range items {
		m, ok := next[name]
		if !ok {
			continue
		}
		m.Quantity += qty
		next[name] = m
	}
	return s.commit(ctx, next)
}

// LowStock returns every entry with quantity below LowStockThreshold.
func (s *Service) LowStock() map[string]Medicine {
	s.mu.Lock()
	defer s.mu.Unlock()
	low := map[string]Medicine{}
	for name, m := range s.meds {
		if m.Low() {
			low[name] = m
		}
	}
	return low
}

// Snapshot returns a copy of the whole ledger for read-only consumers such
// as the report renderer.
func (s *Service) Snapshot() map[string]Medicine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clone()
}
