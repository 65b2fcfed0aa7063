package patient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDuplicatePatient = errors.New("patient already exists")
	ErrPatientNotFound  = errors.New("patient not found")

	// ErrPersist marks a snapshot write failure. It is a fault of the store,
	// not of the request, and handlers map it to a server error.
	ErrPersist = errors.New("persist patients snapshot")
)

// StockLedger is the slice of the inventory service the registry depends on.
// The registry never mutates stock directly; every deduction goes through
// the ledger's own atomic operations, which check availability and commit
// under a single lock hold.
type StockLedger interface {
	DeductAll(ctx context.Context, items map[string]int) error
	Restock(ctx context.Context, items map[string]int) error
}

// Service owns patient identity and prescription history, and orchestrates
// the prescription-fulfillment transaction against the ledger.
type Service struct {
	mu       sync.Mutex
	repo     Repository
	ledger   StockLedger
	patients map[string]Patient

	now func() time.Time
}

func NewService(ctx context.Context, repo Repository, ledger StockLedger) (*Service, error) {
	patients, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	return &Service{repo: repo, ledger: ledger, patients: patients, now: time.Now}, nil
}

func (s *Service) commit(ctx context.Context, next map[string]Patient) error {
	if err := s.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.patients = next
	return nil
}

func (s *Service) clone() map[string]Patient {
	next := make(map[string]Patient, len(s.patients))
	for name, p := range s.patients {
		next[name] = p
	}
	return next
}

// AddPatient registers a new patient with an empty prescription history.
func (s *Service) AddPatient(ctx context.Context, name string, age int, gender string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if age < 0 {
		return fmt.Errorf("age must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patients[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePatient, name)
	}
	next := s.clone()
	next[name] = Patient{Name: name, Age: age, Gender: gender, Prescriptions: []Prescription{}}
	return s.commit(ctx, next)
}

// AddPrescription fulfils a prescription for the named patient. The ledger
// validates and deducts every line item in one atomic step, then exactly one
// record is appended to the patient's history and persisted. Either all
// requested quantities are deducted and the record appended, or nothing
// changes: if the history write fails after the deduction committed, the
// deducted quantities are restocked before the error is returned.
func (s *Service) AddPrescription(ctx context.Context, patientName string, items map[string]int) (*Prescription, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one line item is required")
	}
	for name, qty := range items {
		if qty <= 0 {
			return nil, fmt.Errorf("quantity for %s must be positive", name)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[patientName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, patientName)
	}

	if err := s.ledger.DeductAll(ctx, items); err != nil {
		return nil, err
	}

	lineItems := make(map[string]int, len(items))
	for name, qty := range items {
		lineItems[name] = qty
	}
	rx := Prescription{
		ID:        uuid.New(),
		Date:      s.now().UTC(),
		Medicines: lineItems,
	}

	updated := p
	updated.Prescriptions = append(append([]Prescription{}, p.Prescriptions...), rx)
	next := s.clone()
	next[patientName] = updated
	if err := s.commit(ctx, next); err != nil {
		// The stock deduction already committed; undo it so the ledger and
		// the history never disagree about what was dispensed.
		if rerr := s.ledger.Restock(ctx, items); rerr != nil {
			return nil, fmt.Errorf("record prescription: %w (restock also failed: %v)", err, rerr)
		}
		return nil, fmt.Errorf("record prescription: %w", err)
	}
	return &rx, nil
}

// GetPatientHistory returns the patient record with its full prescription
// history. The returned value is a copy; mutating it does not touch the
// registry.
func (s *Service) GetPatientHistory(name string) (Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[name]
	if !ok {
		return Patient{}, fmt.Errorf("%w: %s", ErrPatientNotFound, name)
	}
	return copyPatient(p), nil
}

// ListPatients returns all registrations sorted by name.
func (s *Service) ListPatients() []Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]Patient, 0, len(s.patients))
	for _, p := range s.patients {
		list = append(list, copyPatient(p))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

func copyPatient(p Patient) Patient {
	out := p
	out.Prescriptions = make([]Prescription, len(p.Prescriptions))
	for i, rx := range p.Prescriptions {
		items := make(map[string]int, len(rx.Medicines))
		for name, qty := range rx.Medicines {
			items[name] = qty
		}
		rx.Medicines = items
		out.Prescriptions[i] = rx
	}
	return out
}
