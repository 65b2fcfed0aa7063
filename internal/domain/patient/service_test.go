package patient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shu-io/clinic/internal/domain/inventory"
)

// mockRepo holds the persisted registry snapshot and can fail the next save.
type mockRepo struct {
	doc     map[string]Patient
	saves   int
	saveErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{doc: map[string]Patient{}}
}

func (r *mockRepo) Load(_ context.Context) (map[string]Patient, error) {
	out := make(map[string]Patient, len(r.doc))
	for k, v := range r.doc {
		out[k] = v
	}
	return out, nil
}

func (r *mockRepo) Save(_ context.Context, patients map[string]Patient) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.doc = make(map[string]Patient, len(patients))
	for k, v := range patients {
		r.doc[k] = v
	}
	return nil
}

// mockInvRepo backs a real inventory.Service so prescription tests exercise
// the actual atomic deduction path.
type mockInvRepo struct {
	doc map[string]inventory.Medicine
}

func (r *mockInvRepo) Load(_ context.Context) (map[string]inventory.Medicine, bool, error) {
	return r.doc, true, nil
}

func (r *mockInvRepo) Save(_ context.Context, medicines map[string]inventory.Medicine) error {
	r.doc = medicines
	return nil
}

func newTestService(t *testing.T, stock map[string]int) (*Service, *inventory.Service, *mockRepo) {
	t.Helper()
	ctx := context.Background()

	meds := map[string]inventory.Medicine{}
	for name, qty := range stock {
		meds[name] = inventory.Medicine{Name: name, Quantity: qty, UnitPrice: 10.0}
	}
	ledger, err := inventory.NewService(ctx, &mockInvRepo{doc: meds})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	repo := newMockRepo()
	svc, err := NewService(ctx, repo, ledger)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, ledger, repo
}

func TestAddPatient(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	if err := svc.AddPatient(ctx, "Alice", 30, "female"); err != nil {
		t.Fatalf("add: %v", err)
	}
	p, err := svc.GetPatientHistory("Alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Age != 30 || p.Gender != "female" || len(p.Prescriptions) != 0 {
		t.Errorf("unexpected record: %+v", p)
	}
}

func TestAddPatient_Duplicate(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	svc.AddPatient(ctx, "Alice", 30, "female")
	err := svc.AddPatient(ctx, "Alice", 31, "female")
	if !errors.Is(err, ErrDuplicatePatient) {
		t.Fatalf("expected ErrDuplicatePatient, got %v", err)
	}
	p, _ := svc.GetPatientHistory("Alice")
	if p.Age != 30 {
		t.Error("duplicate registration must not change state")
	}
}

func TestAddPatient_Invalid(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	if err := svc.AddPatient(ctx, "", 30, "female"); err == nil {
		t.Error("expected error for empty name")
	}
	if err := svc.AddPatient(ctx, "Bob", -1, "male"); err == nil {
		t.Error("expected error for negative age")
	}
}

func TestAddPrescription_DeductsAndRecords(t *testing.T) {
	svc, ledger, _ := newTestService(t, map[string]int{"Paracetamol": 50})
	ctx := context.Background()
	svc.AddPatient(ctx, "Alice", 30, "female")

	rx, err := svc.AddPrescription(ctx, "Alice", map[string]int{"Paracetamol": 5})
	if err != nil {
		t.Fatalf("add prescription: %v", err)
	}
	if rx.Medicines["Paracetamol"] != 5 {
		t.Errorf("unexpected line items: %v", rx.Medicines)
	}

	m, _ := ledger.GetMedicine("Paracetamol")
	if m.Quantity != 45 {
		t.Errorf("expected stock 45, got %d", m.Quantity)
	}
	if m.UnitPrice != 10.0 {
		t.Errorf("deduction must not change price, got %.2f", m.UnitPrice)
	}

	p, _ := svc.GetPatientHistory("Alice")
	if len(p.Prescriptions) != 1 {
		t.Fatalf("expected one history record, got %d", len(p.Prescriptions))
	}
	if p.Prescriptions[0].Medicines["Paracetamol"] != 5 {
		t.Errorf("history line items mismatch: %v", p.Prescriptions[0].Medicines)
	}
}

func TestAddPrescription_InsufficientStockIsAllOrNothing(t *testing.T) {
	svc, ledger, _ := newTestService(t, map[string]int{"Paracetamol": 50})
	ctx := context.Background()
	svc.AddPatient(ctx, "Alice", 30, "female")

	_, err := svc.AddPrescription(ctx, "Alice", map[string]int{"Paracetamol": 100})
	if !errors.Is(err, inventory.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	m, _ := ledger.GetMedicine("Paracetamol")
	if m.Quantity != 50 {
		t.Errorf("rejected prescription must not touch stock, got %d", m.Quantity)
	}
	p, _ := svc.GetPatientHistory("Alice")
	if len(p.Prescriptions) != 0 {
		t.Errorf("rejected prescription must not be recorded, got %d records", len(p.Prescriptions))
	}
}

func TestAddPrescription_OneShortItemAbortsAll(t *testing.T) {
	svc, ledger, _ := newTestService(t, map[string]int{"Paracetamol": 50, "Ors": 3})
	ctx := context.Background()
	svc.AddPatient(ctx, "Alice", 30, "female")

	_, err := svc.AddPrescription(ctx, "Alice", map[string]int{"Paracetamol": 5, "Ors": 4})
	if !errors.Is(err, inventory.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	para, _ := ledger.GetMedicine("Paracetamol")
	ors, _ := ledger.GetMedicine("Ors")
	if para.Quantity != 50 || ors.Quantity != 3 {
		t.Errorf("no medicine may be deducted on abort, got %d and %d", para.Quantity, ors.Quantity)
	}
	p, _ := svc.GetPatientHistory("Alice")
	if len(p.Prescriptions) != 0 {
		t.Error("no history record may be appended on abort")
	}
}

func TestAddPrescription_UnknownPatient(t *testing.T) {
	svc, ledger, _ := newTestService(t, map[string]int{"Paracetamol": 50})

	_, err := svc.AddPrescription(context.Background(), "Nobody", map[string]int{"Paracetamol": 5})
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
	m, _ := ledger.GetMedicine("Paracetamol")
	if m.Quantity != 50 {
		t.Error("unknown patient must not affect stock")
	}
}

func TestAddPrescription_InvalidLineItems(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]int{"Paracetamol": 50})
	ctx := context.Background()
	svc.AddPatient(ctx, "Alice", 30, "female")

	if _, err := svc.AddPrescription(ctx, "Alice", nil); err == nil {
		t.Error("expected error for empty line items")
	}
	if _, err := svc.AddPrescription(ctx, "Alice", map[string]int{"Paracetamol": 0}); err == nil {
		t.Error("expected error for zero quantity")
	}
}

func TestAddPrescription_HistorySaveFailureRestocks(t *testing.T) {
	svc, ledger, repo := newTestService(t, map[string]int{"Paracetamol": 50})
	ctx := context.Background()
	svc.AddPatient(ctx, "Alice", 30, "female")

	repo.saveErr = fmt.Errorf("disk full")
	_, err := svc.AddPrescription(ctx, "Alice", map[string]int{"Paracetamol": 5})
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	repo.saveErr = nil

	m, _ := ledger.GetMedicine("Paracetamol")
	if m.Quantity != 50 {
		t.Errorf("failed history write must restock, got %d", m.Quantity)
	}
	p, _ := svc.GetPatientHistory("Alice")
	if len(p.Prescriptions) != 0 {
		t.Error("failed history write must not append a record")
	}
}

func TestAddPrescription_HistoryIsChronological(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]int{"Paracetamol": 50, "Ors": 50})
	ctx := context.Background()
	svc.AddPatient(ctx, "Alice", 30, "female")

	first, _ := svc.AddPrescription(ctx, "Alice", map[string]int{"Paracetamol": 1})
	second, _ := svc.AddPrescription(ctx, "Alice", map[string]int{"Ors": 2})

	p, _ := svc.GetPatientHistory("Alice")
	if len(p.Prescriptions) != 2 {
		t.Fatalf("expected 2 records, got %d", len(p.Prescriptions))
	}
	if p.Prescriptions[0].ID != first.ID || p.Prescriptions[1].ID != second.ID {
		t.Error("history must keep insertion order")
	}
	if p.Prescriptions[1].Date.Before(p.Prescriptions[0].Date) {
		t.Error("later record must not predate earlier one")
	}
}

func TestGetPatientHistory_ReturnsACopy(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]int{"Paracetamol": 50})
	ctx := context.Background()
	svc.AddPatient(ctx, "Alice", 30, "female")
	svc.AddPrescription(ctx, "Alice", map[string]int{"Paracetamol": 5})

	p, _ := svc.GetPatientHistory("Alice")
	p.Prescriptions[0].Medicines["Paracetamol"] = 999
	p.Prescriptions = p.Prescriptions[:0]

	again, _ := svc.GetPatientHistory("Alice")
	if len(again.Prescriptions) != 1 {
		t.Fatal("history length must be unaffected by caller mutation")
	}
	if again.Prescriptions[0].Medicines["Paracetamol"] != 5 {
		t.Error("line items must be unaffected by caller mutation")
	}
}

func TestListPatients_Sorted(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()
	svc.AddPatient(ctx, "Carol", 40, "female")
	svc.AddPatient(ctx, "Alice", 30, "female")
	svc.AddPatient(ctx, "Bob", 35, "male")

	list := svc.ListPatients()
	if len(list) != 3 {
		t.Fatalf("expected 3 patients, got %d", len(list))
	}
	if list[0].Name != "Alice" || list[1].Name != "Bob" || list[2].Name != "Carol" {
		t.Errorf("expected sorted order, got %v %v %v", list[0].Name, list[1].Name, list[2].Name)
	}
}

func TestAddPrescription_ConcurrentNeverOversells(t *testing.T) {
	svc, ledger, _ := newTestService(t, map[string]int{"Paracetamol": 10})
	ctx := context.Background()
	if err := svc.AddPatient(ctx, "Alice", 30, "female"); err != nil {
		t.Fatalf("add patient: %v", err)
	}

	const workers = 20
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddPrescription(ctx, "Alice", map[string]int{"Paracetamol": 3})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, inventory.ErrInsufficientStock) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 3 {
		t.Fatalf("%d fulfillments succeeded against 10 units of stock, want 3", succeeded)
	}

	med, err := ledger.GetMedicine("Paracetamol")
	if err != nil {
		t.Fatalf("get medicine: %v", err)
	}
	if med.Quantity != 10-3*succeeded {
		t.Errorf("stock = %d, want %d", med.Quantity, 10-3*succeeded)
	}
	if med.Quantity < 0 {
		t.Error("stock went negative under concurrent fulfillment")
	}

	p, _ := svc.GetPatientHistory("Alice")
	if len(p.Prescriptions) != succeeded {
		t.Errorf("history has %d records, want %d", len(p.Prescriptions), succeeded)
	}
}
