package checkout

import (
	"context"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"github.com/carepoint/portal/internal/domain/billing"
	"github.com/carepoint/portal/internal/domain/cart"
	"github.com/carepoint/portal/internal/domain/medication"
	"github.com/carepoint/portal/internal/platform/storage"
	"github.com/carepoint/portal/internal/platform/storage/storagetest"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func newTestCoordinator(kv storage.KV) (*Coordinator, *billing.Store, *cart.Sessions, *fakeClock) {
	fc := &fakeClock{t: time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)}
	bills := billing.NewStore(kv, zerolog.Nop())
	bills.SetClock(fc.Now)
	sessions := cart.NewSessions()
	co := NewCoordinator(bills, sessions, zerolog.Nop())
	co.SetClock(fc.Now)
	return co, bills, sessions, fc
}

var paracetamol = medication.Medicine{ID: "1", Name: "Paracetamol 500mg", Price: 25, InStock: true}

func fill(s *cart.Sessions, sid string, meds ...medication.Medicine) {
	s.With(sid, func(c *cart.Cart) error {
		for _, m := range meds {
			c.Add(m)
		}
		return nil
	})
}

func TestCheckout_CreatesPendingBill(t *testing.T) {
	co, bills, sessions, _ := newTestCoordinator(storage.NewMemory())
	fill(sessions, "s1", paracetamol, paracetamol)

	res, err := co.Checkout(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	b := res.Bill
	if b.Amount != 50 || b.Status != billing.StatusPending || b.Service != Service {
		t.Errorf("unexpected bill %+v", b)
	}
	if b.Description != "Paracetamol 500mg (x2)" {
		t.Errorf("unexpected description %q", b.Description)
	}
	if b.Date != "2024-02-01" || b.DueDate == nil || *b.DueDate != "2024-02-08" {
		t.Errorf("unexpected dates %s / %v", b.Date, b.DueDate)
	}
	if snap := sessions.Snapshot("s1"); snap.Count != 0 {
		t.Error("cart should be cleared after checkout")
	}

	list, _ := bills.List(context.Background())
	if list[0].ID != b.ID {
		t.Errorf("checkout bill should be first in the list, got %s", list[0].ID)
	}
}

func TestCheckout_EmptyCartIsNoop(t *testing.T) {
	co, bills, _, _ := newTestCoordinator(storage.NewMemory())
	before, _ := bills.List(context.Background())

	res, err := co.Checkout(context.Background(), "nobody")
	if err != nil || res != nil {
		t.Fatalf("expected nil result and error, got %+v, %v", res, err)
	}
	after, _ := bills.List(context.Background())
	if len(after) != len(before) {
		t.Error("empty checkout must not create a bill")
	}
	if _, ok := co.Notice("nobody"); ok {
		t.Error("empty checkout must not leave a notice")
	}
}

func TestCheckout_DescriptionJoinsItems(t *testing.T) {
	co, _, sessions, _ := newTestCoordinator(storage.NewMemory())
	ibuprofen := medication.Medicine{ID: "3", Name: "Ibuprofen 400mg", Price: 35, InStock: true}
	fill(sessions, "s1", paracetamol, ibuprofen, ibuprofen)

	res, err := co.Checkout(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if want := "Paracetamol 500mg (x1), Ibuprofen 400mg (x2)"; res.Bill.Description != want {
		t.Errorf("description = %q, want %q", res.Bill.Description, want)
	}
	if res.Bill.Amount != 95 {
		t.Errorf("amount = %v, want 95", res.Bill.Amount)
	}
}

func TestCheckout_NoticeExpires(t *testing.T) {
	co, _, sessions, fc := newTestCoordinator(storage.NewMemory())
	fill(sessions, "s1", paracetamol)

	res, err := co.Checkout(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	n, ok := co.Notice("s1")
	if !ok || n.BillID != res.Bill.ID {
		t.Fatalf("expected notice for %s, got %+v %v", res.Bill.ID, n, ok)
	}

	fc.t = fc.t.Add(2 * time.Second)
	if _, ok := co.Notice("s1"); !ok {
		t.Error("notice should still be visible after 2s")
	}
	fc.t = fc.t.Add(time.Second)
	if _, ok := co.Notice("s1"); ok {
		t.Error("notice should expire after 3s")
	}
	if _, ok := co.Notice("s2"); ok {
		t.Error("notices are per session")
	}
}

func TestCheckout_StorageErrorKeepsCart(t *testing.T) {
	co, _, sessions, _ := newTestCoordinator(storagetest.NewFailing())
	fill(sessions, "s1", paracetamol, paracetamol)

	res, err := co.Checkout(context.Background(), "s1")
	if err == nil || res != nil {
		t.Fatalf("expected error and no result, got %+v, %v", res, err)
	}
	if !storage.IsStorageError(err) {
		t.Errorf("expected storage error, got %v", err)
	}
	if snap := sessions.Snapshot("s1"); snap.Count != 2 {
		t.Errorf("cart should be kept for retry, got %+v", snap)
	}
	if _, ok := co.Notice("s1"); ok {
		t.Error("failed checkout must not leave a notice")
	}
}

func TestCheckout_DueDateCountsCalendarDays(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	tests := []struct {
		name    string
		now     time.Time
		wantDue string
	}{
		{"spring forward", time.Date(2024, 3, 5, 23, 30, 0, 0, ny), "2024-03-12"},
		{"fall back", time.Date(2024, 10, 31, 0, 30, 0, 0, ny), "2024-11-07"},
		{"month end", time.Date(2024, 2, 26, 9, 0, 0, 0, ny), "2024-03-04"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			co, _, sessions, fc := newTestCoordinator(storage.NewMemory())
			fc.t = tt.now
			fill(sessions, "s1", paracetamol)

			res, err := co.Checkout(context.Background(), "s1")
			if err != nil {
				t.Fatalf("Checkout: %v", err)
			}
			if res.Bill.DueDate == nil || *res.Bill.DueDate != tt.wantDue {
				t.Errorf("due date = %v, want %s", res.Bill.DueDate, tt.wantDue)
			}
		})
	}
}

// blockingBills holds Add until release is closed.
type blockingBills struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingBills) Add(ctx context.Context, nb billing.NewBill) (*billing.Bill, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return &billing.Bill{ID: "INV-100", Amount: nb.Amount, Status: nb.Status, DueDate: nb.DueDate}, nil
}

func TestCheckout_OtherSessionsNotBlocked(t *testing.T) {
	bills := &blockingBills{started: make(chan struct{}), release: make(chan struct{})}
	sessions := cart.NewSessions()
	co := NewCoordinator(bills, sessions, zerolog.Nop())
	fill(sessions, "s1", paracetamol)

	done := make(chan error, 1)
	go func() {
		_, err := co.Checkout(context.Background(), "s1")
		done <- err
	}()
	<-bills.started

	added := make(chan struct{})
	go func() {
		fill(sessions, "s2", paracetamol)
		close(added)
	}()
	select {
	case <-added:
	case <-time.After(2 * time.Second):
		t.Fatal("a pending checkout must not block other sessions' carts")
	}

	close(bills.release)
	if err := <-done; err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if snap := sessions.Snapshot("s1"); snap.Count != 0 {
		t.Errorf("s1 cart should be cleared, got %+v", snap)
	}
	if snap := sessions.Snapshot("s2"); snap.Count != 1 {
		t.Errorf("s2 cart should be untouched, got %+v", snap)
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(nil); got != "" {
		t.Errorf("Describe(nil) = %q", got)
	}
}
