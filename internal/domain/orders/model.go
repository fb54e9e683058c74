package orders

import (
	"fmt"

	"github.com/carepoint/portal/internal/platform/clock"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusDelivered  Status = "delivered"
)

var validStatuses = map[Status]bool{
	StatusProcessing: true, StatusReady: true, StatusDelivered: true,
}

func (s Status) Valid() bool { return validStatuses[s] }

// PrescriptionOrder tracks a pharmacy order. Medicines holds display strings
// such as "Amoxicillin 250mg x2".
type PrescriptionOrder struct {
	ID        string   `json:"id"`
	Medicines []string `json:"medicines"`
	Date      string   `json:"date"`
	Status    Status   `json:"status"`
	Total     float64  `json:"total"`
}

func (o *PrescriptionOrder) validate() error {
	if o.ID == "" {
		return fmt.Errorf("id is required")
	}
	if o.Total < 0 {
		return fmt.Errorf("total must not be negative")
	}
	if !o.Status.Valid() {
		return fmt.Errorf("invalid order status: %s", o.Status)
	}
	return clock.ValidateDate("date", o.Date)
}

// NewOrder is an order before an id has been assigned.
type NewOrder struct {
	Medicines []string `json:"medicines"`
	Date      string   `json:"date"`
	Status    Status   `json:"status"`
	Total     float64  `json:"total"`
}

func (no *NewOrder) validate() error {
	if len(no.Medicines) == 0 {
		return fmt.Errorf("at least one medicine is required")
	}
	if no.Total < 0 {
		return fmt.Errorf("total must not be negative")
	}
	if !no.Status.Valid() {
		return fmt.Errorf("invalid order status: %s", no.Status)
	}
	return clock.ValidateDate("date", no.Date)
}

// SeedOrders is the example data written on first access.
func SeedOrders() []PrescriptionOrder {
	return []PrescriptionOrder{
		{
			ID:        "PO-001",
			Medicines: []string{"Amoxicillin 250mg x2", "Paracetamol 500mg x1"},
			Date:      "2024-01-18",
			Status:    StatusDelivered,
			Total:     265,
		},
		{
			ID:        "PO-002",
			Medicines: []string{"Metformin 500mg x3"},
			Date:      "2024-01-22",
			Status:    StatusReady,
			Total:     180,
		},
		{
			ID:        "PO-003",
			Medicines: []string{"Omeprazole 20mg x1", "Vitamin D3 1000IU x1"},
			Date:      "2024-01-28",
			Status:    StatusProcessing,
			Total:     235,
		},
	}
}
