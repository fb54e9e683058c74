package billing

import (
	"fmt"

	"github.com/carepoint/portal/internal/platform/clock"
)

type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
	StatusOverdue Status = "overdue"
)

var validStatuses = map[Status]bool{
	StatusPaid: true, StatusPending: true, StatusOverdue: true,
}

// Valid reports whether s is one of the declared bill statuses.
func (s Status) Valid() bool { return validStatuses[s] }

// Bill is one billing record. Field names match the JSON written by the web client.
type Bill struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Service     string  `json:"service"`
	Amount      float64 `json:"amount"`
	Status      Status  `json:"status"`
	DueDate     *string `json:"dueDate,omitempty"`
	Doctor      *string `json:"doctor,omitempty"`
	Description string  `json:"description"`
}

// NewBill is a bill before an id has been assigned.
type NewBill struct {
	Date        string  `json:"date"`
	Service     string  `json:"service"`
	Amount      float64 `json:"amount"`
	Status      Status  `json:"status"`
	DueDate     *string `json:"dueDate,omitempty"`
	Doctor      *string `json:"doctor,omitempty"`
	Description string  `json:"description"`
}

func (nb *NewBill) validate() error {
	if nb.Service == "" {
		return fmt.Errorf("service is required")
	}
	if nb.Amount < 0 {
		return fmt.Errorf("amount must not be negative")
	}
	if !nb.Status.Valid() {
		return fmt.Errorf("invalid bill status: %s", nb.Status)
	}
	if err := clock.ValidateDate("date", nb.Date); err != nil {
		return err
	}
	if nb.DueDate != nil {
		if err := clock.ValidateDate("dueDate", *nb.DueDate); err != nil {
			return err
		}
	}
	return nil
}

// Summary aggregates the collection for the billing overview.
type Summary struct {
	TotalAmount   float64 `json:"totalAmount"`
	PaidAmount    float64 `json:"paidAmount"`
	PendingAmount float64 `json:"pendingAmount"`
	OverdueAmount float64 `json:"overdueAmount"`
	PaidCount     int     `json:"paidCount"`
	PendingCount  int     `json:"pendingCount"`
	OverdueCount  int     `json:"overdueCount"`
}

// Outstanding is everything not yet paid.
func (s Summary) Outstanding() float64 {
	return s.PendingAmount + s.OverdueAmount
}

// Summarize computes totals per status.
func Summarize(bills []Bill) Summary {
	var s Summary
	for _, b := range bills {
		s.TotalAmount += b.Amount
		switch b.Status {
		case StatusPaid:
			s.PaidAmount += b.Amount
			s.PaidCount++
		case StatusPending:
			s.PendingAmount += b.Amount
			s.PendingCount++
		case StatusOverdue:
			s.OverdueAmount += b.Amount
			s.OverdueCount++
		}
	}
	return s
}

func strPtr(s string) *string { return &s }

// SeedBills is the example data written on first access.
func SeedBills() []Bill {
	return []Bill{
		{
			ID:          "INV-001",
			Date:        "2024-01-15",
			Service:     "General Consultation",
			Amount:      150,
			Status:      StatusPaid,
			Doctor:      strPtr("Dr. Sarah Johnson"),
			Description: "Routine check-up and consultation",
		},
		{
			ID:          "INV-002",
			Date:        "2024-01-20",
			Service:     "Blood Test",
			Amount:      85,
			Status:      StatusPending,
			DueDate:     strPtr("2024-02-20"),
			Doctor:      strPtr("Dr. Michael Chen"),
			Description: "Complete blood count and lipid panel",
		},
		{
			ID:          "INV-003",
			Date:        "2024-01-10",
			Service:     "X-Ray",
			Amount:      200,
			Status:      StatusOverdue,
			DueDate:     strPtr("2024-01-25"),
			Doctor:      strPtr("Dr. Emily Davis"),
			Description: "Chest X-ray examination",
		},
		{
			ID:          "INV-004",
			Date:        "2024-01-25",
			Service:     "Prescription Medication",
			Amount:      45.5,
			Status:      StatusPending,
			DueDate:     strPtr("2024-02-25"),
			Doctor:      strPtr("Dr. Sarah Johnson"),
			Description: "Monthly prescription refill",
		},
	}
}
