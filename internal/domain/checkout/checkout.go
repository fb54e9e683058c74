// Package checkout turns a session cart into a pending bill.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/carepoint/portal/internal/domain/billing"
	"github.com/carepoint/portal/internal/domain/cart"
	"github.com/carepoint/portal/internal/platform/clock"
)

const (
	// Service is the service name written on checkout bills.
	Service = "Medicine Order"
	// PaymentTermDays is the number of calendar days between checkout and the
	// bill's due date.
	PaymentTermDays = 7
	// NoticeTTL is how long the success notice stays visible.
	NoticeTTL = 3 * time.Second
)

var tracer = otel.Tracer("github.com/carepoint/portal/internal/domain/checkout")

// BillAdder is the part of the bill store checkout needs.
type BillAdder interface {
	Add(ctx context.Context, nb billing.NewBill) (*billing.Bill, error)
}

// Notice is the confirmation shown after a successful checkout.
type Notice struct {
	Message   string    `json:"message"`
	BillID    string    `json:"billId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Result describes a completed checkout.
type Result struct {
	Bill   *billing.Bill `json:"bill"`
	Notice Notice        `json:"notice"`
}

// Coordinator creates bills from carts and keeps the per-session notices.
type Coordinator struct {
	bills    BillAdder
	sessions *cart.Sessions
	now      clock.Clock
	logger   zerolog.Logger

	mu      sync.Mutex
	notices map[string]Notice
}

func NewCoordinator(bills BillAdder, sessions *cart.Sessions, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		bills:    bills,
		sessions: sessions,
		now:      clock.System,
		logger:   logger.With().Str("component", "checkout").Logger(),
		notices:  make(map[string]Notice),
	}
}

func (co *Coordinator) SetClock(c clock.Clock) {
	co.now = c
}

// Describe renders cart items as "Name (xN)" joined with ", ".
func Describe(items []cart.Item) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%s (x%d)", it.Name, it.Quantity)
	}
	return strings.Join(parts, ", ")
}

// Checkout bills the session's cart. An empty cart returns nil, nil. The
// cart is cleared only once the bill has been persisted; on a storage error
// it is kept so the caller can retry.
func (co *Coordinator) Checkout(ctx context.Context, sessionID string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "checkout")
	defer span.End()

	var res *Result
	err := co.sessions.With(sessionID, func(c *cart.Cart) error {
		if c.Empty() {
			return nil
		}
		now := co.now()
		due := clock.Date(now.AddDate(0, 0, PaymentTermDays))
		bill, err := co.bills.Add(ctx, billing.NewBill{
			Date:        clock.Date(now),
			Service:     Service,
			Amount:      c.Total(),
			Status:      billing.StatusPending,
			DueDate:     &due,
			Description: Describe(c.Items()),
		})
		if err != nil {
			co.logger.Error().Err(err).Str("session_id", sessionID).Msg("checkout failed, cart kept")
			return err
		}

		c.Clear()
		res = &Result{
			Bill: bill,
			Notice: Notice{
				Message:   fmt.Sprintf("Order placed. Bill %s has been added to your account.", bill.ID),
				BillID:    bill.ID,
				ExpiresAt: now.Add(NoticeTTL),
			},
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bill not persisted")
		return nil, err
	}
	if res == nil {
		span.SetAttributes(attribute.Bool("checkout.empty_cart", true))
		return nil, nil
	}
	span.SetAttributes(
		attribute.String("checkout.bill_id", res.Bill.ID),
		attribute.Float64("checkout.amount", res.Bill.Amount),
	)

	co.mu.Lock()
	co.notices[sessionID] = res.Notice
	co.mu.Unlock()

	co.logger.Info().
		Str("session_id", sessionID).
		Str("bill_id", res.Bill.ID).
		Float64("amount", res.Bill.Amount).
		Msg("checkout completed")
	return res, nil
}

// Notice returns the session's success notice while it is still valid.
func (co *Coordinator) Notice(sessionID string) (Notice, bool) {
	co.mu.Lock()
	defer co.mu.Unlock()
	n, ok := co.notices[sessionID]
	if !ok {
		return Notice{}, false
	}
	if !co.now().Before(n.ExpiresAt) {
		delete(co.notices, sessionID)
		return Notice{}, false
	}
	return n, true
}
