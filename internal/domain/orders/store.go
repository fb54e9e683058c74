package orders

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/carepoint/portal/internal/platform/clock"
	"github.com/carepoint/portal/internal/platform/storage"
	"github.com/carepoint/portal/pkg/seqid"
)

// StorageKey is the key the order collection is persisted under.
const StorageKey = "healthcare_prescription_orders"

const idPrefix = "PO-"

// Store owns the prescription order collection. Orders are never deleted.
type Store struct {
	mu     sync.Mutex
	orders *storage.Collection[PrescriptionOrder]
	now    clock.Clock
	logger zerolog.Logger
}

func NewStore(kv storage.KV, logger zerolog.Logger) *Store {
	return &Store{
		orders: storage.NewCollection[PrescriptionOrder](kv, StorageKey, logger),
		now:    clock.System,
		logger: logger.With().Str("store", "orders").Logger(),
	}
}

func (s *Store) SetClock(c clock.Clock) {
	s.now = c
}

func (s *Store) List(ctx context.Context) ([]PrescriptionOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Add assigns the next PO id and prepends the order.
func (s *Store) Add(ctx context.Context, no NewOrder) (*PrescriptionOrder, error) {
	if no.Date == "" {
		no.Date = clock.Date(s.now())
	}
	if no.Status == "" {
		no.Status = StatusProcessing
	}
	if err := no.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.load(ctx)
	if orders == nil && err != nil {
		return nil, err
	}
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	order := PrescriptionOrder{
		ID:        seqid.NextPrefixed(idPrefix, seqid.DefaultWidth, ids),
		Medicines: append([]string(nil), no.Medicines...),
		Date:      no.Date,
		Status:    no.Status,
		Total:     no.Total,
	}
	orders = append([]PrescriptionOrder{order}, orders...)

	return &order, s.save(ctx, orders)
}

// SaveAll replaces the whole collection with orders, in the given order.
func (s *Store) SaveAll(ctx context.Context, orders []PrescriptionOrder) error {
	seen := make(map[string]bool, len(orders))
	for i := range orders {
		if err := orders[i].validate(); err != nil {
			return fmt.Errorf("order %d: %w", i, err)
		}
		if seen[orders[i].ID] {
			return fmt.Errorf("duplicate order id %s", orders[i].ID)
		}
		seen[orders[i].ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, orders)
}

// SetStatus moves an order to status. Unknown ids are ignored.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid order status: %s", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.load(ctx)
	if orders == nil && err != nil {
		return err
	}
	for i := range orders {
		if orders[i].ID == id {
			orders[i].Status = status
			return s.save(ctx, orders)
		}
	}
	return nil
}

func (s *Store) load(ctx context.Context) ([]PrescriptionOrder, error) {
	orders, found, err := s.orders.Load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("load orders")
		return nil, err
	}
	if found {
		return orders, nil
	}
	seed := SeedOrders()
	return seed, s.save(ctx, seed)
}

func (s *Store) save(ctx context.Context, orders []PrescriptionOrder) error {
	if err := s.orders.Save(ctx, orders); err != nil {
		s.logger.Error().Err(err).Int("count", len(orders)).Msg("persist orders")
		return err
	}
	return nil
}
