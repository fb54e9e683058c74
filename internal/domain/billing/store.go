package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/carepoint/portal/internal/platform/clock"
	"github.com/carepoint/portal/internal/platform/storage"
	"github.com/carepoint/portal/pkg/seqid"
)

// StorageKey is the key the bill collection is persisted under.
const StorageKey = "healthcare_bills"

const idPrefix = "INV-"

var ErrNotFound = errors.New("bill not found")

// Store owns the bill collection: id assignment, status changes and persistence.
// Mutations rewrite the whole collection. When a write fails the in-memory
// result is still returned together with a *storage.Error.
type Store struct {
	mu     sync.Mutex
	bills  *storage.Collection[Bill]
	now    clock.Clock
	logger zerolog.Logger
}

func NewStore(kv storage.KV, logger zerolog.Logger) *Store {
	return &Store{
		bills:  storage.NewCollection[Bill](kv, StorageKey, logger),
		now:    clock.System,
		logger: logger.With().Str("store", "bills").Logger(),
	}
}

// SetClock replaces the clock used to default bill dates.
func (s *Store) SetClock(c clock.Clock) {
	s.now = c
}

// List returns the bills in stored order, seeding the example set on first access.
func (s *Store) List(ctx context.Context) ([]Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Get returns the bill with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Bill, error) {
	bills, err := s.List(ctx)
	if bills == nil && err != nil {
		return nil, err
	}
	for i := range bills {
		if bills[i].ID == id {
			b := bills[i]
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

// Add assigns the next INV id, prepends the bill and persists the collection.
func (s *Store) Add(ctx context.Context, nb NewBill) (*Bill, error) {
	if nb.Date == "" {
		nb.Date = clock.Date(s.now())
	}
	if nb.Status == "" {
		nb.Status = StatusPending
	}
	if err := nb.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bills, err := s.load(ctx)
	if bills == nil && err != nil {
		return nil, err
	}

	ids := make([]string, len(bills))
	for i, b := range bills {
		ids[i] = b.ID
	}
	bill := Bill{
		ID:          seqid.NextPrefixed(idPrefix, seqid.DefaultWidth, ids),
		Date:        nb.Date,
		Service:     nb.Service,
		Amount:      nb.Amount,
		Status:      nb.Status,
		DueDate:     nb.DueDate,
		Doctor:      nb.Doctor,
		Description: nb.Description,
	}
	bills = append([]Bill{bill}, bills...)

	return &bill, s.save(ctx, bills)
}

// SetStatus replaces the status of the bill with the given id. An unknown id
// leaves the collection untouched and is not reported.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid bill status: %s", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bills, err := s.load(ctx)
	if bills == nil && err != nil {
		return err
	}
	for i := range bills {
		if bills[i].ID == id {
			bills[i].Status = status
			return s.save(ctx, bills)
		}
	}
	return nil
}

// Delete removes the bill with the given id, if present.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bills, err := s.load(ctx)
	if bills == nil && err != nil {
		return err
	}
	for i := range bills {
		if bills[i].ID == id {
			return s.save(ctx, append(bills[:i], bills[i+1:]...))
		}
	}
	return nil
}

// Summary totals the collection by status.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	bills, err := s.List(ctx)
	return Summarize(bills), err
}

// load must be called with s.mu held. On first access it persists the seed;
// if that write fails the seed is still returned with the error.
func (s *Store) load(ctx context.Context) ([]Bill, error) {
	bills, found, err := s.bills.Load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("load bills")
		return nil, err
	}
	if found {
		return bills, nil
	}
	seed := SeedBills()
	return seed, s.save(ctx, seed)
}

func (s *Store) save(ctx context.Context, bills []Bill) error {
	if err := s.bills.Save(ctx, bills); err != nil {
		s.logger.Error().Err(err).Int("count", len(bills)).Msg("persist bills")
		return err
	}
	return nil
}
