package medication

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/carepoint/portal/internal/platform/storage"
	"github.com/carepoint/portal/pkg/seqid"
)

// StorageKey is the key the catalog is persisted under.
const StorageKey = "healthcare_medicines"

var ErrNotFound = errors.New("medicine not found")

// Catalog owns the medicine collection. New medicines are appended.
type Catalog struct {
	mu        sync.Mutex
	medicines *storage.Collection[Medicine]
	logger    zerolog.Logger
}

func NewCatalog(kv storage.KV, logger zerolog.Logger) *Catalog {
	return &Catalog{
		medicines: storage.NewCollection[Medicine](kv, StorageKey, logger),
		logger:    logger.With().Str("store", "medicines").Logger(),
	}
}

// List returns the catalog, seeding the default set on first access.
func (c *Catalog) List(ctx context.Context) ([]Medicine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

func (c *Catalog) Get(ctx context.Context, id string) (*Medicine, error) {
	items, err := c.List(ctx)
	if items == nil && err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			m := items[i]
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

// SetStock flips the availability flag. Unknown ids are ignored.
func (c *Catalog) SetStock(ctx context.Context, id string, inStock bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if items == nil && err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == id {
			items[i].InStock = inStock
			return c.save(ctx, items)
		}
	}
	return nil
}

// Add assigns the next integer id and appends the medicine.
func (c *Catalog) Add(ctx context.Context, nm NewMedicine) (*Medicine, error) {
	if err := nm.validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if items == nil && err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i, m := range items {
		ids[i] = m.ID
	}
	m := Medicine{
		ID:            seqid.NextNumeric(ids),
		Name:          nm.Name,
		GenericName:   nm.GenericName,
		Price:         nm.Price,
		OriginalPrice: nm.OriginalPrice,
		Manufacturer:  nm.Manufacturer,
		Description:   nm.Description,
		Prescription:  nm.Prescription,
		InStock:       nm.InStock,
		Rating:        nm.Rating,
		Category:      nm.Category,
	}
	items = append(items, m)

	return &m, c.save(ctx, items)
}

func (c *Catalog) load(ctx context.Context) ([]Medicine, error) {
	items, found, err := c.medicines.Load(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("load medicines")
		return nil, err
	}
	if found {
		return items, nil
	}
	seed := SeedCatalog()
	return seed, c.save(ctx, seed)
}

func (c *Catalog) save(ctx context.Context, items []Medicine) error {
	if err := c.medicines.Save(ctx, items); err != nil {
		c.logger.Error().Err(err).Int("count", len(items)).Msg("persist medicines")
		return err
	}
	return nil
}
