// Package cart holds per-session shopping carts. Carts live in process memory
// only and are lost on restart.
package cart

import (
	"sync"

	"github.com/carepoint/portal/internal/domain/medication"
)

// Item is a medicine with the quantity selected.
type Item struct {
	medication.Medicine
	Quantity int `json:"quantity"`
}

// Subtotal is price times quantity.
func (i Item) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// Cart is an ordered list of items, at most one per medicine id. A Cart is
// not safe for concurrent use; Sessions serializes access.
type Cart struct {
	items []Item
}

// Add increments the quantity of m, or appends it with quantity 1.
func (c *Cart) Add(m medication.Medicine) {
	for i := range c.items {
		if c.items[i].ID == m.ID {
			c.items[i].Quantity++
			return
		}
	}
	c.items = append(c.items, Item{Medicine: m, Quantity: 1})
}

// AdjustQuantity adds delta to the item's quantity and drops the item once
// the quantity reaches zero. Unknown ids are ignored.
func (c *Cart) AdjustQuantity(id string, delta int) {
	for i := range c.items {
		if c.items[i].ID != id {
			continue
		}
		c.items[i].Quantity += delta
		if c.items[i].Quantity <= 0 {
			c.items = append(c.items[:i], c.items[i+1:]...)
		}
		return
	}
}

func (c *Cart) Remove(id string) {
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

func (c *Cart) Clear() {
	c.items = nil
}

// Total is the sum of price times quantity.
func (c *Cart) Total() float64 {
	var total float64
	for _, it := range c.items {
		total += it.Subtotal()
	}
	return total
}

// Count is the number of units across all items.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Items returns a copy of the cart contents in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Empty() bool { return len(c.items) == 0 }

// Snapshot is a read-only view of a cart.
type Snapshot struct {
	Items []Item  `json:"items"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

func (c *Cart) Snapshot() Snapshot {
	return Snapshot{Items: c.Items(), Total: c.Total(), Count: c.Count()}
}

// Sessions maps session ids to carts. Each cart has its own lock, so a slow
// operation on one session does not hold up the others.
type Sessions struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	cart Cart
	// refs and empty are guarded by Sessions.mu.
	refs  int
	empty bool
}

func NewSessions() *Sessions {
	return &Sessions{entries: make(map[string]*entry)}
}

// With runs fn against the session's cart while holding that cart's lock,
// creating the cart on first use. Calls for the same session are serialized;
// other sessions proceed concurrently.
func (s *Sessions) With(sessionID string, fn func(*Cart) error) error {
	s.mu.Lock()
	e, ok := s.entries[sessionID]
	if !ok {
		e = &entry{empty: true}
		s.entries[sessionID] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	err := fn(&e.cart)
	empty := e.cart.Empty()
	e.mu.Unlock()

	s.mu.Lock()
	e.refs--
	e.empty = empty
	if e.refs == 0 && empty {
		delete(s.entries, sessionID)
	}
	s.mu.Unlock()
	return err
}

// Snapshot returns the session's cart contents and totals.
func (s *Sessions) Snapshot(sessionID string) Snapshot {
	var snap Snapshot
	s.With(sessionID, func(c *Cart) error {
		snap = c.Snapshot()
		return nil
	})
	return snap
}

// Len reports how many sessions currently hold a non-empty cart.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if !e.empty {
			n++
		}
	}
	return n
}
