// Package cart is the rental cart: an ordered list of equipment with
// quantities, persisted as a snapshot after every change.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"agency/internal/catalog"
	"agency/pkg/logger"
)

const snapshotVersion = 1

var (
	ErrMissingID   = errors.New("cart item has no id")
	ErrUnknownItem = errors.New("item is not in the cart")
)

type Item struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Category string          `json:"category,omitempty"`
	Image    string          `json:"image,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// LineTotal is price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type snapshot struct {
	Version int    `json:"version"`
	Items   []Item `json:"items"`
}

// Cart is safe for concurrent use. Reads are always derived from the current
// item list.
type Cart struct {
	mu      sync.Mutex
	storage Storage
	key     string
	items   []Item
	open    bool
}

// Open restores the snapshot stored under key before returning, so no
// operation ever sees an unhydrated cart. A missing or unreadable snapshot
// yields an empty cart; only storage failures are returned.
func Open(ctx context.Context, storage Storage, key string) (*Cart, error) {
	c := &Cart{storage: storage, key: key, items: []Item{}}

	raw, ok, err := storage.GetItem(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return c, nil
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil || snap.Version != snapshotVersion {
		logger.Warn(ctx, "discarding unreadable cart snapshot", "cart", key, "error", err, "version", snap.Version)
		return c, nil
	}
	for _, it := range snap.Items {
		if it.ID == "" || it.Quantity <= 0 || it.Price.IsNegative() {
			continue
		}
		c.items = append(c.items, it)
	}
	return c, nil
}

func (c *Cart) Key() string { return c.key }

// AddItem increments the quantity of a known item, otherwise appends it with
// quantity 1.
func (c *Cart) AddItem(ctx context.Context, e catalog.Equipment) error {
	if e.ID == "" {
		return ErrMissingID
	}
	return c.mutate(ctx, func(items []Item) ([]Item, error) {
		for i := range items {
			if items[i].ID == e.ID {
				items[i].Quantity++
				return items, nil
			}
		}
		img := ""
		if len(e.Images) > 0 {
			img = e.Images[0]
		}
		return append(items, Item{ID: e.ID, Title: e.Title, Category: e.Category, Image: img, Price: e.Price, Quantity: 1}), nil
	})
}

// RemoveItem drops the entry whatever its quantity. Removing an absent id is
// a no-op.
func (c *Cart) RemoveItem(ctx context.Context, id string) error {
	return c.mutate(ctx, func(items []Item) ([]Item, error) {
		out := items[:0]
		for _, it := range items {
			if it.ID != id {
				out = append(out, it)
			}
		}
		return out, nil
	})
}

// SetQuantity with n <= 0 behaves exactly like RemoveItem.
func (c *Cart) SetQuantity(ctx context.Context, id string, n int) error {
	if n <= 0 {
		return c.RemoveItem(ctx, id)
	}
	return c.mutate(ctx, func(items []Item) ([]Item, error) {
		for i := range items {
			if items[i].ID == id {
				items[i].Quantity = n
				return items, nil
			}
		}
		return nil, ErrUnknownItem
	})
}

func (c *Cart) Clear(ctx context.Context) error {
	return c.mutate(ctx, func([]Item) ([]Item, error) { return []Item{}, nil })
}

// RemovePurchased takes the purchased quantities out of the stored cart. The
// snapshot is read again first, so lines another request added since Open
// are kept.
func (c *Cart) RemovePurchased(ctx context.Context, purchased map[string]int) error {
	fresh, err := Open(ctx, c.storage, c.key)
	if err != nil {
		return err
	}
	return c.mutate(ctx, func([]Item) ([]Item, error) {
		out := make([]Item, 0, len(fresh.items))
		for _, it := range fresh.items {
			it.Quantity -= purchased[it.ID]
			if it.Quantity > 0 {
				out = append(out, it)
			}
		}
		return out, nil
	})
}

// mutate applies fn to a copy and persists it; the in-memory list only
// changes once the snapshot is written.
func (c *Cart) mutate(ctx context.Context, fn func([]Item) ([]Item, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fn(append([]Item(nil), c.items...))
	if err != nil {
		return err
	}
	if next == nil {
		next = []Item{}
	}

	b, err := json.Marshal(snapshot{Version: snapshotVersion, Items: next})
	if err != nil {
		return err
	}
	if err := c.storage.SetItem(ctx, c.key, string(b)); err != nil {
		return err
	}
	c.items = next
	return nil
}

func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Item{}, c.items...)
}

// Total is the sum of price times quantity.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := decimal.Zero
	for _, it := range c.items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Count is the sum of quantities.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool { return c.Count() == 0 }

// Drawer visibility is presentation state and is never persisted.

func (c *Cart) OpenDrawer() {
	c.mu.Lock()
	c.open = true
	c.mu.Unlock()
}

func (c *Cart) CloseDrawer() {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
}

func (c *Cart) ToggleDrawer() {
	c.mu.Lock()
	c.open = !c.open
	c.mu.Unlock()
}

func (c *Cart) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
