package cart

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"agency/internal/catalog"
)

func gear(id, price string) catalog.Equipment {
	return catalog.Equipment{ID: id, Title: "Gear " + id, Price: decimal.RequireFromString(price), Status: catalog.GearAvailable}
}

func mustOpen(t *testing.T, s Storage) *Cart {
	t.Helper()
	c, err := Open(context.Background(), s, "cart:test")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return c
}

func TestAddItemTwiceIncrements(t *testing.T) {
	c := mustOpen(t, NewMemoryStorage())
	ctx := context.Background()
	_ = c.AddItem(ctx, gear("cam", "100"))
	_ = c.AddItem(ctx, gear("cam", "100"))

	items := c.Items()
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("expected one line with quantity 2, got %+v", items)
	}
	if !c.Total().Equal(decimal.NewFromInt(200)) || c.Count() != 2 {
		t.Fatalf("unexpected totals: %s / %d", c.Total(), c.Count())
	}
}

func TestAddItemRequiresID(t *testing.T) {
	c := mustOpen(t, NewMemoryStorage())
	if err := c.AddItem(context.Background(), catalog.Equipment{Title: "anonymous"}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestSetQuantityZeroEqualsRemove(t *testing.T) {
	ctx := context.Background()
	a := mustOpen(t, NewMemoryStorage())
	b := mustOpen(t, NewMemoryStorage())
	for _, c := range []*Cart{a, b} {
		_ = c.AddItem(ctx, gear("cam", "100"))
		_ = c.AddItem(ctx, gear("lens", "35.50"))
		_ = c.AddItem(ctx, gear("lens", "35.50"))
	}

	_ = a.SetQuantity(ctx, "lens", 0)
	_ = b.RemoveItem(ctx, "lens")

	ai, bi := a.Items(), b.Items()
	if len(ai) != 1 || len(bi) != 1 || ai[0].ID != bi[0].ID || ai[0].Quantity != bi[0].Quantity || !ai[0].Price.Equal(bi[0].Price) {
		t.Fatalf("setQuantity(0) and removeItem diverged: %+v vs %+v", a.Items(), b.Items())
	}
	if err := a.SetQuantity(ctx, "lens", -3); err != nil {
		t.Fatalf("negative quantity on absent item should be a no-op remove: %v", err)
	}
}

func TestSetQuantityUnknownItem(t *testing.T) {
	c := mustOpen(t, NewMemoryStorage())
	if err := c.SetQuantity(context.Background(), "ghost", 2); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
}

func TestTotalsHoldAfterRandomMutations(t *testing.T) {
	ctx := context.Background()
	c := mustOpen(t, NewMemoryStorage())
	catalogItems := []catalog.Equipment{gear("a", "10.25"), gear("b", "99.99"), gear("c", "0"), gear("d", "1200")}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		e := catalogItems[rng.Intn(len(catalogItems))]
		switch rng.Intn(5) {
		case 0, 1:
			_ = c.AddItem(ctx, e)
		case 2:
			_ = c.RemoveItem(ctx, e.ID)
		case 3:
			_ = c.SetQuantity(ctx, e.ID, rng.Intn(6)-1)
		case 4:
			if rng.Intn(20) == 0 {
				_ = c.Clear(ctx)
			}
		}

		sum := decimal.Zero
		n := 0
		for _, it := range c.Items() {
			sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
			n += it.Quantity
		}
		if !c.Total().Equal(sum) || c.Count() != n {
			t.Fatalf("step %d: total %s (want %s), count %d (want %d)", i, c.Total(), sum, c.Count(), n)
		}
	}
}

func TestRoundTripThroughStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	c := mustOpen(t, s)
	_ = c.AddItem(ctx, gear("cam", "120.50"))
	_ = c.AddItem(ctx, gear("lens", "35"))
	_ = c.SetQuantity(ctx, "lens", 4)

	again := mustOpen(t, s)
	want, got := c.Items(), again.Items()
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Quantity != want[i].Quantity || !got[i].Price.Equal(want[i].Price) {
			t.Fatalf("item %d differs: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func TestCorruptOrMissingSnapshotIsEmpty(t *testing.T) {
	ctx := context.Background()
	for _, raw := range []string{"{not json", `{"version":99,"items":[{"id":"x","quantity":1}]}`, `[]`} {
		s := NewMemoryStorage()
		_ = s.SetItem(ctx, "cart:test", raw)
		c := mustOpen(t, s)
		if c.Count() != 0 {
			t.Fatalf("snapshot %q should hydrate empty, got %+v", raw, c.Items())
		}
	}
	if c := mustOpen(t, NewMemoryStorage()); c.Count() != 0 {
		t.Fatalf("missing snapshot should hydrate empty")
	}
}

type failingStorage struct{ *MemoryStorage }

func (failingStorage) SetItem(context.Context, string, string) error { return errors.New("disk full") }

func TestFailedPersistLeavesCartUnchanged(t *testing.T) {
	c := mustOpen(t, failingStorage{NewMemoryStorage()})
	if err := c.AddItem(context.Background(), gear("cam", "1")); err == nil {
		t.Fatalf("expected persistence error")
	}
	if c.Count() != 0 {
		t.Fatalf("in-memory cart must match what was stored")
	}
}

func TestRemovePurchasedKeepsLaterAdditions(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	c := mustOpen(t, storage)
	_ = c.AddItem(ctx, gear("cam", "100"))
	_ = c.AddItem(ctx, gear("lens", "20"))

	// Written through a second handle after c was opened.
	other := mustOpen(t, storage)
	_ = other.AddItem(ctx, gear("cam", "100"))
	_ = other.AddItem(ctx, gear("mic", "15"))

	if err := c.RemovePurchased(ctx, map[string]int{"cam": 1, "lens": 1}); err != nil {
		t.Fatalf("remove purchased: %v", err)
	}

	got := map[string]int{}
	for _, it := range mustOpen(t, storage).Items() {
		got[it.ID] = it.Quantity
	}
	if len(got) != 2 || got["cam"] != 1 || got["mic"] != 1 {
		t.Fatalf("expected one cam and one mic left, got %v", got)
	}
	if c.Count() != 2 {
		t.Fatalf("handle should reflect the stored cart, got %d", c.Count())
	}
}

func TestDrawerFlags(t *testing.T) {
	c := mustOpen(t, NewMemoryStorage())
	c.OpenDrawer()
	if !c.IsOpen() {
		t.Fatalf("expected open")
	}
	c.ToggleDrawer()
	if c.IsOpen() {
		t.Fatalf("expected closed after toggle")
	}
	c.ToggleDrawer()
	c.CloseDrawer()
	if c.IsOpen() {
		t.Fatalf("expected closed")
	}
}

func TestFileStorage(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("new file storage: %v", err)
	}
	if _, ok, err := s.GetItem(ctx, "session:abc/../x"); ok || err != nil {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	c := mustOpen(t, s)
	_ = c.AddItem(ctx, gear("cam", "80"))
	again := mustOpen(t, s)
	if again.Count() != 1 {
		t.Fatalf("expected persisted item, got %+v", again.Items())
	}

	if err := s.RemoveItem(ctx, "cart:test"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.RemoveItem(ctx, "cart:test"); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
}
