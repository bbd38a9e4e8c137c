package order

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"agency/internal/checkout"
	"agency/pkg/config"
	"agency/pkg/db"
)

// Needs a disposable Postgres: TEST_DATABASE_URL=postgres://... go test ./internal/order
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	cfg := config.Config{DatabaseURL: url}
	if err := db.MigrateConfig("file://../../migrations", cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := db.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestRepository_DirectBookingKeepsLineAmount(t *testing.T) {
	repo := NewRepository(testPool(t))
	ctx := context.Background()

	pickup := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rate := decimal.RequireFromString("45.50")
	want := checkout.Order{
		Reference:     "ORD-" + uuid.NewString()[:8],
		PaymentRef:    "991",
		PaymentStatus: "approved",
		Customer:      checkout.Customer{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "555"},
		Items:         []checkout.LineItem{{GearID: "drone", Title: "Drone", UnitPrice: rate, Quantity: 1, Amount: rate.Mul(decimal.NewFromInt(3))}},
		PickupDate:    pickup,
		ReturnDate:    pickup.AddDate(0, 0, 2),
		Total:         rate.Mul(decimal.NewFromInt(3)),
		Currency:      "USD",
		CreatedAt:     time.Now().UTC(),
	}
	if err := repo.Insert(ctx, want); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.GetByReference(ctx, want.Reference)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Days != 3 || !got.Total.Equal(decimal.RequireFromString("136.50")) {
		t.Fatalf("unexpected order header: days=%d total=%s", got.Days, got.Total)
	}
	if len(got.Items) != 1 || !got.Items[0].Amount.Equal(got.Total) || !got.Items[0].UnitPrice.Equal(rate) {
		t.Fatalf("line amount should match the 3-day total: %+v", got.Items)
	}
	if got.PaymentStatus != "approved" {
		t.Fatalf("expected payment status to round trip, got %q", got.PaymentStatus)
	}
}

func TestRepository_UnknownReference(t *testing.T) {
	repo := NewRepository(testPool(t))
	if _, err := repo.GetByReference(context.Background(), "ORD-missing"); err != checkout.ErrOrderNotFound {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
