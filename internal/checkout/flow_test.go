package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"agency/internal/cart"
	"agency/internal/catalog"
	"agency/internal/checkout"
	mock_checkout "agency/internal/checkout/mocks"
)

func form() checkout.Form {
	return checkout.Form{
		CustomerName: "Ada Lovelace",
		Email:        "ada@example.com",
		Phone:        "555-0100",
		PickupDate:   "2025-01-10",
		ReturnDate:   "2025-01-12",
		Payment:      checkout.PaymentDetails{Token: "tok_123", MethodID: "visa", Installments: 1},
	}
}

func gear(id, price string) catalog.Equipment {
	return catalog.Equipment{ID: id, Title: "Gear " + id, Price: decimal.RequireFromString(price), Status: catalog.GearAvailable}
}

func filledCart(t *testing.T) *cart.Cart {
	t.Helper()
	ctx := context.Background()
	c, err := cart.Open(ctx, cart.NewMemoryStorage(), "cart:t")
	if err != nil {
		t.Fatalf("open cart: %v", err)
	}
	_ = c.AddItem(ctx, gear("cam", "120"))
	_ = c.AddItem(ctx, gear("lens", "30"))
	_ = c.AddItem(ctx, gear("lens", "30"))
	return c
}

type states struct {
	mu  sync.Mutex
	got []checkout.State
}

func (s *states) hook(_ string, st checkout.State) {
	s.mu.Lock()
	s.got = append(s.got, st)
	s.mu.Unlock()
}

func (s *states) equal(want ...checkout.State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.got) != len(want) {
		return false
	}
	for i := range want {
		if s.got[i] != want[i] {
			return false
		}
	}
	return true
}

func newService(pay checkout.Initiator, rec checkout.Recorder, st *states, opts ...checkout.Option) *checkout.Service {
	opts = append([]checkout.Option{
		checkout.WithStateHook(st.hook),
		checkout.WithReferences(func() string { return "ORD-TEST" }),
	}, opts...)
	return checkout.NewService(pay, rec, opts...)
}

func TestCheckoutCart_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	pay := mock_checkout.NewMockInitiator(ctrl)
	rec := mock_checkout.NewMockRecorder(ctrl)
	st := &states{}
	svc := newService(pay, rec, st)
	c := filledCart(t)

	pay.EXPECT().Initiate(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req checkout.PaymentRequest) (checkout.Outcome, error) {
		// Cart flow charges the cart total; dates do not multiply it.
		if !req.Total.Equal(decimal.NewFromInt(180)) {
			t.Fatalf("expected total 180, got %s", req.Total)
		}
		if len(req.Items) != 2 || req.Payment.Token != "tok_123" || req.Reference != "ORD-TEST" {
			t.Fatalf("unexpected payment request: %+v", req)
		}
		return checkout.Outcome{PaymentRef: "pay-1", Status: "approved"}, nil
	})
	rec.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, o checkout.Order) error {
		if o.PaymentRef != "pay-1" || o.Days != 3 || !o.Total.Equal(decimal.NewFromInt(180)) {
			t.Fatalf("unexpected order: %+v", o)
		}
		return nil
	})

	order, err := svc.CheckoutCart(context.Background(), "s1", form(), c)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if order.Reference != "ORD-TEST" {
		t.Fatalf("expected confirmation reference, got %q", order.Reference)
	}
	if c.Count() != 0 {
		t.Fatalf("cart should be cleared after success")
	}
	if !st.equal(checkout.StateValidating, checkout.StateSubmitting, checkout.StatePaymentOpen, checkout.StateSucceeded) {
		t.Fatalf("unexpected states: %v", st.got)
	}
}

func TestCheckoutCart_CancelKeepsCart(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	pay := mock_checkout.NewMockInitiator(ctrl)
	rec := mock_checkout.NewMockRecorder(ctrl)
	st := &states{}
	svc := newService(pay, rec, st)
	c := filledCart(t)

	pay.EXPECT().Initiate(gomock.Any(), gomock.Any()).Return(checkout.Outcome{}, checkout.ErrPaymentCancelled)

	_, err := svc.CheckoutCart(context.Background(), "s1", form(), c)
	if !errors.Is(err, checkout.ErrPaymentCancelled) {
		t.Fatalf("expected ErrPaymentCancelled, got %v", err)
	}
	var pe *checkout.ProviderError
	if errors.As(err, &pe) {
		t.Fatalf("cancellation must not look like a provider error")
	}
	if c.Count() != 3 {
		t.Fatalf("cart must be intact after cancel, count %d", c.Count())
	}
	if !st.equal(checkout.StateValidating, checkout.StateSubmitting, checkout.StatePaymentOpen, checkout.StateIdle) {
		t.Fatalf("unexpected states: %v", st.got)
	}

	// Checkout is re-enabled.
	pay.EXPECT().Initiate(gomock.Any(), gomock.Any()).Return(checkout.Outcome{PaymentRef: "pay-2", Status: "approved"}, nil)
	rec.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)
	if _, err := svc.CheckoutCart(context.Background(), "s1", form(), c); err != nil {
		t.Fatalf("retry after cancel: %v", err)
	}
}

func TestCheckoutCart_ProviderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	pay := mock_checkout.NewMockInitiator(ctrl)
	svc := newService(pay, mock_checkout.NewMockRecorder(ctrl), &states{}, checkout.WithProvider("mercadopago"))
	c := filledCart(t)

	pay.EXPECT().Initiate(gomock.Any(), gomock.Any()).Return(checkout.Outcome{}, errors.New("card declined"))

	_, err := svc.CheckoutCart(context.Background(), "s1", form(), c)
	var pe *checkout.ProviderError
	if !errors.As(err, &pe) || pe.Provider != "mercadopago" {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if c.Count() != 3 {
		t.Fatalf("cart must be intact after provider error")
	}
}

func TestCheckoutCart_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	pay := mock_checkout.NewMockInitiator(ctrl)
	svc := newService(pay, mock_checkout.NewMockRecorder(ctrl), &states{}, checkout.WithTimeout(20*time.Millisecond))

	pay.EXPECT().Initiate(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ checkout.PaymentRequest) (checkout.Outcome, error) {
		<-ctx.Done()
		return checkout.Outcome{}, ctx.Err()
	})

	_, err := svc.CheckoutCart(context.Background(), "s1", form(), filledCart(t))
	if !errors.Is(err, checkout.ErrPaymentTimeout) {
		t.Fatalf("expected ErrPaymentTimeout, got %v", err)
	}
}

func TestCheckoutCart_ValidationSkipsPayment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	st := &states{}
	svc := newService(mock_checkout.NewMockInitiator(ctrl), mock_checkout.NewMockRecorder(ctrl), st)

	f := form()
	f.Email = "not-an-email"
	_, err := svc.CheckoutCart(context.Background(), "s1", f, filledCart(t))
	var fe checkout.FieldErrors
	if !errors.As(err, &fe) || fe["email"] == "" {
		t.Fatalf("expected email field error, got %v", err)
	}
	if !st.equal(checkout.StateValidating, checkout.StateIdle) {
		t.Fatalf("unexpected states: %v", st.got)
	}

	empty, _ := cart.Open(context.Background(), cart.NewMemoryStorage(), "cart:empty")
	_, err = svc.CheckoutCart(context.Background(), "s2", form(), empty)
	if !errors.As(err, &fe) || fe["cart"] == "" {
		t.Fatalf("expected empty cart error, got %v", err)
	}
}

func TestCheckoutCart_ConcurrentSubmitRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	pay := mock_checkout.NewMockInitiator(ctrl)
	rec := mock_checkout.NewMockRecorder(ctrl)
	svc := newService(pay, rec, &states{})
	c := filledCart(t)

	opened := make(chan struct{})
	release := make(chan struct{})
	pay.EXPECT().Initiate(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, checkout.PaymentRequest) (checkout.Outcome, error) {
		close(opened)
		<-release
		return checkout.Outcome{PaymentRef: "pay-1", Status: "approved"}, nil
	})
	rec.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.CheckoutCart(context.Background(), "s1", form(), c)
		done <- err
	}()
	<-opened

	if _, err := svc.CheckoutCart(context.Background(), "s1", form(), c); !errors.Is(err, checkout.ErrCheckoutBusy) {
		t.Fatalf("expected ErrCheckoutBusy, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first checkout: %v", err)
	}
}

func TestCheckoutCart_RecordFailureKeepsCart(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	pay := mock_checkout.NewMockInitiator(ctrl)
	rec := mock_checkout.NewMockRecorder(ctrl)
	svc := newService(pay, rec, &states{})
	c := filledCart(t)

	pay.EXPECT().Initiate(gomock.Any(), gomock.Any()).Return(checkout.Outcome{PaymentRef: "pay-1", Status: "approved"}, nil)
	rec.EXPECT().Record(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	if _, err := svc.CheckoutCart(context.Background(), "s1", form(), c); err == nil {
		t.Fatalf("expected record error")
	}
	if c.Count() != 3 {
		t.Fatalf("cart must survive a failed record")
	}
}

func TestBookDirect_PricesByDays(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	pay := mock_checkout.NewMockInitiator(ctrl)
	rec := mock_checkout.NewMockRecorder(ctrl)
	svc := newService(pay, rec, &states{})

	pay.EXPECT().Initiate(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req checkout.PaymentRequest) (checkout.Outcome, error) {
		if !req.Total.Equal(decimal.RequireFromString("136.50")) {
			t.Fatalf("expected 3 days x 45.50, got %s", req.Total)
		}
		return checkout.Outcome{PaymentRef: "pay-9", Status: "approved"}, nil
	})
	rec.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)

	order, err := svc.BookDirect(context.Background(), "s1", form(), gear("drone", "45.50"))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 1 {
		t.Fatalf("unexpected order items: %+v", order.Items)
	}

	unavailable := gear("drone", "45.50")
	unavailable.Status = catalog.GearMaintenance
	_, err = svc.BookDirect(context.Background(), "s1", form(), unavailable)
	var fe checkout.FieldErrors
	if !errors.As(err, &fe) || fe["gear"] == "" {
		t.Fatalf("expected unavailable gear error, got %v", err)
	}
}

func TestCheckoutCart_KeepsItemsAddedDuringPayment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	pay := mock_checkout.NewMockInitiator(ctrl)
	rec := mock_checkout.NewMockRecorder(ctrl)
	svc := newService(pay, rec, &states{})

	ctx := context.Background()
	storage := cart.NewMemoryStorage()
	c, _ := cart.Open(ctx, storage, "cart:t")
	_ = c.AddItem(ctx, gear("cam", "120"))

	pay.EXPECT().Initiate(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ checkout.PaymentRequest) (checkout.Outcome, error) {
		// Another tab adds a lens and one more camera while the payment is open.
		other, err := cart.Open(ctx, storage, "cart:t")
		if err != nil {
			t.Fatalf("open second view: %v", err)
		}
		_ = other.AddItem(ctx, gear("lens", "30"))
		_ = other.AddItem(ctx, gear("cam", "120"))
		return checkout.Outcome{PaymentRef: "pay-1", Status: "approved"}, nil
	})
	rec.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)

	order, err := svc.CheckoutCart(ctx, "s1", form(), c)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 1 {
		t.Fatalf("order should hold the one camera that was priced: %+v", order.Items)
	}

	after, _ := cart.Open(ctx, storage, "cart:t")
	items := after.Items()
	if len(items) != 2 {
		t.Fatalf("expected unpaid camera and lens to remain, got %+v", items)
	}
	for _, it := range items {
		if it.Quantity != 1 {
			t.Fatalf("expected one unpaid %s, got %d", it.ID, it.Quantity)
		}
	}
}

func TestCheckoutCart_PricesFromCatalog(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	pay := mock_checkout.NewMockInitiator(ctrl)
	rec := mock_checkout.NewMockRecorder(ctrl)

	repriced := gear("lens", "35")
	svc := newService(pay, rec, &states{}, checkout.WithCatalog(gearMap{"cam": gear("cam", "120"), "lens": repriced}))

	pay.EXPECT().Initiate(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req checkout.PaymentRequest) (checkout.Outcome, error) {
		if !req.Total.Equal(decimal.NewFromInt(190)) {
			t.Fatalf("expected catalog total 190, got %s", req.Total)
		}
		return checkout.Outcome{PaymentRef: "pay-1", Status: "approved"}, nil
	})
	rec.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)

	if _, err := svc.CheckoutCart(context.Background(), "s1", form(), filledCart(t)); err != nil {
		t.Fatalf("checkout: %v", err)
	}
}

func TestCheckoutCart_RejectsUnavailableGear(t *testing.T) {
	tests := []struct {
		name string
		gear gearMap
	}{
		{"rented", gearMap{"cam": func() catalog.Equipment { e := gear("cam", "120"); e.Status = catalog.GearRented; return e }(), "lens": gear("lens", "30")}},
		{"removed", gearMap{"lens": gear("lens", "30")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			// No Initiate expectation: payment must not open.
			pay := mock_checkout.NewMockInitiator(ctrl)
			rec := mock_checkout.NewMockRecorder(ctrl)
			svc := newService(pay, rec, &states{}, checkout.WithCatalog(tt.gear))
			c := filledCart(t)

			_, err := svc.CheckoutCart(context.Background(), "s1", form(), c)
			var fe checkout.FieldErrors
			if !errors.As(err, &fe) || fe["gear"] == "" {
				t.Fatalf("expected gear field error, got %v", err)
			}
			if c.Count() != 3 {
				t.Fatalf("cart must be untouched, got %d items", c.Count())
			}
		})
	}
}
