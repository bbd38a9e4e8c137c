// Package checkout runs the booking flow: form validation, rental pricing,
// payment initiation and order confirmation.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"agency/internal/cart"
	"agency/internal/catalog"
	"agency/pkg/logger"
)

type State string

const (
	StateIdle        State = "idle"
	StateValidating  State = "validating"
	StateSubmitting  State = "submitting"
	StatePaymentOpen State = "payment_open"
	StateSucceeded   State = "succeeded"
)

// Flow records the states one checkout attempt went through.
type Flow struct {
	key     string
	history []State
	hook    func(key string, s State)
}

func (f *Flow) set(s State) {
	f.history = append(f.history, s)
	if f.hook != nil {
		f.hook(f.key, s)
	}
}

func (f *Flow) State() State {
	if len(f.history) == 0 {
		return StateIdle
	}
	return f.history[len(f.history)-1]
}

// Cart is the part of *cart.Cart the cart flow reads and settles.
type Cart interface {
	Items() []cart.Item
	RemovePurchased(ctx context.Context, purchased map[string]int) error
}

type Service struct {
	initiator Initiator
	recorder  Recorder
	gear      catalog.Reader
	provider  string
	timeout   time.Duration
	currency  string
	now       func() time.Time
	newRef    func() string
	hook      func(key string, s State)

	mu   sync.Mutex
	busy map[string]bool
}

type Option func(*Service)

// WithTimeout bounds how long a payment may stay open.
func WithTimeout(d time.Duration) Option { return func(s *Service) { s.timeout = d } }

// WithCatalog makes the cart flow re-read every line from the catalog, so
// gear rented out or repriced since it was added is caught before payment.
func WithCatalog(gear catalog.Reader) Option { return func(s *Service) { s.gear = gear } }

func WithCurrency(c string) Option { return func(s *Service) { s.currency = c } }

func WithProvider(name string) Option { return func(s *Service) { s.provider = name } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithReferences(next func() string) Option { return func(s *Service) { s.newRef = next } }

// WithStateHook observes every state change, keyed by checkout session.
func WithStateHook(fn func(key string, s State)) Option { return func(s *Service) { s.hook = fn } }

func NewService(initiator Initiator, recorder Recorder, opts ...Option) *Service {
	s := &Service{
		initiator: initiator,
		recorder:  recorder,
		provider:  "payment provider",
		timeout:   2 * time.Minute,
		currency:  "USD",
		now:       time.Now,
		newRef:    newReference,
		busy:      map[string]bool{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func newReference() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func (s *Service) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[key] {
		return false
	}
	s.busy[key] = true
	return true
}

func (s *Service) release(key string) {
	s.mu.Lock()
	delete(s.busy, key)
	s.mu.Unlock()
}

// CheckoutCart charges the cart lines for the shared pickup and return
// dates. Only the purchased quantities leave the cart, and only after the
// order is recorded; a cancelled or failed payment leaves it as it was.
func (s *Service) CheckoutCart(ctx context.Context, key string, form Form, c Cart) (*Order, error) {
	var lines []LineItem
	return s.run(ctx, key, form, func(ctx context.Context, _ int) ([]LineItem, decimal.Decimal, error) {
		items := c.Items()
		if len(items) == 0 {
			return nil, decimal.Zero, FieldErrors{"cart": "cart is empty"}
		}
		var err error
		lines, err = s.cartLines(ctx, items)
		if err != nil {
			return nil, decimal.Zero, err
		}
		total := decimal.Zero
		for _, l := range lines {
			total = total.Add(l.Amount)
		}
		return lines, total, nil
	}, func(ctx context.Context) error {
		purchased := make(map[string]int, len(lines))
		for _, l := range lines {
			purchased[l.GearID] += l.Quantity
		}
		return c.RemovePurchased(ctx, purchased)
	})
}

// cartLines prices cart items, from the catalog when one is configured.
func (s *Service) cartLines(ctx context.Context, items []cart.Item) ([]LineItem, error) {
	lines := make([]LineItem, 0, len(items))
	var unavailable []string
	for _, it := range items {
		title, price := it.Title, it.Price
		if s.gear != nil {
			e, err := s.gear.Get(ctx, it.ID)
			switch {
			case errors.Is(err, catalog.ErrNotFound):
				unavailable = append(unavailable, it.Title)
				continue
			case err != nil:
				return nil, fmt.Errorf("load equipment %s: %w", it.ID, err)
			case !e.Available():
				unavailable = append(unavailable, e.Title)
				continue
			}
			title, price = e.Title, e.Price
		}
		lines = append(lines, LineItem{
			GearID:    it.ID,
			Title:     title,
			UnitPrice: price,
			Quantity:  it.Quantity,
			Amount:    price.Mul(decimal.NewFromInt(int64(it.Quantity))),
		})
	}
	if len(unavailable) > 0 {
		return nil, FieldErrors{"gear": "no longer available: " + strings.Join(unavailable, ", ")}
	}
	return lines, nil
}

// BookDirect books one piece of equipment from its detail page at
// days times the daily rate.
func (s *Service) BookDirect(ctx context.Context, key string, form Form, e catalog.Equipment) (*Order, error) {
	return s.run(ctx, key, form, func(_ context.Context, days int) ([]LineItem, decimal.Decimal, error) {
		if !e.Available() {
			return nil, decimal.Zero, FieldErrors{"gear": "equipment is not available for rent"}
		}
		amount := DirectSubtotal(e.Price, days)
		return []LineItem{{GearID: e.ID, Title: e.Title, UnitPrice: e.Price, Quantity: 1, Amount: amount}}, amount, nil
	}, nil)
}

// pricer returns FieldErrors for problems the customer can fix; any other
// error aborts the checkout.
type pricer func(ctx context.Context, days int) ([]LineItem, decimal.Decimal, error)

func (s *Service) run(ctx context.Context, key string, form Form, price pricer, onSuccess func(context.Context) error) (*Order, error) {
	if !s.acquire(key) {
		return nil, ErrCheckoutBusy
	}
	defer s.release(key)

	f := &Flow{key: key, hook: s.hook}
	f.set(StateValidating)

	fe := form.Validate()
	if fe == nil {
		fe = FieldErrors{}
	}
	var pickup, ret time.Time
	days := 0
	if len(fe) == 0 {
		pickup, ret = form.Dates()
		days = RentalDays(pickup, ret)
	}
	lines, total, err := price(ctx, days)
	var more FieldErrors
	if errors.As(err, &more) {
		for k, v := range more {
			fe[k] = v
		}
	} else if err != nil {
		f.set(StateIdle)
		return nil, err
	}
	if len(fe) > 0 {
		f.set(StateIdle)
		return nil, fe
	}

	f.set(StateSubmitting)
	req := PaymentRequest{
		Reference:  s.newRef(),
		Customer:   Customer{Name: form.CustomerName, Email: form.Email, Phone: form.Phone},
		Items:      lines,
		PickupDate: pickup,
		ReturnDate: ret,
		Total:      total,
		Currency:   s.currency,
		Payment:    form.Payment,
	}

	f.set(StatePaymentOpen)
	out, err := s.initiate(ctx, req)
	if err != nil {
		f.set(StateIdle)
		if errors.Is(err, ErrPaymentCancelled) {
			logger.Info(ctx, "payment cancelled by customer", "reference", req.Reference)
		} else {
			logger.Error(ctx, "payment failed", "reference", req.Reference, "error", err)
		}
		return nil, err
	}

	order := Order{
		Reference:     req.Reference,
		PaymentRef:    out.PaymentRef,
		PaymentStatus: out.Status,
		Customer:      req.Customer,
		Items:         lines,
		PickupDate:    pickup,
		ReturnDate:    ret,
		Days:          days,
		Notes:         form.Notes,
		Total:         total,
		Currency:      s.currency,
		CreatedAt:     s.now(),
	}
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, order); err != nil {
			f.set(StateIdle)
			logger.Error(ctx, "payment captured but order not recorded", "reference", order.Reference, "payment_ref", order.PaymentRef, "error", err)
			return nil, fmt.Errorf("record order %s: %w", order.Reference, err)
		}
	}
	if onSuccess != nil {
		if err := onSuccess(ctx); err != nil {
			logger.Warn(ctx, "remove purchased items from cart", "reference", order.Reference, "error", err)
		}
	}

	f.set(StateSucceeded)
	logger.Info(ctx, "order confirmed", "reference", order.Reference, "total", order.Total.StringFixed(2))
	return &order, nil
}

func (s *Service) initiate(ctx context.Context, req PaymentRequest) (Outcome, error) {
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.initiator.Initiate(pctx, req)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}
	if errors.Is(pctx.Err(), context.DeadlineExceeded) {
		return Outcome{}, ErrPaymentTimeout
	}
	return Outcome{}, providerError(s.provider, err)
}
