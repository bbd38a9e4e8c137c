//go:generate mockgen -source=payment.go -destination=mocks/payment_mock.go -package=mock_checkout

package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrPaymentCancelled is the customer closing the payment widget. It is
	// a normal outcome, not a failure.
	ErrPaymentCancelled = errors.New("payment cancelled")
	ErrPaymentTimeout   = errors.New("payment timed out")
	ErrCheckoutBusy     = errors.New("checkout already in progress")
)

// ProviderError is a hard failure reported by the payment provider.
type ProviderError struct {
	Provider string
	Status   string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := e.Provider + " payment failed"
	if e.Status != "" {
		msg += " (" + e.Status + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type LineItem struct {
	GearID    string          `json:"gearId"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
}

// PaymentRequest is what the payment provider is asked to charge.
type PaymentRequest struct {
	Reference  string          `json:"reference"`
	Customer   Customer        `json:"customer"`
	Items      []LineItem      `json:"items"`
	PickupDate time.Time       `json:"pickupDate"`
	ReturnDate time.Time       `json:"returnDate"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency"`
	Payment    PaymentDetails  `json:"payment"`
}

type Outcome struct {
	PaymentRef string `json:"paymentRef"`
	Status     string `json:"status"`
}

// Initiator hands a charge to the payment provider and blocks until it
// settles. Implementations return ErrPaymentCancelled when the customer backs
// out and *ProviderError for provider failures.
type Initiator interface {
	Initiate(ctx context.Context, req PaymentRequest) (Outcome, error)
}

// Order is a confirmed booking.
type Order struct {
	Reference     string          `json:"reference"`
	PaymentRef    string          `json:"paymentRef"`
	PaymentStatus string          `json:"paymentStatus"`
	Customer      Customer        `json:"customer"`
	Items         []LineItem      `json:"items"`
	PickupDate    time.Time       `json:"pickupDate"`
	ReturnDate    time.Time       `json:"returnDate"`
	Days          int             `json:"days"`
	Notes         string          `json:"notes,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Recorder stores confirmed orders.
type Recorder interface {
	Record(ctx context.Context, o Order) error
}

func providerError(provider string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) || errors.Is(err, ErrPaymentCancelled) || errors.Is(err, ErrPaymentTimeout) {
		return err
	}
	return &ProviderError{Provider: provider, Err: fmt.Errorf("initiate: %w", err)}
}
