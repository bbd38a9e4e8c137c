// Package payment adapts Mercado Pago to the checkout payment interface.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"

	"agency/internal/checkout"
	"agency/pkg/logger"
)

const Provider = "mercadopago"

var (
	ErrMissingAccessToken = errors.New("missing MERCADOPAGO_ACCESS_TOKEN")
	ErrNotConfigured      = errors.New("mercado pago gateway not configured")
)

// Mock tokens let local checkouts exercise every outcome.
const (
	MockTokenCancel = "mock-cancel"
	MockTokenReject = "mock-reject"
)

type MercadoPago struct {
	client   payment.Client
	mockMode bool
}

func NewMercadoPago(accessToken string, mock bool) (*MercadoPago, error) {
	if mock {
		logger.Info(context.Background(), "payment gateway mock mode enabled")
		return &MercadoPago{mockMode: true}, nil
	}
	if accessToken == "" {
		return nil, ErrMissingAccessToken
	}

	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}
	return &MercadoPago{client: payment.NewClient(cfg)}, nil
}

// Initiate creates the payment with the card token the checkout widget
// produced and maps the provider status onto checkout outcomes.
func (g *MercadoPago) Initiate(ctx context.Context, req checkout.PaymentRequest) (checkout.Outcome, error) {
	if g != nil && g.mockMode {
		return g.mock(ctx, req)
	}
	if g == nil || g.client == nil {
		return checkout.Outcome{}, &checkout.ProviderError{Provider: Provider, Err: ErrNotConfigured}
	}

	body, err := requestPayload(req)
	if err != nil {
		return checkout.Outcome{}, err
	}
	var mpReq payment.Request
	if err := json.Unmarshal(body, &mpReq); err != nil {
		return checkout.Outcome{}, fmt.Errorf("build payment request: %w", err)
	}

	logger.Debug(ctx, "mercadopago create start", "reference", req.Reference)
	resp, err := g.client.Create(ctx, mpReq)
	if err != nil {
		if ctx.Err() != nil {
			return checkout.Outcome{}, ctx.Err()
		}
		return checkout.Outcome{}, &checkout.ProviderError{Provider: Provider, Err: err}
	}
	logger.Info(ctx, "mercadopago payment created", "reference", req.Reference, "payment_id", resp.ID, "status", resp.Status)

	return outcome(fmt.Sprintf("%d", resp.ID), resp.Status)
}

func outcome(id, status string) (checkout.Outcome, error) {
	switch status {
	case "approved", "authorized", "in_process", "pending":
		return checkout.Outcome{PaymentRef: id, Status: status}, nil
	case "cancelled":
		return checkout.Outcome{}, checkout.ErrPaymentCancelled
	default:
		return checkout.Outcome{}, &checkout.ProviderError{Provider: Provider, Status: status}
	}
}

// requestPayload builds the JSON body of a Mercado Pago payment.
func requestPayload(req checkout.PaymentRequest) ([]byte, error) {
	if strings.TrimSpace(req.Payment.Token) == "" {
		return nil, &checkout.ProviderError{Provider: Provider, Status: "missing_token", Err: errors.New("no card token from the payment widget")}
	}
	first, last := splitName(req.Customer.Name)
	installments := req.Payment.Installments
	if installments <= 0 {
		installments = 1
	}

	amount, _ := req.Total.Round(2).Float64()
	desc := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		desc = append(desc, fmt.Sprintf("%dx %s", it.Quantity, it.Title))
	}

	return json.Marshal(map[string]any{
		"transaction_amount": amount,
		"token":              req.Payment.Token,
		"payment_method_id":  req.Payment.MethodID,
		"installments":       installments,
		"description":        strings.Join(desc, ", "),
		"external_reference": req.Reference,
		"payer": map[string]any{
			"email":      req.Customer.Email,
			"first_name": first,
			"last_name":  last,
		},
		"metadata": map[string]any{
			"pickup_date": req.PickupDate.Format(checkout.DateLayout),
			"return_date": req.ReturnDate.Format(checkout.DateLayout),
			"phone":       req.Customer.Phone,
		},
	})
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func (g *MercadoPago) mock(ctx context.Context, req checkout.PaymentRequest) (checkout.Outcome, error) {
	select {
	case <-ctx.Done():
		return checkout.Outcome{}, ctx.Err()
	default:
	}
	switch req.Payment.Token {
	case MockTokenCancel:
		return checkout.Outcome{}, checkout.ErrPaymentCancelled
	case MockTokenReject:
		return checkout.Outcome{}, &checkout.ProviderError{Provider: Provider, Status: "rejected"}
	}
	id := strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
	logger.Info(ctx, "mock payment approved", "reference", req.Reference, "payment_id", id)
	return checkout.Outcome{PaymentRef: id, Status: "approved"}, nil
}
