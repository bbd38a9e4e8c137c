package checkout

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agency/internal/api"
	"agency/internal/cart"
	"agency/internal/catalog"
	"agency/pkg/logger"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderReader interface {
	GetByReference(ctx context.Context, reference string) (*Order, error)
}

type Handlers struct {
	Service *Service
	Carts   cart.Storage
	Gear    catalog.Reader
	Orders  OrderReader
}

type confirmation struct {
	Status string `json:"status"`
	Order  *Order `json:"order,omitempty"`
}

// Checkout runs the cart flow for the caller's cart.
func (h Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	key := cart.SessionKey(r)
	if key == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing "+cart.SessionHeader+" header")
		return
	}

	var form Form
	if !api.DecodeJSON(w, r, &form) {
		return
	}
	c, err := cart.Open(r.Context(), h.Carts, key)
	if err != nil {
		logger.Error(r.Context(), "open cart for checkout", "error", err)
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	order, err := h.Service.CheckoutCart(r.Context(), key, form, c)
	writeResult(r.Context(), w, order, err)
}

// Book runs the direct flow for one piece of equipment.
func (h Handlers) Book(w http.ResponseWriter, r *http.Request) {
	var form Form
	if !api.DecodeJSON(w, r, &form) {
		return
	}

	id := chi.URLParam(r, "id")
	e, err := h.Gear.Get(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "equipment not found")
		return
	}
	if err != nil {
		logger.Error(r.Context(), "load equipment", "error", err)
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	key := cart.SessionKey(r)
	if key == "" {
		key = "book:" + id + ":" + form.Email
	}
	order, err := h.Service.BookDirect(r.Context(), key, form, *e)
	writeResult(r.Context(), w, order, err)
}

func writeResult(ctx context.Context, w http.ResponseWriter, order *Order, err error) {
	var fe FieldErrors
	var pe *ProviderError
	switch {
	case err == nil:
		api.WriteJSON(w, http.StatusCreated, confirmation{Status: "confirmed", Order: order})
	case errors.As(err, &fe) && fe["gear"] != "":
		api.WriteFieldErrors(w, http.StatusConflict, "GEAR_UNAVAILABLE", "some equipment is no longer available", fe)
	case errors.As(err, &fe):
		api.WriteFieldErrors(w, http.StatusBadRequest, "VALIDATION_FAILED", "please fix the highlighted fields", fe)
	case errors.Is(err, ErrPaymentCancelled):
		// Not an error: the checkout is available again and the cart is untouched.
		api.WriteJSON(w, http.StatusOK, confirmation{Status: "cancelled"})
	case errors.Is(err, ErrCheckoutBusy):
		api.WriteError(w, http.StatusConflict, "CHECKOUT_IN_PROGRESS", "a checkout for this cart is already running")
	case errors.Is(err, ErrPaymentTimeout):
		api.WriteError(w, http.StatusGatewayTimeout, "PAYMENT_TIMEOUT", "the payment did not complete in time")
	case errors.As(err, &pe):
		api.WriteError(w, http.StatusBadGateway, "PAYMENT_FAILED", "the payment could not be processed")
	case errors.Is(err, context.Canceled):
	default:
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (h Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.GetByReference(r.Context(), chi.URLParam(r, "reference"))
	if errors.Is(err, ErrOrderNotFound) {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "order not found")
		return
	}
	if err != nil {
		logger.Error(r.Context(), "get order", "error", err)
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, o)
}
