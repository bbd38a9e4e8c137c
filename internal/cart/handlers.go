package cart

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"agency/internal/api"
	"agency/internal/catalog"
	"agency/pkg/logger"
)

const SessionHeader = "X-Cart-Session"

// SessionKey picks the cart for a request: the X-Cart-Session header, or the
// signed-in user when there is one.
func SessionKey(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get(SessionHeader)); s != "" {
		return "session:" + s
	}
	if id := api.IdentityFromContext(r.Context()); id != nil && id.UserID != "" {
		return "user:" + id.UserID
	}
	return ""
}

type Handlers struct {
	Storage Storage
	Gear    catalog.Reader
}

type View struct {
	Items []Item          `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

func NewView(c *Cart) View {
	return View{Items: c.Items(), Total: c.Total(), Count: c.Count()}
}

func (h Handlers) open(w http.ResponseWriter, r *http.Request) (*Cart, bool) {
	key := SessionKey(r)
	if key == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing "+SessionHeader+" header")
		return nil, false
	}
	c, err := Open(r.Context(), h.Storage, key)
	if err != nil {
		logger.Error(r.Context(), "open cart", "error", err)
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return nil, false
	}
	return c, true
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, NewView(c))
}

type AddRequest struct {
	GearID string `json:"gearId"`
}

func (h Handlers) Add(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.GearID) == "" {
		api.WriteFieldErrors(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid input", map[string]string{"gearId": "gear id is required"})
		return
	}

	e, err := h.Gear.Get(r.Context(), strings.TrimSpace(req.GearID))
	if errors.Is(err, catalog.ErrNotFound) {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "equipment not found")
		return
	}
	if err != nil {
		logger.Error(r.Context(), "load equipment", "error", err)
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	if !e.Available() {
		api.WriteError(w, http.StatusConflict, "GEAR_UNAVAILABLE", "equipment is not available for rent")
		return
	}

	c, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := c.AddItem(r.Context(), *e); err != nil {
		h.writeErr(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, NewView(c))
}

type QuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h Handlers) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req QuantityRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := c.SetQuantity(r.Context(), chi.URLParam(r, "id"), req.Quantity); err != nil {
		h.writeErr(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, NewView(c))
}

func (h Handlers) Remove(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := c.RemoveItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeErr(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, NewView(c))
}

func (h Handlers) Clear(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := c.Clear(r.Context()); err != nil {
		h.writeErr(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, NewView(c))
}

func (h Handlers) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnknownItem):
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, ErrMissingID):
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	default:
		logger.Error(r.Context(), "update cart", "error", err)
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
