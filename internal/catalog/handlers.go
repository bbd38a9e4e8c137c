package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"agency/internal/api"
	"agency/pkg/logger"
)

// Reader is the read side of the equipment repository.
type Reader interface {
	List(ctx context.Context, f ListFilter) ([]Equipment, error)
	Get(ctx context.Context, id string) (*Equipment, error)
}

type Handlers struct {
	Gear Reader
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	f := ListFilter{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Status:   GearStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
	}
	items, err := h.Gear.List(r.Context(), f)
	if err != nil {
		logger.Error(r.Context(), "list equipment", "error", err)
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.Gear.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "equipment not found")
		return
	}
	if err != nil {
		logger.Error(r.Context(), "get equipment", "error", err)
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, e)
}

func (h Handlers) Services(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": Services})
}
