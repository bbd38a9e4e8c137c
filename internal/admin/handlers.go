package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"agency/internal/api"
	"agency/internal/client"
	"agency/internal/optimistic"
	"agency/internal/request"
	"agency/internal/status"
)

// TierUpdater is the part of the client repository the console needs.
type TierUpdater interface {
	UpdateTier(ctx context.Context, clientID string, tier client.Tier, actor string) (*client.Profile, error)
}

type Handlers struct {
	Console *Console
	Store   *request.Store
	Clients TierUpdater
}

func (h Handlers) ensureLoaded(r *http.Request) error {
	if h.Console.Loaded() && r.URL.Query().Get("refresh") == "" {
		return nil
	}
	return h.Console.Load(r.Context())
}

// List serves the table view. Query: status (repeatable or CSV), q, refresh.
func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	if err := h.ensureLoaded(r); err != nil {
		api.WriteDomainError(r.Context(), w, err)
		return
	}

	var statuses []status.Admin
	for _, raw := range r.URL.Query()["status"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s == "" {
				continue
			}
			a, err := status.ParseAdmin(s)
			if err != nil {
				api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
				return
			}
			statuses = append(statuses, a)
		}
	}

	items := h.Console.Table(Query{Statuses: statuses, Text: r.URL.Query().Get("q")})
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Board(w http.ResponseWriter, r *http.Request) {
	if err := h.ensureLoaded(r); err != nil {
		api.WriteDomainError(r.Context(), w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"columns": h.Console.Board()})
}

type StatusRequest struct {
	Status string `json:"status"`
	// ClientStatus lets callers express the change in client vocabulary.
	ClientStatus string `json:"clientStatus"`
}

func (h Handlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req StatusRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	var next status.Admin
	switch {
	case req.Status != "":
		a, err := status.ParseAdmin(req.Status)
		if err != nil {
			api.WriteFieldErrors(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid input", map[string]string{"status": "unknown status"})
			return
		}
		next = a
	case req.ClientStatus != "":
		c, err := status.ParseClient(req.ClientStatus)
		if err != nil {
			api.WriteFieldErrors(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid input", map[string]string{"clientStatus": "unknown status"})
			return
		}
		next, _ = status.ToAdmin(c)
	default:
		api.WriteFieldErrors(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid input", map[string]string{"status": "status is required"})
		return
	}

	v, err := h.Console.ChangeStatus(r.Context(), id, next, api.Actor(r.Context()))
	if err != nil {
		writeMutationError(r.Context(), w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, v)
}

type PriorityRequest struct {
	Priority string `json:"priority"`
}

func (h Handlers) UpdatePriority(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req PriorityRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}
	p, err := request.ParsePriority(req.Priority)
	if err != nil {
		api.WriteFieldErrors(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid input", map[string]string{"priority": "unknown priority"})
		return
	}

	v, err := h.Console.ChangePriority(r.Context(), id, p, api.Actor(r.Context()))
	if err != nil {
		writeMutationError(r.Context(), w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, v)
}

func writeMutationError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, optimistic.ErrPending) {
		api.WriteError(w, http.StatusConflict, "UPDATE_IN_PROGRESS", "another change to this request is still saving")
		return
	}
	api.WriteDomainError(ctx, w, err)
}

func (h Handlers) Events(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteDomainError(r.Context(), w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

type streamEvent struct {
	Type    request.EventType `json:"type"`
	Request request.View      `json:"request"`
	At      time.Time         `json:"at"`
}

// Stream pushes every change as a server-sent event.
func (h Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	api.StreamRequestEvents(w, r, h.Store.Subscribe, nil, func(e request.Event) any {
		return streamEvent{Type: e.Type, Request: request.NewView(e.Request), At: e.At}
	})
}

type TierRequest struct {
	Tier string `json:"tier"`
}

func (h Handlers) UpdateTier(w http.ResponseWriter, r *http.Request) {
	var req TierRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}
	tier, err := client.ParseTier(req.Tier)
	if err != nil {
		api.WriteFieldErrors(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid input", map[string]string{"tier": "unknown tier"})
		return
	}

	p, err := h.Clients.UpdateTier(r.Context(), chi.URLParam(r, "id"), tier, api.Actor(r.Context()))
	if err != nil {
		api.WriteDomainError(r.Context(), w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, p)
}
