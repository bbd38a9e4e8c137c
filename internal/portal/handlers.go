package portal

import (
	"context"
	"net/http"

	"agency/internal/api"
	"agency/internal/client"
	"agency/internal/request"
)

type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, userID string, upd client.ProfileUpdate) (*client.Profile, error)
}

type Handlers struct {
	Service  *Service
	Profiles ProfileUpdater
}

func (h Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.Profile(r.Context(), api.IdentityFromContext(r.Context()))
	if err != nil {
		api.WriteDomainError(r.Context(), w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, p)
}

func (h Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := api.IdentityFromContext(r.Context())

	var upd client.ProfileUpdate
	if !api.DecodeJSON(w, r, &upd) {
		return
	}
	// Make sure the row exists before editing it.
	if _, err := h.Service.Profile(r.Context(), id); err != nil {
		api.WriteDomainError(r.Context(), w, err)
		return
	}
	p, err := h.Profiles.UpdateProfile(r.Context(), id.UserID, upd)
	if err != nil {
		api.WriteDomainError(r.Context(), w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, p)
}

func (h Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.Dashboard(r.Context(), api.IdentityFromContext(r.Context()))
	if err != nil {
		api.WriteDomainError(r.Context(), w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, d)
}

func (h Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	var sub Submission
	if !api.DecodeJSON(w, r, &sub) {
		return
	}
	items, err := h.Service.Submit(r.Context(), api.IdentityFromContext(r.Context()), sub)
	if err != nil {
		api.WriteDomainError(r.Context(), w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"items": items})
}

// Stream pushes changes to the caller's own requests only.
func (h Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.Profile(r.Context(), api.IdentityFromContext(r.Context()))
	if err != nil {
		api.WriteDomainError(r.Context(), w, err)
		return
	}
	api.StreamRequestEvents(w, r, h.Service.Requests.Subscribe,
		func(e request.Event) bool { return e.Request.ClientID == p.ID },
		func(e request.Event) any {
			v := request.NewView(e.Request)
			return map[string]any{"type": e.Type, "request": v, "at": e.At}
		},
	)
}
