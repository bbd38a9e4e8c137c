package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"agency/internal/admin"
	"agency/internal/api"
	"agency/internal/cart"
	"agency/internal/catalog"
	"agency/internal/checkout"
	"agency/internal/portal"
	"agency/pkg/config"
)

// Dependencies are built once in main and shared by every handler.
type Dependencies struct {
	Cfg      config.Config
	Catalog  catalog.Reader
	Carts    cart.Storage
	Checkout *checkout.Service
	Orders   checkout.OrderReader
	Portal   portal.Handlers
	Admin    admin.Handlers
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(api.RequestLogger)
	r.Use(api.CORSMiddleware(api.CORSOptions{AllowedOrigins: deps.Cfg.AllowedOrigins}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	gearHandlers := catalog.Handlers{Gear: deps.Catalog}
	cartHandlers := cart.Handlers{Storage: deps.Carts, Gear: deps.Catalog}
	checkoutHandlers := checkout.Handlers{
		Service: deps.Checkout,
		Carts:   deps.Carts,
		Gear:    deps.Catalog,
		Orders:  deps.Orders,
	}

	r.Route("/v1", func(r chi.Router) {
		// Storefront: guests are keyed by X-Cart-Session, signed-in users by id.
		r.Group(func(r chi.Router) {
			r.Use(api.OptionalAuth(deps.Cfg))

			r.Get("/services", gearHandlers.Services)
			r.Get("/gear", gearHandlers.List)
			r.Get("/gear/{id}", gearHandlers.Get)
			r.Post("/gear/{id}/book", checkoutHandlers.Book)

			r.Get("/cart", cartHandlers.Get)
			r.Post("/cart/items", cartHandlers.Add)
			r.Put("/cart/items/{id}", cartHandlers.SetQuantity)
			r.Delete("/cart/items/{id}", cartHandlers.Remove)
			r.Delete("/cart", cartHandlers.Clear)

			r.Post("/checkout", checkoutHandlers.Checkout)
			r.Get("/orders/{reference}", checkoutHandlers.GetOrder)
		})

		// Client dashboard
		r.Route("/portal", func(r chi.Router) {
			r.Use(api.SessionAuth(deps.Cfg))

			r.Get("/profile", deps.Portal.Profile)
			r.Patch("/profile", deps.Portal.UpdateProfile)
			r.Get("/requests", deps.Portal.Dashboard)
			r.Post("/requests", deps.Portal.Submit)
			r.Get("/requests/stream", deps.Portal.Stream)
		})

		// Admin console
		r.Route("/admin", func(r chi.Router) {
			r.Use(api.SessionAuth(deps.Cfg))
			r.Use(api.RequireRole(deps.Cfg.Auth.AdminRole))

			r.Get("/requests", deps.Admin.List)
			r.Get("/board", deps.Admin.Board)
			r.Get("/requests/stream", deps.Admin.Stream)
			r.Patch("/requests/{id}/status", deps.Admin.UpdateStatus)
			r.Patch("/requests/{id}/priority", deps.Admin.UpdatePriority)
			r.Get("/requests/{id}/events", deps.Admin.Events)
			r.Patch("/clients/{id}/tier", deps.Admin.UpdateTier)
		})
	})

	return r
}
