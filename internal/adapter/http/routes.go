package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/ticketslack/internal/middleware"
	"github.com/Strob0t/ticketslack/internal/secrets"
)

// Version is reported by the API root.
const Version = "0.1.0"

// MountRoutes registers all API routes on the given chi router. The ingress
// secret and admin token are read from vault on every request.
func MountRoutes(r chi.Router, h *Handlers, vault *secrets.Vault, signatureHeader string) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": Version})
		})

		// Host events (HMAC verified when a secret is configured)
		r.With(middleware.SignedEventsFunc(vault.Getter(secrets.KeyIngressSecret), signatureHeader)).
			Post("/events/{signal}", h.HandleEvent)

		// Plugin settings
		r.Group(func(r chi.Router) {
			r.Use(middleware.StaticTokenFunc(vault.Getter(secrets.KeyAdminToken), "Authorization"))
			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.UpdateSettings)
		})
	})
}
