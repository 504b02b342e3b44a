package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ARamos00/nursery-tracker/internal/config"
	"github.com/ARamos00/nursery-tracker/internal/http/handler"
	"github.com/ARamos00/nursery-tracker/internal/http/middleware"
	"github.com/ARamos00/nursery-tracker/internal/service"
)

// NewRouter assembles the API surface. Mutating plant routes sit inside the
// idempotency middleware; every /api/v1 route requires an authenticated owner.
func NewRouter(
	cfg *config.Config,
	gate *service.IdempotencyGate,
	limiter *middleware.RateLimiter,
	plants *handler.PlantHandler,
	webhooks *handler.WebhookHandler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticator(cfg.JWTSecret))
		if limiter != nil {
			r.Use(limiter.Middleware())
		}
		r.Use(middleware.Idempotency(gate, cfg.IdempotencyEnabled))

		r.Route("/plants", func(r chi.Router) {
			r.Get("/", plants.List)
			r.Post("/", plants.Create)
			r.Get("/{id}", plants.Get)
			r.Patch("/{id}", plants.Update)
			r.Put("/{id}", plants.Update)
			r.Delete("/{id}", plants.Delete)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Route("/endpoints", func(r chi.Router) {
				r.Get("/", webhooks.ListEndpoints)
				r.Post("/", webhooks.CreateEndpoint)
				r.Get("/{id}", webhooks.GetEndpoint)
				r.Patch("/{id}", webhooks.UpdateEndpoint)
				r.Put("/{id}", webhooks.UpdateEndpoint)
				r.Delete("/{id}", webhooks.DeleteEndpoint)
			})
			r.Route("/deliveries", func(r chi.Router) {
				r.Get("/", webhooks.ListDeliveries)
				r.Get("/{id}", webhooks.GetDelivery)
			})
		})
	})

	return r
}
