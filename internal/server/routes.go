package server

import (
	"github.com/go-chi/chi/v5"
)

// SetupRoutes registers every endpoint on router.
func SetupRoutes(router chi.Router, h *Handlers) {
	router.Get("/health", h.Health)

	router.Route("/api", func(r chi.Router) {
		r.Post("/refresh", h.Refresh)
		r.Get("/events", h.Events)

		r.Get("/models", h.ListModels)
		r.Get("/models/{name}", h.DescribeModel)

		r.Post("/compile", h.Compile)
		r.Post("/query", h.Query)

		r.Post("/business-context", h.BusinessContext)
		r.Post("/classify", h.Classify)
	})
}
