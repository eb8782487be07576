package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/archgraph/internal/queryservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler and metricsHandler are mounted when non-nil.
func NewRouter(svc *queryservice.Service, authEnabled bool, token string, sseHandler, metricsHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		r.Get("/meta", h.Meta)

		r.Get("/features", h.ListFeatures)
		r.Get("/features/{id}", h.GetFeature)
		r.Get("/features/{id}/dependents", h.Dependents)
		r.Get("/graph", h.Graph)

		r.Get("/code/*", h.GetCode)
		r.Get("/documents/*", h.GetDocument)
		r.Get("/interfaces/{id}", h.GetInterface)
		r.Get("/shared-types/{id}", h.GetSharedType)

		r.Get("/terms", h.SearchTerms)
		r.Get("/terms/{name}", h.GetTerm)

		r.Get("/report", h.Report)
		r.Get("/orphans", h.Orphans)

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
