package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter mounts the API. middlewares run before authentication, in order.
func NewRouter(s *Server, apiKeys []string, middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares...)
	r.Use(BearerAuthMiddleware(apiKeys))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorResponseCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorResponseCodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Get("/search", s.KeywordSearch)
	r.Get("/search/semantic", s.SemanticSearch)
	r.Get("/search/semantic/status", s.SemanticStatus)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuthorized)
		r.Put("/entities/{id}", s.PutEntity)
		r.Delete("/entities/{id}", s.DeleteEntity)
		r.Post("/admin/reembed", s.Reembed)
	})

	return r
}
