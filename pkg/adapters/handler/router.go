package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wadjakorntonsri/go-redirects/pkg/config"
	"github.com/wadjakorntonsri/go-redirects/pkg/logger"
	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

// NewRouter creates and configures the main application router.
// Fixed routes win over /{group}/{slug}. Only the two-segment ones shadow
// a redirect key; domain.ReservedKeys lists them and the service rejects
// those keys.
func NewRouter(cfg *config.Config, service ports.RedirectService, resolver ports.Resolver) http.Handler {
	h := NewHTTPHandler(service, resolver)
	mw := NewMiddleware(cfg)
	authHandler := NewAuthHandler(cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.WithLogging)

	// Public Routes
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	r.Get("/auth/google/login", authHandler.Login)
	r.Get("/auth/google/callback", authHandler.Callback)
	r.Get("/auth/logout", authHandler.Logout)
	r.Get("/{group}/{slug}", h.Resolve)

	// Admin Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.AuthMiddleware)

		r.Post("/redirects", h.Create)
		r.Get("/redirects", h.List)
		r.Get("/redirects/{group}/{slug}", h.Get)
		r.Patch("/redirects/{group}/{slug}", h.Update)
		r.Put("/redirects/{group}/{slug}", h.Update)
		r.Delete("/redirects/{group}/{slug}", h.Delete)
		r.Get("/users/{user}/redirects", h.ListByUser)
	})

	return r
}
