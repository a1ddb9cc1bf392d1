package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-healthcare-api/internal/config"
	"github.com/go-healthcare-api/internal/domain"
	"github.com/go-healthcare-api/internal/transport/http/handler"
	appmiddleware "github.com/go-healthcare-api/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Auth)
	registerRL := appmiddleware.PerMinute(cfg.RegisterRatePerMinute)

	healthH := handler.NewHealthHandler()
	registerH := handler.NewRegisterHandler(deps.Registration)
	userH := handler.NewUserHandler(deps.Users)
	roleH := handler.NewRoleHandler(deps.Roles)

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(registerRL.Limit).Post("/auth/register/patients", registerH.RegisterPatient)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/user", userH.Me)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(deps.RoleReader, domain.RoleAdmin))

				r.Get("/roles", roleH.List)
			})
		})
	})

	return r
}
