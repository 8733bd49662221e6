package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/timeclock-api/internal/application/timeclock"
	"github.com/timeclock-api/internal/config"
	"github.com/timeclock-api/internal/domain"
	"github.com/timeclock-api/internal/transport/http/handler"
	appmiddleware "github.com/timeclock-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, loc *time.Location, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10, applied to the mutating clock endpoints.
	clockRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	timeclockSvc := timeclock.NewService(timeclock.ServiceDeps{
		Store: deps.Store,
		Clock: deps.Clock,
		Sink:  deps.Sink,
		Locks: deps.Locks,
	})

	healthH := handler.NewHealthHandler()
	timeclockH := handler.NewTimeclockHandler(timeclockSvc, loc)

	r.Route("/v1", func(r chi.Router) {
		// Public routes (no auth)
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.Get("/test", healthH.Test)
		r.Post("/test", healthH.Test)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.With(clockRL.Limit).Post("/timeclock/clock-in", timeclockH.ClockIn)
			r.With(clockRL.Limit).Post("/timeclock/clock-out", timeclockH.ClockOut)
			r.Get("/timeclock/session", timeclockH.Current)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/timeclock/sessions", timeclockH.Report)
			})
		})
	})

	return r
}
