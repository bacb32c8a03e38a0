package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-shop-api/internal/application/confirmation"
	"github.com/go-shop-api/internal/application/session"
	"github.com/go-shop-api/internal/application/user"
	"github.com/go-shop-api/internal/config"
	"github.com/go-shop-api/internal/domain"
	"github.com/go-shop-api/internal/infrastructure/metrics"
	"github.com/go-shop-api/internal/transport/http/handler"
	appmiddleware "github.com/go-shop-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(deps.Metrics.Instrument)

	// 5 requests/second, burst of 10, applied to sensitive public endpoints.
	sensitiveRL := deps.Limiter
	if sensitiveRL == nil {
		sensitiveRL = appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	}

	sessionSvc := session.NewService(session.ServiceDeps{
		UserRepo:    deps.UserRepo,
		SessionRepo: deps.SessionRepo,
		JWTProvider: deps.JWTProvider,
	})
	userSvc := user.NewService(user.ServiceDeps{UserRepo: deps.UserRepo, BcryptCost: deps.BcryptCost})
	confirmSvc := confirmation.NewService(confirmation.ServiceDeps{
		Keys:        deps.KeyStore,
		Subjects:    deps.UserRepo,
		Dispatcher:  deps.Dispatcher,
		SiteURL:     cfg.SiteURL,
		TTL:         cfg.ConfirmationTTL,
		MaxAttempts: cfg.MaxVerifyAttempts,
		Metrics:     deps.Metrics,
		Tracer:      deps.Tracer,
	})

	healthH := handler.NewHealthHandler(deps.Health)
	sessionH := handler.NewSessionHandler(sessionSvc)
	userH := handler.NewUserHandler(userSvc, sessionSvc)
	emailH := handler.NewConfirmHandler(confirmSvc, domain.PurposeEmail)
	phoneH := handler.NewConfirmHandler(confirmSvc, domain.PurposePhone)

	authMw := appmiddleware.Auth(deps.JWTProvider, sessionSvc)

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/users", userH.Register)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)
			r.Post("/sessions/recreate-token", sessionH.RecreateToken)

			r.Get("/users/me", userH.Me)
			r.Put("/users/me", userH.UpdateMe)

			r.Group(func(r chi.Router) {
				r.Use(sensitiveRL.Limit)

				r.Post("/confirm-email", emailH.Confirm)
				r.Post("/confirm-email/{key}", emailH.Confirm)
				r.Post("/confirm-phone", phoneH.Confirm)
				r.Post("/confirm-phone/{key}", phoneH.Confirm)
			})

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/users/{id}", userH.Get)
				r.Post("/users/{id}/confirm-email", emailH.Resend)
				r.Post("/users/{id}/confirm-phone", phoneH.Resend)
			})
		})
	})

	return r
}
