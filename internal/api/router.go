package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/isdelr/accounts-api/internal/api/handlers"
	"github.com/isdelr/accounts-api/internal/auth"
	"github.com/isdelr/accounts-api/internal/config"
	"github.com/isdelr/accounts-api/internal/metrics"
	"github.com/isdelr/accounts-api/internal/services"
)

// NewRouter creates and configures a new Chi router.
func NewRouter(
	cfg *config.Config,
	userService services.UserServiceProvider,
	imageService services.ImageServiceProvider,
	health handlers.HealthReporter,
) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.NotFound(emptyStatus(http.StatusNotFound))
	r.MethodNotAllowed(emptyStatus(http.StatusMethodNotAllowed))

	loc := cfg.DisplayLocation()
	userHandler := handlers.NewUserHandler(userService, loc)
	imageHandler := handlers.NewImageHandler(imageService, cfg.MaxUploadBytes, loc)
	healthHandler := handlers.NewHealthHandler(health)

	probe := methods{http.MethodGet: http.HandlerFunc(healthHandler.Check)}
	r.Group(func(r chi.Router) {
		r.Use(handlers.NoStore, healthGate(health))
		r.Handle("/healthz", probe)
		r.Handle("/health", probe)
	})

	if cfg.MetricsEnabled {
		r.Handle("/metrics", methods{http.MethodGet: metrics.Handler()})
	}

	authenticated := auth.BasicAuthMiddleware(userService)
	verified := auth.RequireVerifiedMiddleware(cfg.RequireVerification)
	gated := func(h http.HandlerFunc) http.Handler {
		return authenticated(verified(h))
	}

	r.Route("/users", func(r chi.Router) {
		r.Use(healthGate(health))

		r.Handle("/", methods{
			http.MethodPost: http.HandlerFunc(userHandler.Register),
		})
		r.Handle("/verify", methods{
			http.MethodGet: http.HandlerFunc(userHandler.Verify),
		})
		r.Handle("/self", methods{
			http.MethodGet: gated(userHandler.GetSelf),
			http.MethodPut: authenticated(http.HandlerFunc(userHandler.UpdateSelf)),
		})
		r.Handle("/self/pic", methods{
			http.MethodGet:    gated(imageHandler.Get),
			http.MethodPost:   gated(imageHandler.Upload),
			http.MethodDelete: gated(imageHandler.Delete),
		})
	})

	return r
}
