package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/talentcove/company-switch/internal/api/handlers"
	"github.com/talentcove/company-switch/internal/api/middleware"
	"github.com/talentcove/company-switch/internal/auth"
	"github.com/talentcove/company-switch/internal/credstore"
	"github.com/talentcove/company-switch/internal/journal"
	"github.com/talentcove/company-switch/internal/rolestore"
	"github.com/talentcove/company-switch/internal/selection"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	RoleStore      *rolestore.Client
	Cache          *selection.Cache
	Journal        *journal.Recorder
	Credentials    *credstore.Service
	AsynqClient    *asynq.Client
	AutoRepair     bool     // enqueue a repair task when a run fails mid-plan
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		// Default to localhost for development - configure in production
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	selectionHandler := handlers.NewSelectionHandler(cfg.RoleStore, cfg.Cache, cfg.Journal, cfg.AsynqClient, cfg.AutoRepair, cfg.Logger)
	runHandler := handlers.NewRunHandler(cfg.Journal)
	credentialHandler := handlers.NewCredentialHandler(cfg.Credentials)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))

			// Default-company pipeline. The POST is single-flight per user:
			// the coordinator provides no mutual exclusion of its own, so its
			// callers - us - must not overlap runs for the same user.
			r.Route("/default-company", func(r chi.Router) {
				r.With(middleware.SingleFlight()).Post("/", selectionHandler.SetDefault)
				r.Get("/", selectionHandler.Current)
				r.Delete("/", selectionHandler.Clear)
			})

			// Run journal
			r.Route("/runs", func(r chi.Router) {
				r.Get("/", runHandler.List)
				r.Get("/{id}", runHandler.Get)
			})

			// Service credentials for the role store
			r.Route("/store-credentials", func(r chi.Router) {
				r.Use(middleware.RequireRole("admin"))
				r.Get("/", credentialHandler.List)
				r.Post("/", credentialHandler.Create)
				r.Delete("/{id}", credentialHandler.Delete)
			})
		})
	})

	return &Router{r}
}
