package router

import (
	"net/http"

	"tillsync/internal/handler"
	"tillsync/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the handlers the router wires up.
type Config struct {
	Handler        *handler.Handler
	SessionHandler *handler.SessionHandler
	CatalogHandler *handler.CatalogHandler
	OrderHandler   *handler.OrderHandler
	SyncHandler    *handler.SyncHandler
	StateSocket    http.Handler
}

// New creates and configures the local HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	// The UI is served from a different local origin (dev server or
	// packaged shell), so CORS stays permissive.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
		}

		if cfg.SessionHandler != nil {
			r.Post("/session", cfg.SessionHandler.SetSession)
			r.Get("/session", cfg.SessionHandler.GetSession)
		}

		if cfg.CatalogHandler != nil {
			r.Get("/categories", cfg.CatalogHandler.ListCategories)
			r.Put("/categories", cfg.CatalogHandler.UpsertCategory)
			r.Route("/products", func(r chi.Router) {
				r.Get("/", cfg.CatalogHandler.ListProducts)
				r.Put("/", cfg.CatalogHandler.UpsertProduct)
				r.Get("/{id}", cfg.CatalogHandler.GetProduct)
				r.Get("/{id}/stock", cfg.CatalogHandler.GetStock)
			})
		}

		if cfg.OrderHandler != nil {
			r.Route("/orders", func(r chi.Router) {
				r.Post("/", cfg.OrderHandler.CreateOrder)
				r.Get("/", cfg.OrderHandler.ListOrders)
				r.Get("/{id}", cfg.OrderHandler.GetOrder)
			})
		}

		if cfg.SyncHandler != nil {
			r.Route("/sync", func(r chi.Router) {
				r.Post("/", cfg.SyncHandler.Trigger)
				r.Get("/state", cfg.SyncHandler.State)
				r.Get("/log", cfg.SyncHandler.Log)
			})
		}
	})

	if cfg.StateSocket != nil {
		r.Handle("/ws/state", cfg.StateSocket)
	}

	return r
}
