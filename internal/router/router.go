package router

import (
	"fz-pos-api/internal/handler"
	"fz-pos-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	SessionHandler *handler.SessionHandler
	CatalogHandler *handler.CatalogHandler
	AdminHandler   *handler.AdminHandler
	LogHandler     *handler.LogHandler
	AllowedOrigins []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		r.Route("/pos", func(r chi.Router) {
			if cfg.CatalogHandler != nil {
				r.Get("/products", cfg.CatalogHandler.Browse)
				r.Post("/generate-qr", cfg.CatalogHandler.GenerateQR)
			}

			if cfg.SessionHandler != nil {
				h := cfg.SessionHandler
				r.Post("/sessions", h.Create)
				r.Route("/sessions/{id}", func(r chi.Router) {
					r.Get("/", h.Get)
					r.Delete("/", h.Delete)
					r.Get("/ws", h.Stream)
					r.Post("/keys", h.Key)
					r.Post("/scan", h.Scan)
					r.Post("/search", h.Search)
					r.Delete("/cart", h.ClearCart)
					r.Post("/cart/items", h.AddItem)
					r.Patch("/cart/items/{productID}", h.UpdateItem)
					r.Delete("/cart/items/{productID}", h.RemoveItem)
					r.Post("/checkout", h.Checkout)
					r.Post("/payment/check", h.CheckPayment)
					r.Post("/payment/cancel", h.CancelPayment)
				})
			}
		})

		r.Route("/admin", func(r chi.Router) {
			if cfg.AdminHandler != nil {
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Post("/cleanup", cfg.AdminHandler.RunCleanup)
			}
			if cfg.LogHandler != nil {
				r.Get("/audit", cfg.LogHandler.GetAuditLogs)
			}
		})
	})

	return r
}
