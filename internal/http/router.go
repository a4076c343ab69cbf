package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Carts          CartService
	Checkout       CheckoutService
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	JWTSecret      []byte
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	cartHandler := NewCartHandler(cfg.Carts, cfg.RequestTimeout, cfg.Logger)
	checkoutHandler := NewCheckoutHandler(cfg.Checkout, cfg.RequestTimeout, cfg.Logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticator(cfg.JWTSecret))

		r.Route("/carts", func(r chi.Router) {
			r.Post("/", cartHandler.CreateCart)
			r.Route("/{cid}", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Put("/", cartHandler.ReplaceItems)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/purchase", checkoutHandler.Purchase)

				r.Post("/products/{pid}", cartHandler.AddItem)
				r.Put("/products/{pid}", cartHandler.SetQuantity)
				r.Delete("/products/{pid}", cartHandler.RemoveItem)
			})
		})
		r.Get("/tickets/{code}", checkoutHandler.GetTicket)
	})

	return r
}
