package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solumart/cartcheckout/internal/auth"
	"github.com/solumart/cartcheckout/internal/service"
	"github.com/solumart/cartcheckout/pkg/health"
	"github.com/solumart/cartcheckout/pkg/middleware"
)

// NewRouter creates a chi router with all cart and order routes registered.
func NewRouter(
	cartService *service.CartService,
	orderService *service.OrderService,
	verifier *auth.Verifier,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
	rateLimitRPS, rateLimitBurst int,
	pprofCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.RateLimit(rateLimitRPS, rateLimitBurst, logger))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics())
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	middleware.RegisterPprof(r, pprofCIDRs, logger)

	cartHandler := NewCartHandler(cartService, logger)
	orderHandler := NewOrderHandler(orderService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator(verifier)))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)

			r.Post("/items", cartHandler.AddItem)
			r.Delete("/items/{productId}", cartHandler.RemoveItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.Checkout)
			r.Get("/", orderHandler.ListOrders)
			r.Get("/{orderId}", orderHandler.GetOrder)
		})
	})

	return r
}

// tokenValidator adapts the JWT verifier to the auth middleware contract.
func tokenValidator(verifier *auth.Verifier) middleware.TokenValidator {
	return func(token string) (*middleware.Claims, error) {
		principal, err := verifier.Verify(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: principal.UserID,
			Email:  principal.Email,
			Role:   principal.Role,
		}, nil
	}
}
