package http

import (
	"time"

	jwtutil "pillpath-finance/pkg/jwt"
	"pillpath-finance/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

// NewRouter wires the admin finance routes. Everything except /health sits
// behind JWT authentication, the admin role check and a per-IP rate limit.
func NewRouter(controller *HTTPFinanceController, jwtManager *jwtutil.JWTManager) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.ErrorHandler)
	router.Use(middleware.TimeoutMiddleware(60 * time.Second))

	router.Get("/health", controller.HealthCheck)

	rateLimiter := middleware.NewRateLimiter(120, time.Minute)

	router.Route("/admin/finance", func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		r.Use(middleware.JWTAuthMiddleware(jwtManager))
		r.Use(middleware.RequireAdmin)

		r.Get("/ledger", controller.GetLedger)
		r.Get("/order-payments", controller.GetOrderPayments)
		r.Get("/wallets/{pharmacyName}", controller.GetWalletSummary)
		r.Post("/refresh", controller.RefreshFinanceData)
		r.Patch("/commissions/{id}", controller.UpdateCommissionStatus)
		r.Post("/payouts/{id}/pay", controller.PayPayout)
	})

	return router
}
