package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terravest/terravest-backend/api/controllers"
	"github.com/terravest/terravest-backend/api/middleware"
	"github.com/terravest/terravest-backend/internal/commission"
	"github.com/terravest/terravest-backend/internal/network"
	"github.com/terravest/terravest-backend/internal/payout"
	"github.com/terravest/terravest-backend/internal/wallet"
	"github.com/terravest/terravest-backend/pkg/config"
	"github.com/terravest/terravest-backend/pkg/db"
	"github.com/terravest/terravest-backend/pkg/logger"
	"github.com/terravest/terravest-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	walletService wallet.Service,
	commissionService commission.Service,
	payoutService payout.Service,
	networkService network.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", controllers.WalletBalance(walletService, logg))
			r.Get("/transactions", controllers.WalletTransactions(walletService, logg))
		})

		r.Get("/commissions", controllers.CommissionList(commissionService, logg))

		r.Route("/payouts", func(r chi.Router) {
			payoutThrottle := middleware.RateLimit(middleware.RateLimitPolicy{
				Name:   "payout-request",
				Window: time.Minute,
				Limit:  5,
			}, redisClient, logg)
			r.With(payoutThrottle).Post("/", controllers.PayoutCreate(payoutService, logg))
			r.Get("/", controllers.PayoutList(payoutService, logg))
			r.Get("/{payoutID}", controllers.PayoutDetail(payoutService, logg))
		})

		r.Route("/network", func(r chi.Router) {
			r.Get("/tree", controllers.NetworkTree(networkService, logg))
			r.Get("/stats", controllers.NetworkStats(networkService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/payouts", func(r chi.Router) {
			r.Get("/", controllers.AdminPayoutQueue(payoutService, logg))
			r.Post("/{payoutID}/resolve", controllers.AdminPayoutResolve(payoutService, logg))
			r.Patch("/{payoutID}/amount", controllers.AdminPayoutAdjust(payoutService, logg))
		})
	})

	return r
}
