package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/laboutiquedemorgane/boutique-backend/api/controllers"
	webhookcontrollers "github.com/laboutiquedemorgane/boutique-backend/api/controllers/webhooks"
	"github.com/laboutiquedemorgane/boutique-backend/api/middleware"
	"github.com/laboutiquedemorgane/boutique-backend/internal/coupons"
	"github.com/laboutiquedemorgane/boutique-backend/internal/ledger"
	"github.com/laboutiquedemorgane/boutique-backend/internal/packages"
	"github.com/laboutiquedemorgane/boutique-backend/internal/returns"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/config"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/db"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/logger"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	packagesService packages.Service,
	returnsService returns.Service,
	ledgerService ledger.Service,
	couponsService coupons.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(dbP, redisClient, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.PaymentWebhook(packagesService, cfg.Payment.WebhookSecret, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/v1/packages", func(r chi.Router) {
			r.Post("/", controllers.PackageOpen(packagesService, logg))
			r.Get("/active", controllers.PackageActive(packagesService, logg))
			r.Post("/{packageID}/orders", controllers.PackageAddOrder(packagesService, logg))
			r.Post("/{packageID}/close", controllers.PackageClose(packagesService, logg))
		})

		r.Route("/v1/returns", func(r chi.Router) {
			r.Post("/", controllers.ReturnDeclare(returnsService, logg))
			r.Get("/", controllers.ReturnList(returnsService, logg))
			r.Get("/{returnID}", controllers.ReturnDetail(returnsService, logg))
		})

		r.Route("/v1/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletBalance(ledgerService, logg))
			r.Get("/ledger", controllers.WalletLedger(ledgerService, logg))
		})

		r.Route("/v1/coupons", func(r chi.Router) {
			r.Get("/", controllers.CouponList(couponsService, logg))
			r.Post("/{couponID}/redeem", controllers.CouponRedeem(couponsService, logg))
		})

		r.Route("/staff/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.ActorRoleStaff), logg))

			r.Post("/packages/{packageID}/shipment", controllers.PackageAttachShipment(packagesService, logg))
			r.Post("/returns/{returnID}/advance", controllers.ReturnAdvance(returnsService, logg))
			r.Post("/returns/{returnID}/cancel", controllers.ReturnCancel(returnsService, logg))
			r.Post("/ledger", controllers.LedgerPost(ledgerService, logg))
			r.Get("/ledger/{customerID}/replay", controllers.LedgerReplay(ledgerService, logg))
			r.Get("/coupon-types", controllers.CouponTypeList(couponsService, logg))
			r.Post("/coupon-types", controllers.CouponTypeCreate(couponsService, logg))
			r.Post("/coupons/issue", controllers.CouponIssue(couponsService, logg))
		})
	})

	return r
}
