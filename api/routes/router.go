package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/phamdt/aurora-backend/api/controllers"
	ordercontrollers "github.com/phamdt/aurora-backend/api/controllers/orders"
	"github.com/phamdt/aurora-backend/api/middleware"
	addrsvc "github.com/phamdt/aurora-backend/internal/addresses"
	cartsvc "github.com/phamdt/aurora-backend/internal/cart"
	checkoutsvc "github.com/phamdt/aurora-backend/internal/checkout"
	discountsvc "github.com/phamdt/aurora-backend/internal/discounts"
	orderssvc "github.com/phamdt/aurora-backend/internal/orders"
	paymentsvc "github.com/phamdt/aurora-backend/internal/payments"
	"github.com/phamdt/aurora-backend/pkg/config"
	"github.com/phamdt/aurora-backend/pkg/enums"
	"github.com/phamdt/aurora-backend/pkg/logger"
	"github.com/phamdt/aurora-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	Redis           *redis.Client
	ReadyChecks     map[string]controllers.Pinger
	MetricsHandler  http.Handler
	CartService     cartsvc.Service
	AddressService  addrsvc.Service
	DiscountService discountsvc.Service
	CheckoutService checkoutsvc.Service
	OrdersService   orderssvc.Service
	PaymentVerifier paymentsvc.Verifier
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.ReadyChecks))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// The gateway redirects the customer's browser here without any bearer
	// token; the signed query string is the credential.
	r.Get("/api/v1/payments/vnpay/return", controllers.PaymentReturn(deps.PaymentVerifier, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))
		r.Use(middleware.RequireRole(enums.ActorRoleCustomer.String(), logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.CartService, logg))
			r.Post("/items", controllers.CartAddItem(deps.CartService, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(deps.CartService, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.CartService, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(deps.AddressService, logg))
			r.Post("/", controllers.AddressCreate(deps.AddressService, logg))
		})

		r.Get("/discounts/{code}", controllers.DiscountLookup(deps.DiscountService, logg))

		r.Get("/checkout/quote", controllers.CheckoutQuote(deps.CheckoutService, logg))
		r.Post("/checkout", controllers.CheckoutSubmit(deps.CheckoutService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.OrdersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.OrdersService, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(deps.OrdersService, logg))
			r.Post("/{orderId}/confirm-delivery", ordercontrollers.ConfirmDelivery(deps.OrdersService, logg))
			r.Post("/{orderId}/repayment", controllers.OrderRepayment(deps.CheckoutService, logg))
			r.Post("/{orderId}/return-request", ordercontrollers.RequestReturn(deps.OrdersService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))
		r.Use(middleware.RequireRole(enums.ActorRoleStaff.String(), logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.AdminList(deps.OrdersService, logg))
			r.Get("/{orderId}", ordercontrollers.AdminDetail(deps.OrdersService, logg))
			r.Patch("/{orderId}/status", ordercontrollers.AdminUpdateStatus(deps.OrdersService, logg))
		})
		r.Post("/return-requests/{requestId}/resolve", ordercontrollers.AdminResolveReturn(deps.OrdersService, logg))
	})

	return r
}
