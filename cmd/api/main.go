package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phamdt/aurora-backend/api/controllers"
	"github.com/phamdt/aurora-backend/api/routes"
	"github.com/phamdt/aurora-backend/internal/addresses"
	"github.com/phamdt/aurora-backend/internal/cart"
	"github.com/phamdt/aurora-backend/internal/checkout"
	"github.com/phamdt/aurora-backend/internal/discounts"
	"github.com/phamdt/aurora-backend/internal/orders"
	"github.com/phamdt/aurora-backend/internal/payments"
	"github.com/phamdt/aurora-backend/internal/payments/vnpay"
	"github.com/phamdt/aurora-backend/pkg/config"
	"github.com/phamdt/aurora-backend/pkg/db"
	"github.com/phamdt/aurora-backend/pkg/logger"
	"github.com/phamdt/aurora-backend/pkg/metrics"
	"github.com/phamdt/aurora-backend/pkg/migrate"
	"github.com/phamdt/aurora-backend/pkg/outbox"
	"github.com/phamdt/aurora-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(promRegistry)

	gateway, err := vnpay.New(cfg.VNPay)
	if err != nil {
		logg.Error(context.Background(), "failed to configure payment gateway", err)
		os.Exit(1)
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	cartRepo := cart.NewRepository(dbClient.DB())
	cartSvc, err := cart.NewService(cartRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	addressSvc, err := addresses.NewService(addresses.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create address service", err)
		os.Exit(1)
	}

	discountSvc, err := discounts.NewService(discounts.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create discount service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, logg, checkoutMetrics, cfg.Checkout.CashPaidOnDelivery)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsRepo := payments.NewRepository(dbClient.DB())
	verifier, err := payments.NewVerifier(
		paymentsRepo,
		ordersRepo,
		gateway,
		dbClient,
		outboxSvc,
		redisClient,
		logg,
		checkoutMetrics,
		cfg.Checkout.AutoAdvanceOnPayment,
		cfg.Checkout.VerificationTTL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment verifier", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(
		cartSvc,
		cartRepo,
		addressSvc,
		discountSvc,
		ordersRepo,
		paymentsRepo,
		gateway,
		dbClient,
		outboxSvc,
		redisClient,
		logg,
		checkoutMetrics,
		cfg.Checkout,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config: cfg,
		Logger: logg,
		Redis:  redisClient,
		ReadyChecks: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		MetricsHandler:  promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		CartService:     cartSvc,
		AddressService:  addressSvc,
		DiscountService: discountSvc,
		CheckoutService: checkoutSvc,
		OrdersService:   ordersSvc,
		PaymentVerifier: verifier,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
