package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/handlers"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/notifications"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/payments"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/auth"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/config"
	pfirestore "github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/firestore"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/observability"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/secrets"
	firestoreRepo "github.com/shreyanshu1966/ecommerce-elearning-api/internal/repositories/firestore"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcher(ctx, logger.Named("secrets"), nil)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		if err := firestoreProvider.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	cartRepo, err := firestoreRepo.NewCartRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	catalogRepo, err := firestoreRepo.NewCatalogRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise catalog repository", zap.Error(err))
	}
	userRepo, err := firestoreRepo.NewUserRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise user repository", zap.Error(err))
	}

	gateway, err := payments.NewHTTPGateway(payments.HTTPGatewayConfig{
		BaseURL: cfg.Gateway.BaseURL,
		KeyID:   cfg.Gateway.KeyID,
		Secret:  cfg.Gateway.Secret,
		Timeout: cfg.Gateway.Timeout,
		Logger:  observability.ServiceLogger(logger.Named("gateway")),
	})
	if err != nil {
		logger.Fatal("failed to initialise payment gateway", zap.Error(err))
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.Notifications.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	mailTopic := pubsubClient.Topic(cfg.Notifications.Topic)
	defer mailTopic.Stop()

	mailer, err := notifications.NewPubSubDispatcher(mailTopic, cfg.Notifications.From)
	if err != nil {
		logger.Fatal("failed to initialise mail dispatcher", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Repository: cartRepo,
		Catalog:    catalogRepo,
		Clock:      time.Now,
		Logger:     observability.ServiceLogger(logger.Named("cart")),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:       orderRepo,
		Carts:        cartService,
		Users:        userRepo,
		Gateway:      gateway,
		Mailer:       mailer,
		Clock:        time.Now,
		Logger:       observability.ServiceLogger(logger.Named("orders")),
		Currency:     cfg.Gateway.Currency,
		GatewayKeyID: cfg.Gateway.KeyID,
		TaxRate:      cfg.Pricing.TaxRate,
		ShippingFee:  cfg.Pricing.ShippingFee,
		PageSize:     cfg.Pricing.AdminPageSize,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal("failed to initialise token verifier", zap.Error(err))
	}

	cartHandlers := handlers.NewCartHandlers(verifier, cartService)
	orderHandlers := handlers.NewOrderHandlers(verifier, orderService)
	adminHandlers := handlers.NewAdminOrderHandlers(verifier, orderService)

	healthHandlers := handlers.NewHealthHandlers(map[string]handlers.ReadinessProbe{
		"firestore": func(ctx context.Context) error {
			_, err := firestoreProvider.Client(ctx)
			return err
		},
	})

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithOrderRoutes(func(r chi.Router) {
			orderHandlers.Routes(r)
			adminHandlers.Routes(r)
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("ecommerce-elearning api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
