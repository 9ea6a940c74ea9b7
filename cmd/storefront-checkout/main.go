package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/aaravmahajanofficial/storefront-checkout/docs"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/api/handlers"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/cache"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/catalog"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/config"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/health"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/lock"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/metrics"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/publisher"
	repository "github.com/aaravmahajanofficial/storefront-checkout/internal/repositories"
	service "github.com/aaravmahajanofficial/storefront-checkout/internal/services"
	"github.com/aaravmahajanofficial/storefront-checkout/internal/telemetry"
	"github.com/aaravmahajanofficial/storefront-checkout/pkg/sendgrid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

//	@title						Storefront Checkout API
//	@version					1.0
//	@description				Cart management and cart-to-order consolidation.
//	@host						localhost:8080
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@securityDefinitions.apikey	SessionID
//	@in							header
//	@name						X-Session-ID
func main() {

	// Logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load config
	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing setup
	_, shutdownTracing, err := telemetry.NewTracerProvider(ctx, cfg.Otel)
	if err != nil {
		slog.Error("❌ Error initializing tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Database setup
	repos, err := repository.New(cfg)
	if err != nil {
		slog.Error("❌ Error accessing the database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := repos.Close(); err != nil {
			slog.Error("⚠️ Error closing database connection", slog.String("error", err.Error()))
		} else {
			slog.Info("✅ Database connection closed")
		}
	}()

	// Redis setup
	redisClient, err := repository.NewRedisClient(cfg)
	if err != nil {
		slog.Error("❌ Error accessing the redis instance", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer redisClient.Close()

	locker := newLocker(cfg.Checkout, redisClient)
	rateLimiter := repository.NewRateLimitRepo(redisClient, cfg)
	productCache := cache.NewRedisCache(redisClient, &cfg.Cache)

	// Orders read live prices through the breaker; the cart summary may use cached ones.
	liveCatalog := catalog.NewBreakerGateway(repos.Product, "catalog", cfg.Catalog.BreakerMaxFailures, cfg.Catalog.BreakerOpenTimeout)
	cachedCatalog := catalog.NewCachedGateway(liveCatalog, productCache, cfg.Cache.DefaultTTL)

	var notifier service.OrderNotifier
	if cfg.SendGrid.APIKey != "" {
		notifier = sendgrid.NewOrderNotifier(sendgrid.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName))
	}

	cartService := service.NewCartService(repos.Cart, locker, cachedCatalog, cfg.Checkout)
	cartHandler := handlers.NewCartHandler(cartService)
	orderService := service.NewOrderService(repos.Order, repos.Cart, rateLimiter, locker, liveCatalog, notifier, cfg.Checkout)
	orderHandler := handlers.NewOrderHandler(orderService)
	identity := middleware.NewIdentityResolver([]byte(cfg.Security.JWTKey))

	kafkaDialer := &kafka.Dialer{Timeout: 3 * time.Second}

	healthHandler, err := health.NewHealthHandler(cfg, kafkaDialer)
	if err != nil {
		slog.Error("❌ Error initializing health checks", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("storage initialized", slog.String("env", cfg.Env), slog.String("lockBackend", cfg.Checkout.LockBackend))

	// Setup router
	routerMux := http.NewServeMux()
	routerMux.Handle("POST /api/v1/cart", identity.RequireOwner(cartHandler.AddItem()))
	routerMux.Handle("GET /api/v1/cart", identity.RequireOwner(cartHandler.ListCart()))
	routerMux.Handle("DELETE /api/v1/cart", identity.RequireOwner(cartHandler.ClearCart()))
	routerMux.Handle("GET /api/v1/cart/summary", identity.RequireOwner(cartHandler.Summary()))
	routerMux.Handle("POST /api/v1/cart/merge", identity.RequireOwner(cartHandler.MergeCarts()))
	routerMux.Handle("PUT /api/v1/cart/{id}", identity.RequireOwner(cartHandler.UpdateQuantity()))
	routerMux.Handle("DELETE /api/v1/cart/{id}", identity.RequireOwner(cartHandler.RemoveItem()))
	routerMux.Handle("POST /api/v1/orders", identity.RequireOwner(orderHandler.CreateOrder()))
	routerMux.Handle("GET /api/v1/orders", identity.RequireOwner(orderHandler.ListOrders()))
	routerMux.Handle("GET /api/v1/orders/{id}", identity.RequireOwner(orderHandler.GetOrder()))
	routerMux.Handle("GET /api/v1/admin/orders", identity.RequireAdmin(orderHandler.ListAllOrders()))
	routerMux.Handle("PATCH /api/v1/admin/orders/{id}/status", identity.RequireAdmin(orderHandler.UpdateOrderStatus()))
	routerMux.Handle("GET /metrics", metrics.Handler())
	routerMux.Handle("GET /health", healthHandler.Handler())
	routerMux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	// Middleware chaining
	var handler http.Handler = routerMux
	handler = metrics.Middleware(handler)
	handler = middleware.Logging(handler)
	handler = otelhttp.NewHandler(handler, "storefront-checkout")

	// Setup http server
	server := http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var background sync.WaitGroup

	if len(cfg.Kafka.Brokers) > 0 {
		poller := publisher.NewOutboxPoller(repos.Outbox, publisher.NewKafkaWriter(cfg.Kafka), cfg.Kafka, logger)

		background.Add(1)

		go func() {
			defer background.Done()
			poller.Run(ctx)
		}()
	} else {
		slog.Warn("No kafka brokers configured, order events stay in the outbox")
	}

	slog.Info("🚀 Server is starting...", slog.String("address", cfg.Addr))

	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("❌ Failed to start server", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	slog.Warn("🛑 Shutdown signal received. Preparing to stop the server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("⚠️ Server shutdown encountered an issue", slog.String("error", err.Error()))
	} else {
		slog.Info("✅ Server shut down gracefully. All connections closed.")
	}

	background.Wait()

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("⚠️ Failed to flush traces", slog.String("error", err.Error()))
	}
}

func newLocker(cfg config.Checkout, client *redis.Client) lock.Locker {
	if cfg.LockBackend == "local" {
		slog.Warn("Using in-process cart locks; run a single replica")
		return lock.NewLocalLocker()
	}

	return lock.NewRedisLocker(client, cfg.LockTTL)
}
