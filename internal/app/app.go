package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/cache"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/events"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/repository"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const serviceName = "storefront-api"

// Telemetry provides OpenTelemetry providers. *app.Telemetry from
// github.com/go-faster/sdk implements it.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Optional Redis cache for featured products.
	var featured product.FeaturedCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		c := cache.NewFeaturedProducts(rdb, cfg.Redis.FeaturedTTL)
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck("redis", c))
		featured = c
		lg.Info("Featured product cache enabled", zap.String("redis", cfg.Redis.Addr))
	}

	// Order event publisher.
	publisher, err := events.New(cfg.Events)
	if err != nil {
		return errors.Wrap(err, "create event publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			lg.Warn("Close event publisher", zap.Error(err))
		}
	}()

	// Repositories.
	tx := repository.NewTxManager(pool, repository.TxConfig{
		MaxRetries:      cfg.Tx.MaxRetries,
		InitialInterval: cfg.Tx.InitialInterval,
		MaxInterval:     cfg.Tx.MaxInterval,
	})
	productRepo := repository.NewProductRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Domain services.
	productService := product.NewService(productRepo, featured)
	cartService := cart.NewService(tx, productRepo, cartRepo)
	userService := user.NewService(userRepo)
	orderService, err := order.NewService(tx, cartRepo, orderRepo, order.Options{
		StrictAdminTransitions: cfg.Orders.StrictAdminTransitions,
		Publisher:              publisher,
		MeterProvider:          m.MeterProvider(),
		TracerProvider:         m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// HTTP handlers.
	securityHandler := handler.NewSecurityHandler(userService, apikeyRepo,
		[]byte(cfg.JWTSecret), []byte(cfg.APIKeyPepper))
	h := handler.NewHandler(productService, cartService, orderService, userService, securityHandler)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Routes(mux)

	compress, err := httpmiddleware.Compress(cfg.Security.GzipMinSize)
	if err != nil {
		return errors.Wrap(err, "create compression middleware")
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.Secure(httpmiddleware.SecureConfig{
				ContentSecurityPolicy: cfg.Security.ContentSecurityPolicy,
				HSTSSeconds:           cfg.Security.HSTSSeconds,
				Development:           cfg.Security.Development,
			}),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins:     cfg.CORS.Origins,
				Headers:     []string{"Content-Type", "Authorization", "X-Requested-With", handler.APIKeyHeader},
				Expose:      []string{httpmiddleware.RequestIDHeader},
				Credentials: cfg.CORS.AllowCredentials,
				MaxAge:      86400,
			}),
			compress,
			httpmiddleware.RateLimitWithCleanup(ctx, rateLimitConfig(cfg.RateLimit)),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func rateLimitConfig(cfg RateLimitConfig) httpmiddleware.RateLimitConfig {
	return httpmiddleware.RateLimitConfig{Tiers: []httpmiddleware.RateLimitTier{
		{
			Prefix:  "/",
			Max:     cfg.GeneralMax,
			Window:  cfg.Window,
			Message: "Too many requests from this IP, please try again later.",
		},
		{
			Prefix:  "/api/",
			Max:     cfg.APIMax,
			Window:  cfg.Window,
			Message: "API rate limit exceeded, please try again later.",
		},
		{
			Prefix:  "/api/admin/",
			Max:     cfg.AdminMax,
			Window:  cfg.Window,
			Message: "Too many sensitive operations, please try again later.",
		},
	}}
}
