package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/tailor-orders/internal/domain/access"
	"github.com/xenking/tailor-orders/internal/domain/catalog"
	"github.com/xenking/tailor-orders/internal/domain/customer"
	"github.com/xenking/tailor-orders/internal/domain/order"
	"github.com/xenking/tailor-orders/internal/domain/shop"
	"github.com/xenking/tailor-orders/internal/handler"
	"github.com/xenking/tailor-orders/internal/storage/postgres"
	"github.com/xenking/tailor-orders/internal/storage/redis"
	"github.com/xenking/tailor-orders/pkg/health"
	"github.com/xenking/tailor-orders/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Redis is optional; without it customer lookups always hit postgres.
	var customerCache customer.Cache
	if cfg.RedisURL != "" {
		rdb, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()

		customerCache = redis.NewCustomerCache(rdb, cfg.CustomerCacheTTL)
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(health.ErrPinger(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})))
		lg.Info("Customer lookup cache enabled", zap.Duration("ttl", cfg.CustomerCacheTTL))
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	h, err := newHTTPHandler(ctx, cfg, pool, customerCache, healthSvc, m)
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           h,
	}

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

// newHTTPHandler builds the domain services on top of pool and returns the
// router wrapped in the middleware chain.
func newHTTPHandler(
	ctx context.Context,
	cfg *Config,
	pool *pgxpool.Pool,
	customerCache customer.Cache,
	healthSvc *health.Health,
	tel httpmiddleware.Telemetry,
) (http.Handler, error) {
	tokens, err := access.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, errors.Wrap(err, "token issuer")
	}
	orderService, err := order.NewService(postgres.NewOrderStore(pool),
		order.WithMeterProvider(tel.MeterProvider()),
		order.WithTracerProvider(tel.TracerProvider()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "order service")
	}

	api := handler.NewHandler(handler.Services{
		Access:    access.NewService(postgres.NewAccessRepository(pool), tokens),
		Shops:     shop.NewService(postgres.NewShopRepository(pool)),
		Catalog:   catalog.NewService(postgres.NewCatalogRepository(pool)),
		Customers: customer.NewService(postgres.NewCustomerRepository(pool), customerCache),
		Orders:    orderService,
	})

	router := api.Router()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)

	return httpmiddleware.Wrap(router,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument("tailor-api", tel),
		httpmiddleware.LogRequests(),
		httpmiddleware.Labeler(),
	), nil
}
