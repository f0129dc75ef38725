package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/analytics"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/gateway/stripe"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/notify"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/mongo"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/storage/redis"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const serviceName = "storefront-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

	carts, closeCarts, err := openCartStore(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer closeCarts()

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	notifier, closeNotifier := buildNotifier(lg, cfg)
	defer closeNotifier()

	// Domain services.
	cartSvc := cart.NewService(carts, productRepo)
	couponSvc := coupon.NewService(couponRepo)
	orderSvc, err := order.NewService(order.Deps{
		Orders:  orderRepo,
		Carts:   cartSvc,
		Coupons: couponSvc,
		Gateway: stripe.New(stripe.Config{
			SecretKey:        cfg.Stripe.SecretKey,
			WebhookSecret:    cfg.Stripe.WebhookSecret,
			FailureThreshold: cfg.Stripe.FailureThreshold,
			OpenTimeout:      cfg.Stripe.OpenTimeout,
		}, lg.Named("stripe")),
		Notifier: notifier,
		Meter:    m.MeterProvider().Meter(serviceName),
		Currency: cfg.Stripe.Currency,
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// HTTP handlers.
	h := handler.New(handler.Config{
		ImageBaseURL: cfg.ImageBaseURL,
		SecureCookie: cfg.Auth.SecureCookie,
	}, handler.Deps{
		Orders:    orderSvc,
		Carts:     cartSvc,
		Coupons:   couponSvc,
		Products:  productRepo,
		Reviews:   product.NewReviewService(productRepo, productRepo),
		Users:     user.NewService(postgres.NewUserRepository(pool)),
		Analytics: analytics.NewService(postgres.NewAnalyticsRepository(pool)),
		Tokens:    auth.NewTokens([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL),
		Keys:      auth.NewKeyAuthenticator(postgres.NewAPIKeyRepository(pool), []byte(cfg.Auth.APIKeyPepper)),
	})

	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:     cfg.RateLimit.Max,
		Window:  cfg.RateLimit.Window,
		KeyFunc: rateLimitKey,
	})
	go limiter.Run(ctx)

	router := h.Router(handler.RouterOptions{
		Observe: []func(http.Handler) http.Handler{
			httpmiddleware.LogRequests(),
			httpmiddleware.Labeler(),
		},
		Limit: limiter.Middleware(),
	})
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "api_key", "Stripe-Signature"},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
		),
	}

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

// openCartStore picks the cart backend: MongoDB when configured, memory
// otherwise, with the Redis cache in front when an address is set.
func openCartStore(ctx context.Context, lg *zap.Logger, cfg *Config, hs *health.Health) (cart.Store, func(), error) {
	var (
		store   cart.Store
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Mongo.URI != "" {
		db, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect mongo")
		}
		closers = append(closers, func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				lg.Warn("Mongo disconnect failed", zap.Error(err))
			}
		})

		ms := mongo.NewCartStore(db)
		if err := ms.CreateIndexes(ctx); err != nil {
			closeAll()
			return nil, nil, errors.Wrap(err, "create cart indexes")
		}
		hs.AddReadinessCheck("mongo", 5*time.Second, health.PingCheck(ms))
		store = ms
	} else {
		lg.Warn("Mongo URI not set, carts are kept in memory")
		store = memory.NewCartStore()
	}

	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		closers = append(closers, func() { _ = rdb.Close() })

		// Cache outages degrade to the store, so they only fail readiness
		// after a sustained run.
		hs.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}, health.Thresholds{Failure: 5, Success: 1})
		store = redis.NewCartCache(store, rdb, cfg.Redis.TTL, cfg.Redis.Jitter)
	}

	return store, closeAll, nil
}

// buildNotifier assembles the paid-order notifiers enabled by config.
func buildNotifier(lg *zap.Logger, cfg *Config) (order.Notifier, func()) {
	fanout := notify.Fanout{notify.LogNotifier{}}
	closeFn := func() {}

	if cfg.Mail.Host != "" {
		sender := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
		fanout = append(fanout, notify.NewEmailNotifier(sender, cfg.Mail.Operator))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		w := notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		fanout = append(fanout, notify.NewKafkaPublisher(w))
		closeFn = func() {
			if err := w.Close(); err != nil {
				lg.Warn("Kafka writer close failed", zap.Error(err))
			}
		}
	}

	lg.Info("Order notifications enabled",
		zap.Bool("email", cfg.Mail.Host != ""),
		zap.Bool("kafka", len(cfg.Kafka.Brokers) > 0),
	)
	return fanout, closeFn
}

// rateLimitKey buckets signed-in callers by identity and everyone else by
// client address.
func rateLimitKey(r *http.Request) string {
	if p, ok := auth.FromContext(r.Context()); ok {
		return "user:" + p.UserID
	}
	return "ip:" + httpmiddleware.ClientIP(r)
}
