package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/consumer"
	"github.com/fjod/storefront/internal/events"
	healthgrpc "github.com/fjod/storefront/internal/grpc"
	h "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/invoice"
	"github.com/fjod/storefront/internal/ledger"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/service"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.OTELServiceName, os.Stdout)
	slog.SetDefault(log)
	log.Info("storefront starting...")
	if err := cfg.Validate(); err != nil {
		fatal(log, "invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	appMetrics, shutdownMetrics, err := metrics.InitMetrics(ctx, cfg)
	if err != nil {
		fatal(log, "failed to init metrics", err)
	}

	// MongoDB: catalog, carts, orders, reviews, wishlists, users, outbox
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		fatal(log, "failed to connect to MongoDB", err)
	}
	if err := repository.EnsureIndexes(ctx, mongoDB); err != nil {
		fatal(log, "failed to create indexes", err)
	}
	log.Info("connected to MongoDB", "db", cfg.MongoDBName)

	products := repository.NewProductRepository(mongoDB)
	carts := repository.NewCartRepository(mongoDB)
	orders := repository.NewOrderRepository(mongoDB)
	reviews := repository.NewReviewRepository(mongoDB)
	wishlists := repository.NewWishlistRepository(mongoDB)
	users := repository.NewUserRepository(mongoDB)
	outbox := repository.NewOutboxRepository(mongoDB)
	tx := repository.NewTransactor(mongoDB)

	// Redis: cart cache, OTP codes, revoked tokens
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		fatal(log, "redis connection failed", err)
	}
	log.Info("redis ping succeeded")
	cartCache := cache.NewRedisCache(redisClient, cache.Options{
		TTL:     cache.DefaultTTL,
		Jitter:  cache.DefaultJitter,
		Metrics: appMetrics,
	})

	// Postgres payment ledger
	payLedger, err := ledger.New(ctx, cfg.PostgresDSN)
	if err != nil {
		fatal(log, "failed to connect to ledger database", err)
	}
	if err := payLedger.RunMigrations(); err != nil {
		fatal(log, "failed to run ledger migrations", err)
	}
	log.Info("ledger migrations completed")

	gateway := payment.NewClient(payment.Config{
		BaseURL:     cfg.PaymentGatewayURL,
		APIKey:      cfg.PaymentGatewayKey,
		Timeout:     cfg.PaymentTimeout,
		MaxRetries:  cfg.PaymentMaxRetries,
		RetryBudget: cfg.PaymentBudget(),
	}, log)

	bus := events.NewBus()
	go appMetrics.RecordSessionEvents(ctx, bus)

	var mailer auth.Mailer = auth.NewLogMailer(log)
	if cfg.SMTPHost != "" {
		mailer = auth.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	// Services
	authService := service.NewAuthService(service.AuthDeps{
		Users:     users,
		OTPs:      auth.NewOTPStore(redisClient, cfg.OTPTTL),
		Mailer:    mailer,
		Tokens:    tokens,
		Denylist:  auth.NewDenylist(redisClient),
		Bus:       bus,
		OTPLength: cfg.OTPLength,
		Log:       log,
	})
	if err := authService.EnsureSuperAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		fatal(log, "failed to create super admin", err)
	}

	catalogService := service.NewCatalogService(products, reviews, log)
	cartService := service.NewCartService(carts, products, cartCache, log)
	orderService := service.NewOrderService(service.OrderDeps{
		Tx:       tx,
		Orders:   orders,
		Carts:    carts,
		Products: products,
		Outbox:   outbox,
		Cache:    cartCache,
		Gateway:  gateway,
		Ledger:   payLedger,
		Invoices: invoice.NewRenderer(cfg.PublicBaseURL),
		Metrics:  appMetrics,
		Log:      log,
		LeadTime: cfg.DeliveryLeadTime,
	})
	paymentService := service.NewPaymentService(service.PaymentDeps{
		Tx:              tx,
		Orders:          orders,
		Outbox:          outbox,
		Gateway:         gateway,
		Ledger:          payLedger,
		Metrics:         appMetrics,
		Log:             log,
		CaptureDeferred: cfg.PaymentCaptureDeferred,
	})
	reviewService := service.NewReviewService(reviews, orders, products, users, log)
	wishlistService := service.NewWishlistService(wishlists, products, log)

	// Order events go out through the outbox; the invalidator drops cached
	// carts once an order for that user is seen on the topic.
	poller := publisher.NewOutboxPoller(outbox, log, cfg.KafkaOrderTopic, cfg.KafkaBrokers...)
	invalidator := consumer.NewCartInvalidator(cartCache, log, cfg.KafkaOrderTopic, cfg.KafkaBrokers...)

	ready := func(ctx context.Context) error {
		return checkDependencies(ctx, mongoDB, redisClient, payLedger)
	}

	router := h.NewRouter(h.Handlers{
		Products: h.NewProductHandler(catalogService, log),
		Carts:    h.NewCartHandler(cartService, log),
		Orders:   h.NewOrdersHandler(orderService, log),
		Payments: h.NewPaymentHandler(paymentService, log),
		Reviews:  h.NewReviewHandler(reviewService, log),
		Wishlist: h.NewWishlistHandler(wishlistService, log),
		Auth:     h.NewAuthHandler(authService, log),
	}, h.RouterConfig{
		Authn:              authService,
		Metrics:            appMetrics,
		Log:                log,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthLimiter:        h.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Ready:              ready,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		fatal(log, "failed to listen", err)
	}
	healthServer := healthgrpc.NewServer(log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return healthServer.Serve(lis)
	})
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		invalidator.Run(gctx)
		return nil
	})
	g.Go(func() error {
		healthServer.Watch(gctx, 10*time.Second, ready)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down storefront...")
		healthServer.SetServing(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", "error", err)
		}
		healthServer.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("storefront stopped with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	bus.Close()
	if err := poller.Close(); err != nil {
		log.Warn("failed to close kafka writer", "error", err)
	}
	invalidator.Close()
	if err := redisClient.Close(); err != nil {
		log.Warn("failed to close redis", "error", err)
	}
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		log.Warn("failed to disconnect MongoDB", "error", err)
	}
	if err := payLedger.Close(); err != nil {
		log.Warn("failed to close ledger", "error", err)
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		log.Warn("failed to flush metrics", "error", err)
	}
	log.Info("storefront stopped")
}

// checkDependencies pings every backing store concurrently.
func checkDependencies(ctx context.Context, db *mongo.Database, rdb *redis.Client, l *ledger.Ledger) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := db.Client().Ping(ctx, nil); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := l.Ping(ctx); err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
