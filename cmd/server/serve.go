package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/medstore/internal/adapter/handler"
	"github.com/rl1809/medstore/internal/adapter/payment"
	"github.com/rl1809/medstore/internal/adapter/ratelimit"
	"github.com/rl1809/medstore/internal/adapter/storage"
	"github.com/rl1809/medstore/internal/config"
	"github.com/rl1809/medstore/internal/core/service"
	"github.com/rl1809/medstore/internal/port"
)

const healthInterval = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and gRPC health server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync()

			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(parent context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Initialize MySQL
	db, err := openMySQL(ctx, cfg.MySQL)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to mysql")

	mysqlAdapter := storage.NewMySQLAdapter(db)

	// Initialize Redis, optional
	var (
		cache   port.CacheRepository
		limiter port.RateLimiter
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()

		redisAdapter := storage.NewRedisAdapter(rdb)
		if err := redisAdapter.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

		cache = redisAdapter
		limiter = ratelimit.NewFixedWindow(redisAdapter, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	} else {
		logger.Warn("redis not configured, using in-process rate limiting and no webhook dedupe")
		local := ratelimit.NewLocal(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		go local.RunSweeper(ctx, cfg.RateLimit.Window)
		limiter = local
	}

	// Initialize services
	gateway := payment.NewStripeAdapter(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.Currency)
	orderService := service.NewOrderService(mysqlAdapter, logger)
	checkoutService := service.NewCheckoutService(gateway, mysqlAdapter, service.CheckoutOptions{
		SuccessURL:       cfg.Checkout.SuccessURL,
		CancelURL:        cfg.Checkout.CancelURL,
		AllowedCountries: cfg.Checkout.AllowedCountries,
	}, logger)
	reconciler := service.NewWebhookReconciler(gateway, mysqlAdapter, cache, logger)

	// Initialize gRPC health server
	grpcServer := grpc.NewServer()
	grpcHealth := handler.NewGRPCHealth(mysqlAdapter, logger)
	grpcHealth.Register(grpcServer)
	go grpcHealth.Run(ctx, healthInterval)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(orderService, checkoutService, reconciler, mysqlAdapter, logger)
	auth := handler.NewAuthenticator(cfg.Auth.JWTSecret, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpHandler.Routes(auth, limiter),
		ReadHeaderTimeout: 5 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	return run(ctx, logger, servers{
		http:            httpServer,
		grpc:            grpcServer,
		grpcListener:    lis,
		health:          grpcHealth,
		quit:            quit,
		shutdownTimeout: cfg.HTTP.ShutdownTimeout,
	})
}

type servers struct {
	http            *http.Server
	grpc            *grpc.Server
	grpcListener    net.Listener
	health          *handler.GRPCHealth
	quit            <-chan os.Signal
	shutdownTimeout time.Duration
}

// run serves HTTP and gRPC until a signal, ctx cancellation or a server failure,
// then shuts both down. A server that fails to start or stops unexpectedly is
// returned as the error.
func run(ctx context.Context, logger *zap.Logger, rt servers) error {
	serveErr := make(chan error, 2)

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", rt.grpcListener.Addr().String()))
		if err := rt.grpc.Serve(rt.grpcListener); err != nil {
			serveErr <- fmt.Errorf("gRPC server: %w", err)
		}
	}()

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", rt.http.Addr))
		if err := rt.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var failure error
	select {
	case <-rt.quit:
	case <-ctx.Done():
	case failure = <-serveErr:
		logger.Error("server stopped unexpectedly", zap.Error(failure))
	}

	// Graceful shutdown
	logger.Info("shutting down...")
	rt.health.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.shutdownTimeout)
	defer cancel()
	if err := rt.http.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	rt.grpc.GracefulStop()
	logger.Info("gRPC server stopped")

	return failure
}

func openMySQL(ctx context.Context, cfg config.MySQLConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect mysql: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}
	return db, nil
}
