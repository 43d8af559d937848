package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/retail-pos/internal/adapter/handler"
	"github.com/rl1809/retail-pos/internal/adapter/messaging"
	"github.com/rl1809/retail-pos/internal/adapter/storage"
	"github.com/rl1809/retail-pos/internal/config"
	"github.com/rl1809/retail-pos/internal/core/service"
	"github.com/rl1809/retail-pos/internal/logging"
	"github.com/rl1809/retail-pos/internal/metrics"
	"github.com/rl1809/retail-pos/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.New("retail-pos", cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := storage.Open(ctx, cfg.DBDriver, cfg.DatabaseDSN, storage.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database", slog.String("driver", cfg.DBDriver))

	kafkaClient := messaging.NewClient(cfg.KafkaBrokers)
	outboxTopic := ""
	if kafkaClient.Enabled() {
		outboxTopic = cfg.KafkaTopic
	}
	sqlAdapter := storage.NewSQLAdapter(db, cfg.DBDriver, outboxTopic)
	if err := sqlAdapter.Migrate(ctx); err != nil {
		return err
	}

	// Initialize Redis, optional
	var idem port.IdempotencyRepository
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 100})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		idem = storage.NewRedisAdapter(rdb, cfg.IdempotencyTTL)
		logger.Info("connected to redis", slog.String("addr", cfg.RedisAddr))
	} else {
		logger.Info("redis not configured, idempotency keys are ignored")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(reg)

	// Initialize services
	checkoutService, err := service.NewCheckoutService(sqlAdapter, idem, service.CheckoutConfig{
		NodeID:  cfg.NodeID,
		Reprice: cfg.CheckoutReprice,
	}, logger)
	if err != nil {
		return err
	}
	invoiceService := service.NewInvoiceService(sqlAdapter)
	services := handler.Services{
		Catalog:   service.NewCatalogService(sqlAdapter, logger),
		Checkout:  checkoutService,
		Analytics: service.NewAnalyticsService(sqlAdapter, cfg.AnalyticsLocation),
		Invoices:  invoiceService,
	}

	// Start outbox relay workers
	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	var wg sync.WaitGroup
	if kafkaClient.Enabled() {
		publisher, err := kafkaClient.NewPublisher(serverMetrics)
		if err != nil {
			return err
		}
		defer publisher.Close()

		relay := service.NewOutboxRelay(sqlAdapter, publisher, cfg.RelayBatchSize, cfg.RelayInterval, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay.Run(relayCtx, cfg.RelayWorkers)
		}()
	} else {
		logger.Info("kafka not configured, sale events are not published")
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.NewGRPCHandler(checkoutService, invoiceService, serverMetrics, logger).Register(grpcServer)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}

	go func() {
		logger.Info("gRPC server listening", slog.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", slog.Any("error", err))
		}
	}()

	// Initialize HTTP server
	gin.SetMode(gin.ReleaseMode)
	httpHandler := handler.NewHTTPHandler(services, sqlAdapter, serverMetrics, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: httpHandler.Router(),
	}

	go func() {
		logger.Info("HTTP server listening", slog.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", slog.Any("error", err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	stopRelay()
	wg.Wait()
	logger.Info("relay workers stopped")

	return nil
}
