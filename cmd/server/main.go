package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rl1809/retail-pos/internal/adapter/handler"
	"github.com/rl1809/retail-pos/internal/adapter/storage"
	"github.com/rl1809/retail-pos/internal/config"
	"github.com/rl1809/retail-pos/internal/core/service"
	"github.com/rl1809/retail-pos/internal/logger"
	"github.com/rl1809/retail-pos/internal/port"
)

type stores struct {
	catalog   port.CatalogRepository
	ledger    port.LedgerRepository
	committer port.SaleCommitter
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer log.Sync()
	log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg.Store, log)
	if err != nil {
		log.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer st.close()

	var (
		carts port.CartRepository
		cache port.CacheRepository
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer rdb.Close()
		log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

		adapter := storage.NewRedisAdapter(rdb, cfg.Redis.CartTTL, cfg.Checkout.IdempotencyTTL)
		carts, cache = adapter, adapter
	} else {
		memCache := storage.NewMemoryCache(cfg.Checkout.IdempotencyTTL)
		carts, cache = memCache, memCache
		log.Info("redis not configured, keeping carts in memory")
	}

	catalogService := service.NewCatalogService(st.catalog, log)
	cartService := service.NewCartService(st.catalog, carts, log)
	checkoutService := service.NewCheckoutService(st.catalog, st.committer, carts, cache, log)
	reportService := service.NewReportService(st.catalog, st.ledger, cfg.Report.LowStockThreshold)

	if cfg.Store.SeedSampleData {
		if _, err := catalogService.SeedIfEmpty(ctx, service.SampleProducts()); err != nil {
			log.Fatal("failed to seed catalog", zap.Error(err))
		}
	}

	// HTTP and gRPC share one checkout budget.
	limiter := rate.NewLimiter(rate.Limit(cfg.Checkout.RateLimit), cfg.Checkout.RateBurst)

	grpcServer, healthServer := handler.NewGRPCServer(
		handler.NewGRPCHandler(cartService, checkoutService), limiter, log)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Fatal("failed to listen", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
	}

	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", zap.Error(err))
		}
	}()

	httpHandler := handler.NewHTTPHandler(catalogService, cartService, checkoutService, reportService, limiter, log)
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httpHandler.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")
}

func openStores(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (*stores, error) {
	if !cfg.UsesSQL() {
		mem := storage.NewMemoryStore()
		log.Info("using in-memory store")
		return &stores{catalog: mem, ledger: mem, committer: mem, close: mem.Close}, nil
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("connected to database", zap.String("driver", cfg.Driver))

	if err := storage.Migrate(db, cfg.Driver, log); err != nil {
		db.Close()
		return nil, err
	}

	sqlStore := storage.NewSQLStore(db, cfg.Driver)
	return &stores{
		catalog:   sqlStore,
		ledger:    sqlStore,
		committer: sqlStore,
		close:     func() { db.Close() },
	}, nil
}
