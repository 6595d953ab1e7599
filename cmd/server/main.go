package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/easytech-h/fashion-to-yoncell/internal/activity"
	"github.com/easytech-h/fashion-to-yoncell/internal/config"
	"github.com/easytech-h/fashion-to-yoncell/internal/httpapi"
	"github.com/easytech-h/fashion-to-yoncell/internal/kv"
	kvmemory "github.com/easytech-h/fashion-to-yoncell/internal/kv/memory"
	kvpostgres "github.com/easytech-h/fashion-to-yoncell/internal/kv/postgres"
	kvredis "github.com/easytech-h/fashion-to-yoncell/internal/kv/redis"
	"github.com/easytech-h/fashion-to-yoncell/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backend, closers := selectBackend(ctx, cfg, logger)

	feed := activity.NewRecorder(ctx, backend, logger)

	sales, err := store.NewSalesStore(ctx, backend, feed, logger)
	if err != nil {
		logger.Fatal("sales store unavailable", zap.Error(err))
	}
	orders, err := store.NewOrderStore(ctx, backend, sales, feed, logger, cfg.StoreLocation)
	if err != nil {
		logger.Fatal("order store unavailable", zap.Error(err))
	}

	api := httpapi.New(sales, orders, feed, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("POS state backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}

	// Drain any sale derivations still queued before closing the backend.
	orders.Close()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

// selectBackend picks the key-value backend: postgres when DATABASE_URL is
// set (refusing to start on failure), otherwise redis when reachable,
// otherwise process-local memory.
func selectBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (kv.Store, []func() error) {
	closers := make([]func() error, 0, 1)

	if cfg.DatabaseURL != "" {
		pg, err := kvpostgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres unavailable and DATABASE_URL is set; refusing in-memory fallback", zap.Error(err))
		}
		closers = append(closers, pg.Close)
		logger.Info("persistence: postgres")
		return pg, closers
	}

	if cfg.RedisAddr != "" {
		rd := kvredis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rd.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, falling back to in-memory persistence", zap.Error(err))
			_ = rd.Close()
		} else {
			closers = append(closers, rd.Close)
			logger.Info("persistence: redis")
			return rd, closers
		}
	}

	logger.Info("persistence: in-memory (state is lost on exit)")
	return kvmemory.New(), closers
}
