package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"medledger/m/internal/api"
	"medledger/m/internal/config"
	"medledger/m/internal/database"
	"medledger/m/internal/logger"
	"medledger/m/internal/migrations"
	"medledger/m/internal/seed"
	"medledger/m/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, lg)

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, lg *zap.Logger) error {
	db, err := database.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Run(ctx, db); err != nil {
		return err
	}
	s := store.New(db)

	if cfg.CatalogCSV != "" {
		actor, err := seed.EnsureSystemUser(ctx, s)
		if err != nil {
			return err
		}
		if _, err := seed.LoadCatalog(ctx, s, cfg.CatalogCSV, actor); err != nil {
			lg.Warn("catalog seed failed", zap.String("path", cfg.CatalogCSV), zap.Error(err))
		}
	}

	handler := api.New(api.NewServices(s, cfg.Secret, cfg.JWTTTL, int64(cfg.LowStockThreshold)), lg)
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: handler.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("MedLedger server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
