package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dvillela/propex/internal/config"
	"github.com/dvillela/propex/internal/domain"
	"github.com/dvillela/propex/internal/handler"
	"github.com/dvillela/propex/internal/ledger"
	"github.com/dvillela/propex/internal/service"
	"github.com/dvillela/propex/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Optional .env for local development; environment wins over file.
	_ = godotenv.Load()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// External ledger authority. The in-process ledger carries the full
	// contract semantics; a chain-RPC client slots in behind the same
	// interface.
	auth := ledger.NewMemLedger(domain.FeePolicy{
		TradeFeeBps: cfg.TradeFeeBps,
		Treasury:    cfg.TreasuryAddress,
	})

	// Stores.
	index := store.NewIndexStore()
	rounds := store.NewRoundStore()
	activity, err := store.OpenActivityStore(filepath.Join(cfg.DataDir, "activity"))
	if err != nil {
		logger.Error("failed to open activity store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer activity.Close()

	// Services.
	reconciler := service.NewReconciler(auth, index, logger, cfg.LedgerTimeout)
	settler := service.NewSettlementExecutor(auth, index, activity, logger, cfg.LedgerTimeout)
	orderSvc := service.NewOrderService(auth, index, settler, reconciler, activity, logger, cfg.LedgerTimeout, cfg.PriceTolerance)
	yieldSvc := service.NewYieldService(auth, rounds, activity, logger, cfg.LedgerTimeout)

	// Router.
	router := handler.NewRouter(orderSvc, yieldSvc, reconciler, activity, logger)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
