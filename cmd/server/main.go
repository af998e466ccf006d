package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"toll-payment/internal/config"
	"toll-payment/internal/infra"
	"toll-payment/internal/logging"
	"toll-payment/internal/transactions"
	"toll-payment/internal/vehicles"

	"github.com/NYTimes/gziphandler"
)

func main() {
	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Error("failed to open stores", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	rdb := connectRedis(ctx, cfg, logger)
	defer rdb.Close()

	creds := newCredentialManager(cfg, rdb, logger)
	refresher := infra.NewCredentialRefresher(creds, cfg.Mpesa.TokenRefreshEvery, cfg.Mpesa.RequestTimeout, logger)
	refresher.Start(ctx)
	defer refresher.Stop()

	anomalies := newAnomalyRecorder(rdb, logger)
	vehicleService := vehicles.NewVehicleService(st.vehicles)
	transactionService := transactions.NewTransactionService(st.transactions, vehicleService, newGateway(cfg, creds), cfg.TollAmount)

	router := newRouter(routeDeps{
		logger:              logger,
		vehicleService:      vehicleService,
		transactionService:  transactionService,
		reconciler:          transactions.NewReconciler(st.transactions, anomalies, logger),
		gate:                transactions.NewGateDecider(st.transactions, cfg.GateValidityWindow, logger),
		anomalies:           anomalies,
		gateResponseTimeout: cfg.GateResponseTimeout,
		verifyRate:          cfg.VerifyRateLimit,
		verifyBurst:         cfg.VerifyRateBurst,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           gziphandler.GzipHandler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "callback_url", cfg.Mpesa.CallbackURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
