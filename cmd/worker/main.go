package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"toll-payment/internal/config"
	"toll-payment/internal/infra"
	"toll-payment/internal/logging"
	"toll-payment/internal/mpesa"
	"toll-payment/internal/redis"
)

// The worker keeps the Redis-shared provider token warm for every server
// replica, so no request path has to wait on the token endpoint.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	if err := cfg.ValidateProvider(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	rdb, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	source := mpesa.NewOAuthClient(cfg.Mpesa.BaseURL, cfg.Mpesa.ConsumerKey, cfg.Mpesa.ConsumerSecret, cfg.Mpesa.RequestTimeout)
	creds := mpesa.NewCredentialManager(source,
		mpesa.WithRefreshMargin(cfg.Mpesa.TokenRefreshMargin),
		mpesa.WithCache(mpesa.NewRedisCredentialCache(rdb.Client)),
		mpesa.WithLocker(mpesa.NewRedsyncLocker(rdb.Lock, 2*cfg.Mpesa.RequestTimeout)),
		mpesa.WithLogger(logger),
	)

	refresher := infra.NewCredentialRefresher(creds, cfg.Mpesa.TokenRefreshEvery, cfg.Mpesa.RequestTimeout, logger)
	refresher.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down worker...")
	refresher.Stop()
}
