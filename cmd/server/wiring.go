package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"toll-payment/internal/config"
	"toll-payment/internal/mpesa"
	"toll-payment/internal/redis"
	"toll-payment/internal/transactions"
	transactionRepository "toll-payment/internal/transactions/repository"
	"toll-payment/internal/vehicles"
	vehicleRepository "toll-payment/internal/vehicles/repository"
)

type stores struct {
	transactions transactionRepository.Transaction
	vehicles     vehicleRepository.Directory
	close        func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		repo, err := transactions.NewTransactionPostgresRepository(ctx, cfg.ConnString)
		if err != nil {
			return nil, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			repo.Close()
			return nil, fmt.Errorf("create transactions schema: %w", err)
		}
		dir := vehicles.NewVehiclePostgresRepository(repo.Pool())
		if err := dir.EnsureSchema(ctx); err != nil {
			repo.Close()
			return nil, fmt.Errorf("create vehicles schema: %w", err)
		}
		return &stores{transactions: repo, vehicles: dir, close: repo.Close}, nil

	case config.DriverSQLite:
		db, err := transactions.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		repo, err := transactions.NewSQLiteRepository(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		dir, err := vehicles.NewSQLiteRepository(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &stores{transactions: repo, vehicles: dir, close: closeDB(db)}, nil

	case config.DriverMemory:
		return &stores{
			transactions: transactions.NewInMemoryTransactionDB(),
			vehicles:     vehicles.NewInMemoryVehicleDB(),
			close:        func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

func closeDB(db *sql.DB) func() {
	return func() { db.Close() }
}

// connectRedis returns nil when REDIS_URL is unset; the server then keeps
// the credential in process only.
func connectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		logger.Info("REDIS_URL not defined, credential is not shared across processes")
		return nil
	}
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to Redis, continuing without it", "error", err)
		return nil
	}
	return client
}

func newCredentialManager(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) *mpesa.CredentialManager {
	source := mpesa.NewOAuthClient(cfg.Mpesa.BaseURL, cfg.Mpesa.ConsumerKey, cfg.Mpesa.ConsumerSecret, cfg.Mpesa.RequestTimeout)
	opts := []mpesa.ManagerOption{
		mpesa.WithRefreshMargin(cfg.Mpesa.TokenRefreshMargin),
		mpesa.WithLogger(logger),
	}
	if rdb != nil {
		opts = append(opts,
			mpesa.WithCache(mpesa.NewRedisCredentialCache(rdb.Client)),
			mpesa.WithLocker(mpesa.NewRedsyncLocker(rdb.Lock, 2*cfg.Mpesa.RequestTimeout)),
		)
	}
	return mpesa.NewCredentialManager(source, opts...)
}

func newGateway(cfg *config.Config, creds mpesa.CredentialProvider) *mpesa.Gateway {
	return mpesa.NewGateway(mpesa.GatewayConfig{
		BaseURL:          cfg.Mpesa.BaseURL,
		Shortcode:        cfg.Mpesa.Shortcode,
		Passkey:          cfg.Mpesa.Passkey,
		CallbackURL:      cfg.Mpesa.CallbackURL,
		AccountReference: cfg.Mpesa.AccountReference,
		TransactionDesc:  cfg.Mpesa.TransactionDesc,
		Timeout:          cfg.Mpesa.RequestTimeout,
	}, creds)
}

func newAnomalyRecorder(rdb *redis.Client, logger *slog.Logger) transactions.AnomalyRecorder {
	if rdb == nil {
		return transactions.NewLogAnomalyRecorder(logger)
	}
	return transactions.NewRedisAnomalyRecorder(rdb.Client, logger)
}
