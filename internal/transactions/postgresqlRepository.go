package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"
	"toll-payment/internal/transactions/entities"
	"toll-payment/internal/transactions/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                  TEXT PRIMARY KEY,
	license_plate       TEXT NOT NULL,
	phone_number        TEXT NOT NULL,
	amount              INTEGER NOT NULL CHECK (amount > 0),
	status              TEXT NOT NULL DEFAULT 'pending'
	                    CHECK (status IN ('pending', 'success', 'failed', 'timeout')),
	checkout_request_id TEXT NOT NULL,
	merchant_request_id TEXT NOT NULL DEFAULT '',
	receipt_reference   TEXT,
	result_desc         TEXT,
	gate_consumed       BOOLEAN NOT NULL DEFAULT FALSE,
	gate_consumed_at    TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transactions_checkout_idx
	ON transactions (checkout_request_id, created_at DESC);
CREATE INDEX IF NOT EXISTS transactions_gate_idx
	ON transactions (updated_at DESC) WHERE status = 'success' AND NOT gate_consumed;
`

const transactionColumns = `
	id, license_plate, phone_number, amount, status,
	checkout_request_id, merchant_request_id,
	COALESCE(receipt_reference, ''), COALESCE(result_desc, ''),
	gate_consumed, gate_consumed_at, created_at, updated_at`

type TransactionPostgresRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionPostgresRepository(ctx context.Context, connString string) (*TransactionPostgresRepository, error) {
	if connString == "" {
		return nil, errors.New("CONN_STRING not defined")
	}

	dbpool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &TransactionPostgresRepository{pool: dbpool}, nil
}

func (r *TransactionPostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

func (r *TransactionPostgresRepository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func (r *TransactionPostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, postgresSchema)
	return err
}

func (r *TransactionPostgresRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transactions (
			id, license_plate, phone_number, amount, status,
			checkout_request_id, merchant_request_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tx.ID, tx.LicensePlate, tx.PhoneNumber, tx.Amount, string(tx.Status),
		tx.CheckoutRequestID, tx.MerchantRequestID, tx.CreatedAt, tx.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrDuplicate
	}
	return err
}

func (r *TransactionPostgresRepository) Get(ctx context.Context, id string) (entities.Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

func (r *TransactionPostgresRepository) LatestByCheckoutID(ctx context.Context, checkoutID string) (entities.Transaction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE checkout_request_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, checkoutID)
	return scanTransaction(row)
}

func (r *TransactionPostgresRepository) Complete(ctx context.Context, id string, outcome entities.Outcome) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET status = $2,
		    receipt_reference = NULLIF($3, ''),
		    result_desc = NULLIF($4, ''),
		    updated_at = $5
		WHERE id = $1 AND status = 'pending'
	`, id, string(outcome.Status), outcome.ReceiptReference, outcome.ResultDesc, outcome.At)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TransactionPostgresRepository) LatestUnconsumedSuccess(ctx context.Context) (entities.Transaction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = 'success' AND NOT gate_consumed
		ORDER BY updated_at DESC
		LIMIT 1
	`)
	return scanTransaction(row)
}

func (r *TransactionPostgresRepository) ConsumeGate(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET gate_consumed = TRUE, gate_consumed_at = $2
		WHERE id = $1 AND status = 'success' AND NOT gate_consumed
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanTransaction(row pgx.Row) (entities.Transaction, error) {
	var tx entities.Transaction
	var status string
	err := row.Scan(
		&tx.ID, &tx.LicensePlate, &tx.PhoneNumber, &tx.Amount, &status,
		&tx.CheckoutRequestID, &tx.MerchantRequestID,
		&tx.ReceiptReference, &tx.ResultDesc,
		&tx.GateConsumed, &tx.GateConsumedAt, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.Transaction{}, repository.ErrNotFound
	}
	if err != nil {
		return entities.Transaction{}, err
	}
	tx.Status = entities.Status(status)
	return tx, nil
}
