package transactions

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"toll-payment/internal/transactions/entities"
	"toll-payment/internal/transactions/repository"

	_ "github.com/mattn/go-sqlite3"
)

// Fixed width so lexical order matches time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                  TEXT PRIMARY KEY,
	license_plate       TEXT NOT NULL,
	phone_number        TEXT NOT NULL,
	amount              INTEGER NOT NULL CHECK (amount > 0),
	status              TEXT NOT NULL DEFAULT 'pending',
	checkout_request_id TEXT NOT NULL,
	merchant_request_id TEXT NOT NULL DEFAULT '',
	receipt_reference   TEXT NOT NULL DEFAULT '',
	result_desc         TEXT NOT NULL DEFAULT '',
	gate_consumed       INTEGER NOT NULL DEFAULT 0,
	gate_consumed_at    TEXT,
	created_at          TEXT NOT NULL,
	updated_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS transactions_checkout_idx ON transactions (checkout_request_id, created_at);
CREATE INDEX IF NOT EXISTS transactions_gate_idx ON transactions (status, gate_consumed, updated_at);
`

const sqliteColumns = `id, license_plate, phone_number, amount, status,
	checkout_request_id, merchant_request_id, receipt_reference, result_desc,
	gate_consumed, gate_consumed_at, created_at, updated_at`

type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens a database file in WAL mode over a single connection.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, err
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, license_plate, phone_number, amount, status,
			checkout_request_id, merchant_request_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.ID, tx.LicensePlate, tx.PhoneNumber, tx.Amount, string(tx.Status),
		tx.CheckoutRequestID, tx.MerchantRequestID, formatTime(tx.CreatedAt), formatTime(tx.UpdatedAt))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return repository.ErrDuplicate
	}
	return err
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (entities.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM transactions WHERE id = ?`, id)
	return scanSQLiteTransaction(row)
}

func (r *SQLiteRepository) LatestByCheckoutID(ctx context.Context, checkoutID string) (entities.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sqliteColumns+`
		FROM transactions
		WHERE checkout_request_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, checkoutID)
	return scanSQLiteTransaction(row)
}

func (r *SQLiteRepository) Complete(ctx context.Context, id string, outcome entities.Outcome) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, receipt_reference = ?, result_desc = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, string(outcome.Status), outcome.ReceiptReference, outcome.ResultDesc, formatTime(outcome.At), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *SQLiteRepository) LatestUnconsumedSuccess(ctx context.Context) (entities.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sqliteColumns+`
		FROM transactions
		WHERE status = 'success' AND gate_consumed = 0
		ORDER BY updated_at DESC
		LIMIT 1
	`)
	return scanSQLiteTransaction(row)
}

func (r *SQLiteRepository) ConsumeGate(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET gate_consumed = 1, gate_consumed_at = ?
		WHERE id = ? AND status = 'success' AND gate_consumed = 0
	`, formatTime(at), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func scanSQLiteTransaction(row *sql.Row) (entities.Transaction, error) {
	var (
		tx                   entities.Transaction
		status               string
		consumed             int
		consumedAt           sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&tx.ID, &tx.LicensePlate, &tx.PhoneNumber, &tx.Amount, &status,
		&tx.CheckoutRequestID, &tx.MerchantRequestID, &tx.ReceiptReference, &tx.ResultDesc,
		&consumed, &consumedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Transaction{}, repository.ErrNotFound
	}
	if err != nil {
		return entities.Transaction{}, err
	}

	tx.Status = entities.Status(status)
	tx.GateConsumed = consumed != 0
	if consumedAt.Valid {
		t, err := parseTime(consumedAt.String)
		if err != nil {
			return entities.Transaction{}, err
		}
		tx.GateConsumedAt = &t
	}
	if tx.CreatedAt, err = parseTime(createdAt); err != nil {
		return entities.Transaction{}, err
	}
	if tx.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return entities.Transaction{}, err
	}
	return tx, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}
