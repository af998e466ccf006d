package repository

import (
	"context"
	"errors"
	"time"
	"toll-payment/internal/transactions/entities"
)

var (
	ErrNotFound  = errors.New("transaction not found")
	ErrDuplicate = errors.New("transaction already exists")
)

// Transaction is the durable store. Complete and ConsumeGate are
// compare-and-swap operations on a single row: they report false when the
// row was no longer in the expected state.
type Transaction interface {
	Create(ctx context.Context, tx *entities.Transaction) error
	Get(ctx context.Context, id string) (entities.Transaction, error)
	// LatestByCheckoutID returns the most recently created transaction for a
	// provider correlation id.
	LatestByCheckoutID(ctx context.Context, checkoutID string) (entities.Transaction, error)
	// Complete moves a pending transaction to a terminal outcome.
	Complete(ctx context.Context, id string, outcome entities.Outcome) (bool, error)
	// LatestUnconsumedSuccess returns the most recently updated success that
	// has not opened the gate yet.
	LatestUnconsumedSuccess(ctx context.Context) (entities.Transaction, error)
	// ConsumeGate flips gate_consumed from false to true on a success row.
	ConsumeGate(ctx context.Context, id string, at time.Time) (bool, error)
}
