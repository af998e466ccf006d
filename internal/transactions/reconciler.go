package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"toll-payment/internal/mpesa"
	"toll-payment/internal/transactions/entities"
	"toll-payment/internal/transactions/repository"
)

var (
	ErrMalformedCallback  = errors.New("malformed callback")
	ErrUnknownTransaction = errors.New("unknown transaction")
	ErrMissingReceipt     = errors.New("missing receipt")
)

// ParseCallback decodes a provider notification and checks that the nested
// stkCallback structure is present.
func ParseCallback(body []byte) (*mpesa.StkCallback, error) {
	var envelope mpesa.CallbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if envelope.Body == nil || envelope.Body.StkCallback == nil {
		return nil, fmt.Errorf("%w: Body.stkCallback missing", ErrMalformedCallback)
	}
	if envelope.Body.StkCallback.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: CheckoutRequestID missing", ErrMalformedCallback)
	}
	return envelope.Body.StkCallback, nil
}

type Reconciliation struct {
	Transaction entities.Transaction
	// Applied is false when the transaction was already terminal.
	Applied bool
}

type Reconciler struct {
	transactionRepository repository.Transaction
	anomalies             AnomalyRecorder
	logger                *slog.Logger
	now                   func() time.Time
}

func NewReconciler(repo repository.Transaction, anomalies AnomalyRecorder, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if anomalies == nil {
		anomalies = NewLogAnomalyRecorder(logger)
	}
	return &Reconciler{
		transactionRepository: repo,
		anomalies:             anomalies,
		logger:                logger,
		now:                   time.Now,
	}
}

// Reconcile applies a callback to the latest transaction for its checkout id.
// A delivery for a transaction that is already terminal is a no-op. A success
// without a receipt is still applied and reported as ErrMissingReceipt.
func (r *Reconciler) Reconcile(ctx context.Context, cb *mpesa.StkCallback) (Reconciliation, error) {
	if cb == nil || cb.CheckoutRequestID == "" {
		return Reconciliation{}, ErrMalformedCallback
	}

	tx, err := r.transactionRepository.LatestByCheckoutID(ctx, cb.CheckoutRequestID)
	if errors.Is(err, repository.ErrNotFound) {
		r.record(ctx, AnomalyUnknown, cb, "", cb.ResultDesc)
		return Reconciliation{}, fmt.Errorf("%w: checkout %s", ErrUnknownTransaction, cb.CheckoutRequestID)
	}
	if err != nil {
		r.record(ctx, AnomalyReconcileFailure, cb, "", err.Error())
		return Reconciliation{}, fmt.Errorf("lookup checkout %s: %w", cb.CheckoutRequestID, err)
	}
	if tx.Status.Terminal() {
		r.record(ctx, AnomalyDuplicate, cb, tx.ID, string(tx.Status))
		return Reconciliation{Transaction: tx}, nil
	}

	outcome := entities.Outcome{
		Status:     entities.StatusFailed,
		ResultDesc: cb.ResultDesc,
		At:         r.now().UTC(),
	}
	var missingReceipt bool
	if cb.Succeeded() {
		outcome.Status = entities.StatusSuccess
		receipt, ok := cb.Receipt()
		outcome.ReceiptReference = receipt
		missingReceipt = !ok
	}

	applied, err := r.transactionRepository.Complete(ctx, tx.ID, outcome)
	if err != nil {
		r.record(ctx, AnomalyReconcileFailure, cb, tx.ID, err.Error())
		return Reconciliation{Transaction: tx}, fmt.Errorf("complete transaction %s: %w", tx.ID, err)
	}
	if !applied {
		// A concurrent delivery won the conditional update.
		current, err := r.transactionRepository.Get(ctx, tx.ID)
		if err != nil {
			current = tx
		}
		r.record(ctx, AnomalyDuplicate, cb, tx.ID, string(current.Status))
		return Reconciliation{Transaction: current}, nil
	}

	tx.Status = outcome.Status
	tx.ReceiptReference = outcome.ReceiptReference
	tx.ResultDesc = outcome.ResultDesc
	tx.UpdatedAt = outcome.At
	r.logger.InfoContext(ctx, "transaction reconciled",
		"transaction_id", tx.ID,
		"checkout_id", tx.CheckoutRequestID,
		"status", tx.Status,
		"receipt", tx.ReceiptReference,
	)

	if missingReceipt {
		r.record(ctx, AnomalyMissingReceipt, cb, tx.ID, "success callback without "+mpesa.ReceiptItemName)
		return Reconciliation{Transaction: tx, Applied: true}, ErrMissingReceipt
	}
	return Reconciliation{Transaction: tx, Applied: true}, nil
}

func (r *Reconciler) record(ctx context.Context, kind AnomalyKind, cb *mpesa.StkCallback, txID, detail string) {
	r.anomalies.Record(ctx, Anomaly{
		Kind:              kind,
		CheckoutRequestID: cb.CheckoutRequestID,
		TransactionID:     txID,
		Detail:            detail,
		At:                r.now().UTC(),
	})
}
