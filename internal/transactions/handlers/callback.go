package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"
	"toll-payment/internal/mpesa"
	"toll-payment/internal/transactions"

	"github.com/labstack/echo/v4"
)

const (
	maxCallbackBody  = 1 << 20
	reconcileTimeout = 10 * time.Second
)

type CallbackHandler struct {
	reconciler *transactions.Reconciler
	anomalies  transactions.AnomalyRecorder
	logger     *slog.Logger
}

func NewCallbackHandler(r *transactions.Reconciler, anomalies transactions.AnomalyRecorder, logger *slog.Logger) *CallbackHandler {
	return &CallbackHandler{reconciler: r, anomalies: anomalies, logger: logger}
}

// Handle acknowledges every structurally valid callback, whatever the
// reconciliation outcome, so the provider does not redeliver.
func (h *CallbackHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}

	cb, err := transactions.ParseCallback(body)
	if err != nil {
		h.anomalies.Record(ctx, transactions.Anomaly{
			Kind:   transactions.AnomalyMalformed,
			Detail: err.Error(),
			At:     time.Now().UTC(),
		})
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed callback"})
	}

	// The write must finish even if the provider hangs up early.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
	defer cancel()

	res, err := h.reconciler.Reconcile(rctx, cb)
	switch {
	case errors.Is(err, transactions.ErrUnknownTransaction), errors.Is(err, transactions.ErrMissingReceipt):
		// recorded by the reconciler
	case err != nil:
		h.logger.ErrorContext(ctx, "callback reconciliation failed", "callback", cb.String(), "error", err)
	case !res.Applied:
		h.logger.InfoContext(ctx, "duplicate callback ignored", "transaction_id", res.Transaction.ID, "status", res.Transaction.Status)
	}

	return c.JSON(http.StatusOK, mpesa.AcceptedAck())
}
