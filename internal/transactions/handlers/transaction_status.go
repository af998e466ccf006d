package handlers

import (
	"errors"
	"net/http"
	"time"
	"toll-payment/internal/transactions"
	"toll-payment/internal/transactions/repository"

	"github.com/labstack/echo/v4"
)

type transactionStatusResponse struct {
	Status           string    `json:"status"`
	TransactionID    string    `json:"transactionId"`
	ReceiptReference string    `json:"receiptReference,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type TransactionStatusHandler struct {
	transactionService *transactions.Service
}

func NewTransactionStatusHandler(s *transactions.Service) *TransactionStatusHandler {
	return &TransactionStatusHandler{transactionService: s}
}

func (h *TransactionStatusHandler) Handle(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "transaction id is required"})
	}

	tx, err := h.transactionService.GetTransaction(c.Request().Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Transaction not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load transaction"})
	}

	return c.JSON(http.StatusOK, transactionStatusResponse{
		Status:           string(tx.Status),
		TransactionID:    tx.ID,
		ReceiptReference: tx.ReceiptReference,
		UpdatedAt:        tx.UpdatedAt,
	})
}
