package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"toll-payment/internal/mpesa"
	"toll-payment/internal/phone"
	"toll-payment/internal/transactions"

	"github.com/labstack/echo/v4"
)

type verifyRequest struct {
	LicensePlate string `json:"licensePlate"`
}

type vehicleSummary struct {
	LicensePlate string `json:"licensePlate"`
	Owner        string `json:"owner"`
	Contact      string `json:"contact"`
}

type transactionSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type verifyResponse struct {
	Registered    bool                `json:"registered"`
	TransactionID string              `json:"transactionId,omitempty"`
	Message       string              `json:"message,omitempty"`
	Vehicle       *vehicleSummary     `json:"vehicle,omitempty"`
	Transaction   *transactionSummary `json:"transaction,omitempty"`
}

type VerifyHandler struct {
	transactionService *transactions.Service
	logger             *slog.Logger
}

func NewVerifyHandler(s *transactions.Service, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{transactionService: s, logger: logger}
}

func (h *VerifyHandler) Handle(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.LicensePlate) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "licensePlate is required"})
	}

	ctx := c.Request().Context()
	res, err := h.transactionService.Verify(ctx, req.LicensePlate)
	switch {
	case errors.Is(err, transactions.ErrVehicleNotRegistered):
		return c.JSON(http.StatusNotFound, verifyResponse{Registered: false, Message: "Vehicle not registered"})
	case errors.Is(err, phone.ErrInvalidPhoneFormat):
		h.logger.WarnContext(ctx, "vehicle has unusable contact number", "plate", res.Vehicle.LicensePlate, "error", err)
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Invalid contact number format"})
	case errors.Is(err, mpesa.ErrCredentialRefresh), errors.Is(err, mpesa.ErrPaymentInitiationFailed):
		h.logger.ErrorContext(ctx, "payment initiation failed", "plate", res.Vehicle.LicensePlate, "error", err)
		return c.JSON(http.StatusBadGateway, map[string]any{
			"registered": true,
			"error":      "Payment initiation failed",
			"detail":     err.Error(),
		})
	case err != nil:
		h.logger.ErrorContext(ctx, "verify failed", "plate", req.LicensePlate, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	tx := res.Transaction
	h.logger.InfoContext(ctx, "payment initiated",
		"transaction_id", tx.ID,
		"checkout_id", tx.CheckoutRequestID,
		"plate", tx.LicensePlate,
	)
	return c.JSON(http.StatusOK, verifyResponse{
		Registered:    true,
		TransactionID: tx.ID,
		Message:       "Payment request sent to " + res.Vehicle.OwnerName,
		Vehicle: &vehicleSummary{
			LicensePlate: res.Vehicle.LicensePlate,
			Owner:        res.Vehicle.OwnerName,
			Contact:      res.Vehicle.PhoneNumber,
		},
		Transaction: &transactionSummary{
			ID:        tx.ID,
			Status:    string(tx.Status),
			Timestamp: tx.CreatedAt,
		},
	})
}
