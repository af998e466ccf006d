package handlers

import (
	"context"
	"net/http"
	"time"
	"toll-payment/internal/transactions"

	"github.com/labstack/echo/v4"
)

type GateStatusHandler struct {
	decider *transactions.GateDecider
	timeout time.Duration
}

func NewGateStatusHandler(d *transactions.GateDecider, timeout time.Duration) *GateStatusHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &GateStatusHandler{decider: d, timeout: timeout}
}

// Handle answers with plain "deny" or "allow:<id>". A payment that cannot be
// found within the timeout is a deny.
func (h *GateStatusHandler) Handle(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	return c.String(http.StatusOK, h.decider.Decide(ctx).String())
}
