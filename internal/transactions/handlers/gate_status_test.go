package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"toll-payment/internal/transactions"
	"toll-payment/internal/transactions/entities"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lateAckStore struct {
	*transactions.InMemoryTransactionDB
	delay time.Duration
}

func (s *lateAckStore) ConsumeGate(ctx context.Context, id string, at time.Time) (bool, error) {
	ok, err := s.InMemoryTransactionDB.ConsumeGate(ctx, id, at)
	time.Sleep(s.delay)
	return ok, err
}

func TestGateStatusAnswersWhatWasCommitted(t *testing.T) {
	ctx := context.Background()
	repo := transactions.NewInMemoryTransactionDB()
	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, &entities.Transaction{
		ID:                "tx-1",
		LicensePlate:      "KDA123A",
		PhoneNumber:       "254712345678",
		Amount:            1,
		Status:            entities.StatusPending,
		CheckoutRequestID: "ws_CO_1",
		CreatedAt:         now.Add(-time.Minute),
		UpdatedAt:         now.Add(-time.Minute),
	}))
	ok, err := repo.Complete(ctx, "tx-1", entities.Outcome{Status: entities.StatusSuccess, ReceiptReference: "QGR7XYZ1", At: now})
	require.NoError(t, err)
	require.True(t, ok)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	decider := transactions.NewGateDecider(&lateAckStore{InMemoryTransactionDB: repo, delay: 80 * time.Millisecond}, 5*time.Minute, logger)
	h := NewGateStatusHandler(decider, 50*time.Millisecond)
	e := echo.New()

	answers := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/gate-status", nil), rec)
		require.NoError(t, h.Handle(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		answers = append(answers, rec.Body.String())
	}
	assert.Equal(t, []string{"allow:tx-1", "deny"}, answers)

	got, err := repo.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, got.GateConsumed)
}
