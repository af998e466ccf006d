package transactions

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"
	tollredis "toll-payment/internal/redis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAnomalyRecorder(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogAnomalyRecorder(slog.New(slog.NewJSONHandler(&buf, nil)))
	r.Record(context.Background(), Anomaly{Kind: AnomalyUnknown, CheckoutRequestID: "ws_CO_1", At: baseTime})

	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"kind":"unknown_transaction"`)
	assert.Contains(t, buf.String(), `"checkout_id":"ws_CO_1"`)
}

func TestRedisAnomalyRecorder(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	rdb, err := tollredis.NewClient(ctx, url)
	require.NoError(t, err)
	defer rdb.Close()
	require.NoError(t, rdb.Client.Del(ctx, AnomalyListKey).Err())

	r := NewRedisAnomalyRecorder(rdb.Client, discardLogger())
	r.Record(ctx, Anomaly{Kind: AnomalyUnknown, CheckoutRequestID: "ws_CO_1", At: baseTime})
	r.Record(ctx, Anomaly{Kind: AnomalyMissingReceipt, TransactionID: "tx-2", At: baseTime})

	got, err := r.RecentAnomalies(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, AnomalyMissingReceipt, got[0].Kind)
	assert.Equal(t, "ws_CO_1", got[1].CheckoutRequestID)
}
