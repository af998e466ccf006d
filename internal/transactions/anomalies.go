package transactions

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	AnomalyListKey    = "mpesa:callback:anomalies"
	anomalyListLength = 1000
)

type AnomalyKind string

const (
	AnomalyMalformed        AnomalyKind = "malformed_callback"
	AnomalyUnknown          AnomalyKind = "unknown_transaction"
	AnomalyMissingReceipt   AnomalyKind = "missing_receipt"
	AnomalyDuplicate        AnomalyKind = "duplicate_callback"
	AnomalyReconcileFailure AnomalyKind = "reconcile_failure"
)

type Anomaly struct {
	Kind              AnomalyKind `json:"kind"`
	CheckoutRequestID string      `json:"checkoutRequestId,omitempty"`
	TransactionID     string      `json:"transactionId,omitempty"`
	Detail            string      `json:"detail,omitempty"`
	At                time.Time   `json:"at"`
}

// AnomalyRecorder gives operators visibility into callbacks that were
// acknowledged but could not be applied cleanly.
type AnomalyRecorder interface {
	Record(ctx context.Context, a Anomaly)
}

type LogAnomalyRecorder struct {
	logger *slog.Logger
}

func NewLogAnomalyRecorder(logger *slog.Logger) *LogAnomalyRecorder {
	return &LogAnomalyRecorder{logger: logger}
}

func (r *LogAnomalyRecorder) Record(ctx context.Context, a Anomaly) {
	r.logger.WarnContext(ctx, "callback anomaly",
		"kind", a.Kind,
		"checkout_id", a.CheckoutRequestID,
		"transaction_id", a.TransactionID,
		"detail", a.Detail,
	)
}

// RedisAnomalyRecorder logs and also pushes the anomaly onto a capped list.
type RedisAnomalyRecorder struct {
	client *redis.Client
	log    *LogAnomalyRecorder
}

func NewRedisAnomalyRecorder(client *redis.Client, logger *slog.Logger) *RedisAnomalyRecorder {
	return &RedisAnomalyRecorder{client: client, log: NewLogAnomalyRecorder(logger)}
}

func (r *RedisAnomalyRecorder) Record(ctx context.Context, a Anomaly) {
	r.log.Record(ctx, a)

	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, AnomalyListKey, data)
	pipe.LTrim(ctx, AnomalyListKey, 0, anomalyListLength-1)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.logger.ErrorContext(ctx, "failed to persist callback anomaly", "kind", a.Kind, "error", err)
	}
}

// RecentAnomalies returns the newest anomalies first.
func (r *RedisAnomalyRecorder) RecentAnomalies(ctx context.Context, limit int64) ([]Anomaly, error) {
	raw, err := r.client.LRange(ctx, AnomalyListKey, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Anomaly, 0, len(raw))
	for _, item := range raw {
		var a Anomaly
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
