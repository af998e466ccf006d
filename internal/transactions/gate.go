package transactions

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"toll-payment/internal/transactions/entities"
	"toll-payment/internal/transactions/repository"
)

const DefaultGateValidityWindow = 5 * time.Minute

type GateDecision struct {
	Allow         bool
	TransactionID string
	Reason        string
}

// String renders the decision in the format field devices parse.
func (d GateDecision) String() string {
	if d.Allow {
		return "allow:" + d.TransactionID
	}
	return "deny"
}

func deny(reason string) GateDecision {
	return GateDecision{Reason: reason}
}

// GateDecider grants access at most once per successful transaction, and only
// within the validity window after the payment succeeded.
type GateDecider struct {
	transactionRepository repository.Transaction
	window                time.Duration
	logger                *slog.Logger
	now                   func() time.Time
}

func NewGateDecider(repo repository.Transaction, window time.Duration, logger *slog.Logger) *GateDecider {
	if window <= 0 {
		window = DefaultGateValidityWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GateDecider{
		transactionRepository: repo,
		window:                window,
		logger:                logger,
		now:                   time.Now,
	}
}

// Decide never returns an allow decision on error. ctx bounds the lookup
// only; a consume that has been issued is always awaited.
func (g *GateDecider) Decide(ctx context.Context) GateDecision {
	d := g.decide(ctx)
	g.logger.InfoContext(ctx, "gate decision",
		"decision", d.String(),
		"transaction_id", d.TransactionID,
		"reason", d.Reason,
	)
	return d
}

func (g *GateDecider) decide(ctx context.Context) GateDecision {
	tx, err := g.lookup(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return deny("no unconsumed payment")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return deny("deadline exceeded")
	}
	if err != nil {
		return deny("lookup failed: " + err.Error())
	}

	now := g.now().UTC()
	if now.Sub(tx.UpdatedAt) > g.window {
		return GateDecision{TransactionID: tx.ID, Reason: "payment expired"}
	}

	if err := ctx.Err(); err != nil {
		return GateDecision{TransactionID: tx.ID, Reason: "deadline exceeded"}
	}
	consumed, err := g.transactionRepository.ConsumeGate(context.WithoutCancel(ctx), tx.ID, now)
	if err != nil {
		return GateDecision{TransactionID: tx.ID, Reason: "consume failed: " + err.Error()}
	}
	if !consumed {
		return GateDecision{TransactionID: tx.ID, Reason: "already consumed"}
	}
	return GateDecision{Allow: true, TransactionID: tx.ID, Reason: "payment valid"}
}

func (g *GateDecider) lookup(ctx context.Context) (entities.Transaction, error) {
	type found struct {
		tx  entities.Transaction
		err error
	}
	ch := make(chan found, 1)
	go func() {
		tx, err := g.transactionRepository.LatestUnconsumedSuccess(ctx)
		ch <- found{tx, err}
	}()

	select {
	case f := <-ch:
		return f.tx, f.err
	case <-ctx.Done():
		return entities.Transaction{}, ctx.Err()
	}
}
