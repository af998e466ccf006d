// Package poller follows a transaction from the client side until it reaches
// a terminal state or the attempt budget runs out.
package poller

import (
	"context"
	"log/slog"
	"time"
)

type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailed  State = "failed"
	StateTimeout State = "timeout"
	StateError   State = "error"
)

func (s State) Terminal() bool {
	return s != StatePending
}

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 12
)

// Status is a point-in-time read of a transaction.
type Status struct {
	Status           string    `json:"status"`
	TransactionID    string    `json:"transactionId"`
	ReceiptReference string    `json:"receiptReference,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type Fetcher interface {
	Fetch(ctx context.Context, transactionID string) (Status, error)
}

type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type Result struct {
	State    State
	Last     Status
	Attempts int
	Err      error
}

type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

type Option func(*Poller)

func WithClock(c Clock) Option {
	return func(p *Poller) { p.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// WithObserver is called after every fetch with the state reached so far.
func WithObserver(fn func(Result)) Option {
	return func(p *Poller) { p.observe = fn }
}

type Poller struct {
	fetcher Fetcher
	cfg     Config
	clock   Clock
	logger  *slog.Logger
	observe func(Result)
}

func New(fetcher Fetcher, cfg Config, opts ...Option) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	p := &Poller{
		fetcher: fetcher,
		cfg:     cfg,
		clock:   realClock{},
		logger:  slog.Default(),
		observe: func(Result) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next is the transition table: given the outcome of one fetch and the number
// of fetches made so far, it returns the state the poller moves to.
func Next(observed Status, fetchErr error, attempts, maxAttempts int) State {
	if fetchErr != nil {
		return StateError
	}
	switch observed.Status {
	case string(StateSuccess):
		return StateSuccess
	case string(StateFailed):
		return StateFailed
	case string(StateTimeout):
		return StateTimeout
	case string(StatePending):
		if attempts >= maxAttempts {
			return StateTimeout
		}
		return StatePending
	default:
		return StateError
	}
}

// Poll fetches immediately, then once per interval while the transaction is
// pending. It never cancels the payment itself; a late result is simply not
// observed.
func (p *Poller) Poll(ctx context.Context, transactionID string) Result {
	res := Result{State: StatePending}
	for {
		status, err := p.fetcher.Fetch(ctx, transactionID)
		res.Attempts++
		res.State = Next(status, err, res.Attempts, p.cfg.MaxAttempts)
		if err != nil {
			res.Err = err
		} else {
			res.Last = status
		}
		p.observe(res)

		if res.State.Terminal() {
			p.logger.InfoContext(ctx, "polling finished",
				"transaction_id", transactionID,
				"state", res.State,
				"attempts", res.Attempts,
			)
			return res
		}

		select {
		case <-ctx.Done():
			res.State = StateError
			res.Err = ctx.Err()
			return res
		case <-p.clock.After(p.cfg.Interval):
		}
	}
}
