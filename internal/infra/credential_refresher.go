package infra

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"toll-payment/internal/mpesa"
)

const defaultRefreshInterval = 5 * time.Minute

// CredentialRefresher keeps the provider credential warm so that payment
// requests rarely wait on a cold token fetch. Failures are logged and left
// for the next tick or the next foreground call.
type CredentialRefresher struct {
	creds    mpesa.CredentialProvider
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	wg     sync.WaitGroup
	once   sync.Once
	cancel context.CancelFunc
}

func NewCredentialRefresher(creds mpesa.CredentialProvider, interval, timeout time.Duration, logger *slog.Logger) *CredentialRefresher {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialRefresher{
		creds:    creds,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start refreshes once immediately and then on every tick until ctx is done
// or Stop is called. It does not block.
func (r *CredentialRefresher) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.run(ctx)
}

func (r *CredentialRefresher) run(ctx context.Context) {
	defer r.wg.Done()
	r.logger.Info("credential refresher started", "interval", r.interval)

	r.RunOnce(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("credential refresher stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single refresh attempt and reports whether it succeeded.
func (r *CredentialRefresher) RunOnce(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cred, err := r.creds.EnsureFresh(ctx)
	if err != nil {
		r.logger.Error("credential refresh failed", "error", err)
		return false
	}
	r.logger.Debug("credential ready", "expires_at", cred.ExpiresAt)
	return true
}

// Stop cancels the loop and waits for it to exit.
func (r *CredentialRefresher) Stop() {
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
	})
	r.wg.Wait()
}
