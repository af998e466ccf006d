package mpesa

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const DefaultRefreshMargin = 5 * time.Minute

// Credential is replaced as a whole; readers never observe a token paired
// with another token's expiry.
type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (c Credential) ValidAt(t time.Time) bool {
	return c.Token != "" && c.ExpiresAt.After(t)
}

func (c Credential) FreshAt(t time.Time, margin time.Duration) bool {
	return c.Token != "" && c.ExpiresAt.After(t.Add(margin))
}

type TokenSource interface {
	FetchToken(ctx context.Context) (Credential, error)
}

// CredentialCache shares a credential between processes.
type CredentialCache interface {
	Load(ctx context.Context) (Credential, bool, error)
	Store(ctx context.Context, cred Credential) error
}

type RefreshLocker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

type CredentialManager struct {
	source TokenSource
	cache  CredentialCache
	locker RefreshLocker
	margin time.Duration
	now    func() time.Time
	logger *slog.Logger

	current   atomic.Pointer[Credential]
	group     singleflight.Group
	refreshes atomic.Int64
}

type ManagerOption func(*CredentialManager)

func WithCache(cache CredentialCache) ManagerOption {
	return func(m *CredentialManager) { m.cache = cache }
}

func WithLocker(locker RefreshLocker) ManagerOption {
	return func(m *CredentialManager) { m.locker = locker }
}

func WithRefreshMargin(margin time.Duration) ManagerOption {
	return func(m *CredentialManager) {
		if margin >= 0 {
			m.margin = margin
		}
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *CredentialManager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *CredentialManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewCredentialManager(source TokenSource, opts ...ManagerOption) *CredentialManager {
	m := &CredentialManager{
		source: source,
		margin: DefaultRefreshMargin,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureFresh returns a credential that is not within the refresh margin of
// its expiry, refreshing first when needed. Concurrent callers share a single
// refresh.
func (m *CredentialManager) EnsureFresh(ctx context.Context) (Credential, error) {
	if cred, ok := m.fresh(); ok {
		return cred, nil
	}

	// The refresh outlives a cancelled caller so waiters still get its result.
	ch := m.group.DoChan("refresh", func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Credential{}, res.Err
		}
		cred := res.Val.(Credential)
		if !cred.ValidAt(m.now()) {
			return Credential{}, &CredentialRefreshError{Detail: "refreshed credential already expired"}
		}
		return cred, nil
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	}
}

// Refreshes reports how many times the token endpoint was called successfully.
func (m *CredentialManager) Refreshes() int64 {
	return m.refreshes.Load()
}

// Current returns the held credential without refreshing.
func (m *CredentialManager) Current() (Credential, bool) {
	cred := m.current.Load()
	if cred == nil {
		return Credential{}, false
	}
	return *cred, true
}

func (m *CredentialManager) fresh() (Credential, bool) {
	cred := m.current.Load()
	if cred == nil || !cred.FreshAt(m.now(), m.margin) {
		return Credential{}, false
	}
	return *cred, true
}

func (m *CredentialManager) refresh(ctx context.Context) (Credential, error) {
	if cred, ok := m.fresh(); ok {
		return cred, nil
	}
	if cred, ok := m.loadShared(ctx); ok {
		return cred, nil
	}

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx)
		if err != nil {
			return Credential{}, &CredentialRefreshError{Detail: "acquire refresh lock", Err: err}
		}
		defer unlock()

		// Another process may have refreshed while we waited for the lock.
		if cred, ok := m.loadShared(ctx); ok {
			return cred, nil
		}
	}

	cred, err := m.source.FetchToken(ctx)
	if err != nil {
		var refreshErr *CredentialRefreshError
		if errors.As(err, &refreshErr) {
			return Credential{}, err
		}
		return Credential{}, &CredentialRefreshError{Err: err}
	}
	if !cred.ValidAt(m.now()) {
		return Credential{}, &CredentialRefreshError{Detail: "provider returned an expired credential"}
	}

	m.refreshes.Add(1)
	m.current.Store(&cred)
	m.logger.Info("mpesa token refreshed", "expires_at", cred.ExpiresAt)

	if m.cache != nil {
		if err := m.cache.Store(ctx, cred); err != nil {
			m.logger.Warn("failed to share mpesa token", "error", err)
		}
	}
	return cred, nil
}

func (m *CredentialManager) loadShared(ctx context.Context) (Credential, bool) {
	if m.cache == nil {
		return Credential{}, false
	}
	cred, found, err := m.cache.Load(ctx)
	if err != nil {
		m.logger.Warn("failed to load shared mpesa token", "error", err)
		return Credential{}, false
	}
	if !found || !cred.FreshAt(m.now(), m.margin) {
		return Credential{}, false
	}
	m.current.Store(&cred)
	return cred, true
}
