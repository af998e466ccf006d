package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/redis/go-redis/v9"
)

const (
	TokenCacheKey   = "mpesa:access_token"
	RefreshLockName = "mpesa:access_token:refresh"
)

type RedisCredentialCache struct {
	client *redis.Client
	key    string
}

func NewRedisCredentialCache(client *redis.Client) *RedisCredentialCache {
	return &RedisCredentialCache{client: client, key: TokenCacheKey}
}

func (c *RedisCredentialCache) Load(ctx context.Context) (Credential, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, err
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, false, fmt.Errorf("decode cached token: %w", err)
	}
	return cred, true, nil
}

// Store writes the credential with a TTL matching its remaining lifetime.
func (c *RedisCredentialCache) Store(ctx context.Context, cred Credential) error {
	ttl := time.Until(cred.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key, data, ttl).Err()
}

// RedsyncLocker serialises token refreshes across every process sharing the
// Redis instance.
type RedsyncLocker struct {
	rs     *redsync.Redsync
	name   string
	expiry time.Duration
}

func NewRedsyncLocker(rs *redsync.Redsync, expiry time.Duration) *RedsyncLocker {
	if expiry <= 0 {
		expiry = 30 * time.Second
	}
	return &RedsyncLocker{rs: rs, name: RefreshLockName, expiry: expiry}
}

func (l *RedsyncLocker) Lock(ctx context.Context) (func(), error) {
	mutex := l.rs.NewMutex(l.name,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(64),
		redsync.WithRetryDelay(100*time.Millisecond),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}
	return func() {
		_, _ = mutex.UnlockContext(context.Background())
	}, nil
}
