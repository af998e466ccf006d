package mpesa

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	tollredis "toll-payment/internal/redis"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisForTest(t *testing.T) *tollredis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	client, err := tollredis.NewClient(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisCredentialCache(t *testing.T) {
	rdb := redisForTest(t)
	ctx := context.Background()
	cache := NewRedisCredentialCache(rdb.Client)
	cache.key = "test:" + uuid.NewString()
	t.Cleanup(func() { rdb.Client.Del(context.Background(), cache.key) })

	_, found, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	cred := Credential{Token: "shared", ExpiresAt: time.Now().Add(time.Minute).Truncate(time.Second)}
	require.NoError(t, cache.Store(ctx, cred))

	got, found, err := cache.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "shared", got.Token)
	assert.True(t, cred.ExpiresAt.Equal(got.ExpiresAt))

	ttl, err := rdb.Client.TTL(ctx, cache.key).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Minute)
	assert.Greater(t, ttl, 50*time.Second)
}

func TestRedsyncLockerAcrossManagers(t *testing.T) {
	rdb := redisForTest(t)
	cache := NewRedisCredentialCache(rdb.Client)
	cache.key = "test:" + uuid.NewString()
	t.Cleanup(func() { rdb.Client.Del(context.Background(), cache.key) })
	locker := NewRedsyncLocker(rdb.Lock, 5*time.Second)
	locker.name = cache.key + ":lock"

	source := &fakeSource{clock: &fakeClock{now: time.Now()}, lifetime: time.Hour, delay: 50 * time.Millisecond}
	var wg sync.WaitGroup
	var failures atomic.Int64
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := NewCredentialManager(source, WithCache(cache), WithLocker(locker))
			if _, err := m.EnsureFresh(context.Background()); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, int64(1), source.calls.Load(), "one network refresh across all managers")
}
