package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache.now = clock.Now
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "key1", []byte("value1"), time.Minute))

		val, err := cache.Get(ctx, "key1")
		require.NoError(t, err)
		assert.Equal(t, "value1", string(val))
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "key1", []byte("value2"), time.Minute))
		val, err := cache.Get(ctx, "key1")
		require.NoError(t, err)
		assert.Equal(t, "value2", string(val))
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, "nonexistent")
		require.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "key2", []byte("value2"), time.Minute))
		require.NoError(t, cache.Delete(ctx, "key2"))

		val, err := cache.Get(ctx, "key2")
		require.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "expiring", []byte("temp"), 10*time.Second))

		val, _ := cache.Get(ctx, "expiring")
		assert.NotNil(t, val, "value before expiration")

		clock.Advance(11 * time.Second)

		val, _ = cache.Get(ctx, "expiring")
		assert.Nil(t, val, "value after expiration")
	})

	t.Run("LRUEviction", func(t *testing.T) {
		small := NewLRUCache(3)
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, small.Set(ctx, k, []byte(k), time.Minute))
		}

		// touching a leaves b as the least recently used
		_, _ = small.Get(ctx, "a")
		require.NoError(t, small.Set(ctx, "d", []byte("d"), time.Minute))

		val, _ := small.Get(ctx, "b")
		assert.Nil(t, val, "b should be evicted")
		val, _ = small.Get(ctx, "a")
		assert.NotNil(t, val, "a should survive")
	})

	t.Run("StatusCache", func(t *testing.T) {
		fraud := 0.12
		view := &domain.StatusView{
			ClaimID:    "claim-001",
			Status:     domain.ClaimUnderReview,
			Amount:     domain.Dollars(8850),
			FraudScore: &fraud,
		}
		require.NoError(t, cache.SetStatus(ctx, "claim-001", view, time.Minute))

		got, err := cache.GetStatus(ctx, "claim-001")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, domain.ClaimUnderReview, got.Status)
		assert.Equal(t, domain.Dollars(8850), got.Amount)
		require.NotNil(t, got.FraudScore)
		assert.Equal(t, fraud, *got.FraudScore)

		miss, err := cache.GetStatus(ctx, "claim-unknown")
		require.NoError(t, err)
		assert.Nil(t, miss)
	})

	t.Run("Lock", func(t *testing.T) {
		token, ok, err := cache.AcquireLock(ctx, "lock:claim:1", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotEmpty(t, token)

		_, ok, err = cache.AcquireLock(ctx, "lock:claim:1", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "second acquire while held")

		// a stale token leaves the holder in place
		require.NoError(t, cache.ReleaseLock(ctx, "lock:claim:1", "not-the-token"))
		_, ok, _ = cache.AcquireLock(ctx, "lock:claim:1", time.Minute)
		assert.False(t, ok, "lock released by wrong token")

		require.NoError(t, cache.ReleaseLock(ctx, "lock:claim:1", token))
		_, ok, _ = cache.AcquireLock(ctx, "lock:claim:1", time.Minute)
		assert.True(t, ok, "acquire after release")
	})

	t.Run("LockExpires", func(t *testing.T) {
		_, ok, _ := cache.AcquireLock(ctx, "lock:claim:2", time.Second)
		require.True(t, ok)

		clock.Advance(2 * time.Second)
		_, ok, _ = cache.AcquireLock(ctx, "lock:claim:2", time.Second)
		assert.True(t, ok, "expired lock taken over")
	})

	t.Run("Stats", func(t *testing.T) {
		stats := NewLRUCache(50)
		require.NoError(t, stats.Set(ctx, "k1", []byte("v1"), time.Minute))
		require.NoError(t, stats.Set(ctx, "k2", []byte("v2"), time.Minute))

		size, capacity := stats.Stats()
		assert.Equal(t, 2, size)
		assert.Equal(t, 50, capacity)
	})

	t.Run("Close", func(t *testing.T) {
		closing := NewLRUCache(10)
		require.NoError(t, closing.Set(ctx, "k", []byte("v"), time.Minute))
		require.NoError(t, closing.Close())

		val, _ := closing.Get(ctx, "k")
		assert.Nil(t, val, "cache cleared after close")
	})
}

func TestNewCache(t *testing.T) {
	cache, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
	require.NoError(t, err)
	defer cache.Close()
	assert.IsType(t, &LRUCache{}, cache)
	assert.NoError(t, cache.Ping(context.Background()))

	_, err = New(domain.CacheConfig{Type: "memcached"})
	assert.Error(t, err)
}
