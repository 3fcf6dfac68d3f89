package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func TestLimiter_FixedWindow(t *testing.T) {
	t.Parallel()

	clock := newClock()
	l := New(NewMemoryStore(clock.Now), map[Bucket]Rule{
		BucketLogin: {Limit: 5, Window: 15 * time.Minute},
	}, WithClock(clock.Now))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		d, err := l.Allow(ctx, "1.2.3.4", BucketLogin)
		require.NoError(t, err)
		require.True(t, d.Allowed, "attempt %d", i+1)
	}

	clock.Advance(time.Minute)

	d, err := l.Allow(ctx, "1.2.3.4", BucketLogin)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 14*time.Minute, d.RetryAfter)

	// Другой клиент не затронут.
	d, err = l.Allow(ctx, "5.6.7.8", BucketLogin)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// Новое окно.
	clock.Advance(14 * time.Minute)
	d, err = l.Allow(ctx, "1.2.3.4", BucketLogin)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestLimiter_BucketsIndependent(t *testing.T) {
	t.Parallel()

	clock := newClock()
	l := New(NewMemoryStore(clock.Now), map[Bucket]Rule{
		BucketRegister: {Limit: 1, Window: time.Hour},
		BucketReset:    {Limit: 1, Window: time.Hour},
	}, WithClock(clock.Now))

	ctx := context.Background()

	d, _ := l.Allow(ctx, "ip", BucketRegister)
	require.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "ip", BucketRegister)
	require.False(t, d.Allowed)

	d, _ = l.Allow(ctx, "ip", BucketReset)
	require.True(t, d.Allowed)

	// Бакет без правила не ограничивается.
	for i := 0; i < 10; i++ {
		d, _ = l.Allow(ctx, "ip", BucketLogin)
		require.True(t, d.Allowed)
	}
}

func TestLimiter_FailOpen(t *testing.T) {
	t.Parallel()

	l := New(failingStore{}, map[Bucket]Rule{BucketLogin: {Limit: 1, Window: time.Minute}})

	d, err := l.Allow(context.Background(), "ip", BucketLogin)
	require.Error(t, err)
	require.True(t, d.Allowed)
}

func TestLimiter_ConcurrentNeverExceedsLimit(t *testing.T) {
	t.Parallel()

	clock := newClock()
	l := New(NewMemoryStore(clock.Now), map[Bucket]Rule{
		BucketLogin: {Limit: 5, Window: time.Hour},
	}, WithClock(clock.Now))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(context.Background(), "ip", BucketLogin)
			if err == nil && d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, allowed)
}

func TestMemoryStore_Sweep(t *testing.T) {
	t.Parallel()

	clock := newClock()
	s := NewMemoryStore(clock.Now)
	ctx := context.Background()

	_, err := s.Incr(ctx, "a", time.Minute)
	require.NoError(t, err)
	_, err = s.Incr(ctx, "b", time.Hour)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	clock.Advance(2 * time.Minute)
	require.Equal(t, 1, s.Sweep())
	require.Equal(t, 1, s.Len())

	n, err := s.Incr(ctx, "a", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := newClock()
	l := New(NewRedisStore(client), map[Bucket]Rule{
		BucketReset: {Limit: 3, Window: time.Hour},
	}, WithPrefix("auth:rl:"), WithClock(clock.Now))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "10.0.0.1", BucketReset)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	d, err := l.Allow(ctx, "10.0.0.1", BucketReset)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, time.Hour, d.RetryAfter)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.True(t, strings.HasPrefix(keys[0], "auth:rl:reset:10.0.0.1:"))
	require.Equal(t, time.Hour, mr.TTL(keys[0]))

	mr.FastForward(time.Hour)
	require.Empty(t, mr.Keys())
}

func TestRedisStore_RestoresMissingTTL(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// Ключ без TTL, оставшийся после сбоя между командами.
	require.NoError(t, mr.Set("k", "4"))
	require.Zero(t, mr.TTL("k"))

	store := NewRedisStore(client)
	n, err := store.Incr(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 5, n)
	require.Equal(t, time.Minute, mr.TTL("k"))

	// Повторный инкремент не продлевает окно.
	mr.FastForward(30 * time.Second)
	_, err = store.Incr(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, mr.TTL("k"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)
	require.NoError(t, store.Ping(context.Background()))

	mr.Close()

	l := New(store, map[Bucket]Rule{BucketLogin: {Limit: 1, Window: time.Minute}})
	d, err := l.Allow(context.Background(), "ip", BucketLogin)
	require.Error(t, err)
	require.True(t, d.Allowed)
}

func TestNewRedisStoreFromURL(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	store, err := NewRedisStoreFromURL(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = NewRedisStoreFromURL(context.Background(), "::bad::")
	require.Error(t, err)
}
