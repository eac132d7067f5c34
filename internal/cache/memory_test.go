package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryCache(t *testing.T) (*MemoryCache, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	c := NewMemoryCache(time.Minute, mock)
	t.Cleanup(func() { _ = c.Close() })
	return c, mock
}

func TestMemoryCache_Expiry(t *testing.T) {
	c, mock := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 30*time.Second))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	mock.Add(30 * time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_SweepRemovesExpired(t *testing.T) {
	c, mock := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, c.Set(ctx, "long", []byte("b"), time.Hour))

	mock.Add(time.Minute)
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestMemoryCache_GetOrSet(t *testing.T) {
	c, _ := newTestMemoryCache(t)
	ctx := context.Background()
	calls := 0
	load := func() ([]byte, error) {
		calls++
		return []byte("loaded"), nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrSet(ctx, "k", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, []byte("loaded"), v)
	}
	assert.Equal(t, 1, calls)
}

func TestMemoryCache_GetOrSetErrorNotCached(t *testing.T) {
	c, _ := newTestMemoryCache(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := c.GetOrSet(ctx, "k", time.Minute, func() ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_GetOrSetCoalesces(t *testing.T) {
	c, _ := newTestMemoryCache(t)
	ctx := context.Background()
	release := make(chan struct{})
	var calls atomic.Int32

	load := func() ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("v"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrSet(ctx, "k", time.Minute, load)
			assert.NoError(t, err)
			assert.Equal(t, []byte("v"), v)
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestMemoryCache_Clear(t *testing.T) {
	c, _ := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, c.Delete(ctx, "a"))
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
}
