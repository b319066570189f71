package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_CachesUntilTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var calls int32

	l := NewLoader[string]("test", time.Minute, func(_ context.Context, key string) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		return key + "-" + string(rune('0'+n)), nil
	})
	l.SetClock(func() time.Time { return now })

	v, err := l.Get(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1-1", v)

	v, err = l.Get(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1-1", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	now = now.Add(time.Minute)
	v, err = l.Get(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1-2", v)
}

func TestLoader_ConcurrentMissesShareOneLoad(t *testing.T) {
	var calls int32
	release := make(chan struct{})

	l := NewLoader[int]("test", time.Minute, func(_ context.Context, _ string) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	})

	const n = 20
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := l.Get(context.Background(), "g1")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Give the goroutines time to pile up on the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestLoader_ErrorsAreNotCached(t *testing.T) {
	fail := true
	l := NewLoader[string]("test", time.Minute, func(_ context.Context, _ string) (string, error) {
		if fail {
			return "", errors.New("db down")
		}
		return "ok", nil
	})

	_, err := l.Get(context.Background(), "k")
	require.Error(t, err)
	assert.Equal(t, 0, l.Len())

	fail = false
	v, err := l.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestLoader_Invalidate(t *testing.T) {
	var calls int32
	l := NewLoader[int32]("test", time.Hour, func(_ context.Context, _ string) (int32, error) {
		return atomic.AddInt32(&calls, 1), nil
	})

	ctx := context.Background()
	_, _ = l.Get(ctx, "a")
	_, _ = l.Get(ctx, "b")
	assert.Equal(t, 2, l.Len())

	l.Invalidate("a")
	v, err := l.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int32(3), v)

	l.InvalidateAll()
	assert.Equal(t, 0, l.Len())
	v, err = l.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int32(4), v)
}
