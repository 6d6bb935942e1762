package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/otcheredev/equipment-console/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type temporaryError struct{ temporary bool }

func (e temporaryError) Error() string { return "api failure" }

func newClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	backend := cache.NewMemoryCache()
	t.Cleanup(func() { backend.Close() })
	opts = append([]Option{WithRetry(1, 0)}, opts...)
	return New(backend, time.Minute, opts...)
}

func TestFetchCachesResult(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	var calls atomic.Int32

	fn := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"切断グループ"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Fetch(ctx, c, "query:groups:t1", fn)
		require.NoError(t, err)
		assert.Equal(t, []string{"切断グループ"}, got)
	}
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, c.Invalidate(ctx, "query:groups:t1"))
	_, err := Fetch(ctx, c, "query:groups:t1", fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchSharesConcurrentReads(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = Fetch(ctx, c, "k", fn)
	}()
	<-started
	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Fetch(ctx, c, "k", fn)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, 42, r)
	}
}

func TestFetchRetriesOnce(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	var calls atomic.Int32

	got, err := Fetch(ctx, c, "flaky", func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("connection reset")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(2), calls.Load())

	calls.Store(0)
	_, err = Fetch(ctx, c, "down", func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "", errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchSkipsRetryForPermanentErrors(t *testing.T) {
	c := newClient(t, WithRetryable(func(err error) bool {
		var te temporaryError
		return errors.As(err, &te) && te.temporary
	}))
	ctx := context.Background()
	var calls atomic.Int32

	_, err := Fetch(ctx, c, "k", func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "", temporaryError{temporary: false}
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	_, err = Fetch(ctx, c, "k", func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "", temporaryError{temporary: true}
	})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchErrorIsNotCached(t *testing.T) {
	c := newClient(t, WithRetry(0, 0))
	ctx := context.Background()

	_, err := Fetch(ctx, c, "k", func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	})
	require.Error(t, err)

	got, err := Fetch(ctx, c, "k", func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}

func TestInvalidateDuringFetchSkipsCaching(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		Fetch(ctx, c, "k", func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
	}()

	<-started
	require.NoError(t, c.Invalidate(ctx, "k"))
	close(release)
	<-done

	got, err := Fetch(ctx, c, "k", func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}

func TestCancelledCallerDoesNotFailSharedRead(t *testing.T) {
	c := newClient(t)

	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "切断グループ", nil
	}

	ctx1, cancel1 := context.WithCancel(context.Background())
	err1 := make(chan error, 1)
	go func() {
		_, err := Fetch(ctx1, c, "k", fn)
		err1 <- err
	}()
	<-started

	type result struct {
		v   string
		err error
	}
	res2 := make(chan result, 1)
	go func() {
		v, err := Fetch(context.Background(), c, "k", fn)
		res2 <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel1()
	assert.ErrorIs(t, <-err1, context.Canceled)

	close(release)
	got := <-res2
	require.NoError(t, got.err)
	assert.Equal(t, "切断グループ", got.v)
}

func TestSharedReadKeepsContextValues(t *testing.T) {
	c := newClient(t)
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "tenant-a")

	got, err := Fetch(ctx, c, "k", func(ctx context.Context) (string, error) {
		v, _ := ctx.Value(ctxKey{}).(string)
		return v, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", got)
}
