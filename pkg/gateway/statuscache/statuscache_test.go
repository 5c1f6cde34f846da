package statuscache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.emberproxy.dev/ember/pkg/gateway/statuscache"
)

func TestGetCachesFreshResponse(t *testing.T) {
	c := statuscache.New(time.Minute, 10)
	var calls int32

	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "resp", nil
	}

	key := statuscache.Key("10.0.0.1:25565", 760)
	v1, err := c.Get(context.Background(), key, 0, fetch)
	require.NoError(t, err)
	require.Equal(t, "resp", v1)

	v2, err := c.Get(context.Background(), key, 0, fetch)
	require.NoError(t, err)
	require.Equal(t, "resp", v2)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetExpiresAfterTTL(t *testing.T) {
	c := statuscache.New(20*time.Millisecond, 10)
	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "resp", nil
	}
	key := statuscache.Key("10.0.0.1:25565", 760)

	_, err := c.Get(context.Background(), key, 0, fetch)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = c.Get(context.Background(), key, 0, fetch)
	require.NoError(t, err)

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGetSingleFlightCollapsesConcurrentMisses(t *testing.T) {
	c := statuscache.New(time.Minute, 10)
	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(30 * time.Millisecond)
		return "resp", nil
	}
	key := statuscache.Key("10.0.0.1:25565", 760)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), key, 0, fetch)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestMaxSizeEvictsOldest(t *testing.T) {
	c := statuscache.New(time.Minute, 2)
	fetch := func(resp string) statuscache.Fetcher {
		return func(ctx context.Context) (string, error) { return resp, nil }
	}

	_, err := c.Get(context.Background(), "a", 0, fetch("a"))
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "b", 0, fetch("b"))
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "c", 0, fetch("c"))
	require.NoError(t, err)

	require.Equal(t, 2, c.Len())
}
