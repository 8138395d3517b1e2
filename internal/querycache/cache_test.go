package querycache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/crmconsole/internal/observability"
)

func params(kv ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}

func counter(n *int32, value string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		atomic.AddInt32(n, 1)
		return value, nil
	}
}

func TestKey_String(t *testing.T) {
	a := ListKey("complaints", params("status", "open", "page", "1", "limit", "10"))
	b := ListKey("complaints", params("limit", "10", "page", "1", "status", "open"))
	assert.Equal(t, a.String(), b.String(), "parameter order must not matter")
	assert.Equal(t, "complaints/list?limit=10&page=1&status=open", a.String())
	assert.Equal(t, "complaints/detail/c1", DetailKey("complaints", "c1").String())
	assert.Equal(t, "messages/thread/u1", Key{Resource: "messages", Operation: "thread", ID: "u1"}.String())
}

func TestFetch_cachesSuccess(t *testing.T) {
	c := New(time.Minute, 0, nil)
	ctx := context.Background()
	var calls int32
	key := ListKey("leads", params("page", "1"))

	v, err := Fetch(ctx, c, key, 0, counter(&calls, "first"))
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	v, err = Fetch(ctx, c, key, 0, counter(&calls, "second"))
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.EqualValues(t, 1, calls)
}

func TestFetch_distinctTuplesAreDistinctEntries(t *testing.T) {
	c := New(time.Minute, 0, nil)
	ctx := context.Background()
	var calls int32

	_, _ = Fetch(ctx, c, ListKey("complaints", params("page", "1")), 0, counter(&calls, "p1"))
	v, _ := Fetch(ctx, c, ListKey("complaints", params("page", "2")), 0, counter(&calls, "p2"))
	assert.Equal(t, "p2", v)
	assert.EqualValues(t, 2, calls)
	assert.Equal(t, 2, c.Len())
}

func TestFetch_errorsAreNotCached(t *testing.T) {
	c := New(time.Minute, 0, nil)
	ctx := context.Background()
	key := DetailKey("complaints", "c1")
	boom := errors.New("boom")

	_, err := Fetch(ctx, c, key, 0, func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, err := Fetch(ctx, c, key, 0, func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestFetch_expires(t *testing.T) {
	c := New(time.Minute, 0, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	var calls int32
	key := DetailKey("leads", "l1")

	_, _ = Fetch(ctx, c, key, 10*time.Second, counter(&calls, "a"))
	now = now.Add(11 * time.Second)
	_, _ = Fetch(ctx, c, key, 10*time.Second, counter(&calls, "b"))
	assert.EqualValues(t, 2, calls)
}

func TestFetch_singleflight(t *testing.T) {
	c := New(time.Minute, 0, nil)
	var calls int32
	release := make(chan struct{})
	key := ListKey("complaints", nil)

	fn := func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Fetch(context.Background(), c, key, 0, fn)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, 42, r)
	}
}

func TestFetch_callerCancelDoesNotFailJoinedCallers(t *testing.T) {
	c := New(time.Minute, 0, nil)
	key := DetailKey("complaints", "c1")
	started := make(chan struct{})
	release := make(chan struct{})
	var loadErr atomic.Value

	fn := func(ctx context.Context) (int, error) {
		close(started)
		<-release
		loadErr.Store(fmt.Sprint(ctx.Err()))
		return 7, nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Fetch(first, c, key, 0, fn)
		firstErr <- err
	}()
	<-started

	second := make(chan int, 1)
	go func() {
		v, _ := Fetch(context.Background(), c, key, 0, fn)
		second <- v
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-firstErr
	assert.True(t, errors.Is(err, context.Canceled), "the cancelled caller sees its own cancellation")

	close(release)
	assert.Equal(t, 7, <-second)
	assert.Equal(t, "<nil>", loadErr.Load(), "the shared load keeps running")

	v, err := Fetch(context.Background(), c, key, 0, func(context.Context) (int, error) {
		return 0, errors.New("not cached")
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestFetch_typeMismatch(t *testing.T) {
	c := New(time.Minute, 0, nil)
	key := DetailKey("users", "u1")
	_, _ = Fetch(context.Background(), c, key, 0, func(context.Context) (string, error) { return "s", nil })

	_, err := Fetch(context.Background(), c, key, 0, func(context.Context) (int, error) { return 1, nil })
	assert.Error(t, err)
}

func TestInvalidate(t *testing.T) {
	c := New(time.Minute, 0, nil)
	ctx := context.Background()
	var calls int32
	load := func(k Key) { _, _ = Fetch(ctx, c, k, 0, counter(&calls, k.String())) }

	load(ListKey("complaints", params("status", "open")))
	load(ListKey("complaints", params("status", "closed")))
	load(DetailKey("complaints", "c1"))
	load(ListKey("leads", nil))
	load(Key{Resource: "messages", Operation: "thread", ID: "u1"})
	load(Key{Resource: "messages", Operation: "thread", ID: "u12"})

	assert.Equal(t, 3, c.Invalidate("complaints"))
	assert.Equal(t, 3, c.Len())

	assert.Equal(t, 1, c.Invalidate("messages/thread/u1"), "thread tag must not match a longer id")
	assert.Equal(t, 0, c.Invalidate("complaints"))

	c.InvalidateKey(ListKey("leads", nil))
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestInvalidate_duringFetchDropsResult(t *testing.T) {
	c := New(time.Minute, 0, nil)
	key := ListKey("leads", nil)

	_, err := Fetch(context.Background(), c, key, 0, func(context.Context) (string, error) {
		c.Invalidate("leads")
		return "stale", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len(), "result fetched across an invalidation must not be stored")
}

func TestEviction(t *testing.T) {
	c := New(time.Minute, 2, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	var calls int32

	_, _ = Fetch(ctx, c, DetailKey("leads", "a"), 0, counter(&calls, "a"))
	now = now.Add(time.Second)
	_, _ = Fetch(ctx, c, DetailKey("leads", "b"), 0, counter(&calls, "b"))
	now = now.Add(time.Second)
	_, _ = Fetch(ctx, c, DetailKey("leads", "c"), 0, counter(&calls, "c"))

	assert.Equal(t, 2, c.Len())
	_, _ = Fetch(ctx, c, DetailKey("leads", "a"), 0, counter(&calls, "a2"))
	assert.EqualValues(t, 4, calls, "oldest entry should have been evicted")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.InitMetrics(reg)
	c := New(time.Minute, 0, m)
	ctx := context.Background()
	var calls int32
	key := ListKey("complaints", nil)

	_, _ = Fetch(ctx, c, key, 0, counter(&calls, "x"))
	_, _ = Fetch(ctx, c, key, 0, counter(&calls, "x"))
	c.Invalidate("complaints")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryCacheMissesTotal.WithLabelValues("complaints")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryCacheHitsTotal.WithLabelValues("complaints")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryCacheInvalidations.WithLabelValues("complaints")))
}

func TestScope(t *testing.T) {
	c := New(time.Minute, 0, nil)
	ctx := context.Background()
	var calls int32

	a := ListKey("complaints", nil)
	a.Scope = "user-a"
	b := ListKey("complaints", nil)
	b.Scope = "user-b"

	va, _ := Fetch(ctx, c, a, 0, counter(&calls, "for a"))
	vb, _ := Fetch(ctx, c, b, 0, counter(&calls, "for b"))
	assert.Equal(t, "for a", va)
	assert.Equal(t, "for b", vb)
	assert.EqualValues(t, 2, calls)

	assert.Equal(t, 2, c.Invalidate("complaints"), "invalidation reaches every scope")
}
