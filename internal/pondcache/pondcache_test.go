package pondcache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-waterwatch/internal/backend"
	"github.com/joeblew999/plat-waterwatch/internal/store"
)

type fakeFetcher struct {
	calls atomic.Int32
	url   string
	fail  bool
	delay time.Duration
}

func (f *fakeFetcher) PondsURL(ctx context.Context) backend.Result[backend.PondsURL] {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail {
		return backend.Fail[backend.PondsURL](backend.FailureTransport, "unreachable")
	}
	return backend.Ok(backend.PondsURL{URL: f.url})
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, kv store.KV, e Entry) {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), Key, string(b)))
}

func stored(t *testing.T, kv store.KV) Entry {
	t.Helper()
	raw, err := kv.Get(context.Background(), Key)
	require.NoError(t, err)
	var e Entry
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	return e
}

func newCache(kv store.KV, f Fetcher) *Cache {
	c := New(kv, f, 0, nil)
	c.Now = func() time.Time { return now }
	return c
}

func TestLoad_Fresh(t *testing.T) {
	kv := store.NewMemory()
	seed(t, kv, Entry{URL: "https://tiles/old", FetchedAt: now.Add(-time.Hour)})
	f := &fakeFetcher{url: "https://tiles/new"}

	e, err := newCache(kv, f).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://tiles/old", e.URL)
	assert.Zero(t, f.calls.Load())
}

func TestLoad_StaleRefreshes(t *testing.T) {
	kv := store.NewMemory()
	seed(t, kv, Entry{URL: "https://tiles/old", FetchedAt: now.Add(-25 * time.Hour)})
	f := &fakeFetcher{url: "https://tiles/new"}

	var notified string
	c := newCache(kv, f)
	c.OnRefresh = func(url string) { notified = url }

	e, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, "https://tiles/new", e.URL)
	assert.Equal(t, "https://tiles/new", notified)

	s := stored(t, kv)
	assert.Equal(t, "https://tiles/new", s.URL)
	assert.True(t, s.FetchedAt.Equal(now))
}

func TestLoad_Missing(t *testing.T) {
	kv := store.NewMemory()
	f := &fakeFetcher{url: "https://tiles/new"}

	e, err := newCache(kv, f).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://tiles/new", e.URL)
	assert.Equal(t, "https://tiles/new", stored(t, kv).URL)
}

func TestLoad_Corrupt(t *testing.T) {
	kv := store.NewMemory()
	require.NoError(t, kv.Set(context.Background(), Key, "not json"))
	f := &fakeFetcher{url: "https://tiles/new"}

	e, err := newCache(kv, f).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://tiles/new", e.URL)
}

func TestLoad_StaleServedOnFailure(t *testing.T) {
	kv := store.NewMemory()
	old := Entry{URL: "https://tiles/old", FetchedAt: now.Add(-48 * time.Hour)}
	seed(t, kv, old)
	f := &fakeFetcher{fail: true}

	e, err := newCache(kv, f).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://tiles/old", e.URL)
	assert.True(t, stored(t, kv).FetchedAt.Equal(old.FetchedAt))
}

func TestLoad_FailureWithoutEntry(t *testing.T) {
	_, err := newCache(store.NewMemory(), &fakeFetcher{fail: true}).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestRefresh_Collapsed(t *testing.T) {
	f := &fakeFetcher{url: "https://tiles/new", delay: 50 * time.Millisecond}
	c := newCache(store.NewMemory(), f)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Refresh(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Less(t, f.calls.Load(), int32(8))
}

func TestSchedule(t *testing.T) {
	f := &fakeFetcher{url: "https://tiles/new"}
	c := newCache(store.NewMemory(), f)

	_, err := c.Schedule("not a schedule")
	assert.Error(t, err)

	sched, err := c.Schedule("@every 1s")
	require.NoError(t, err)
	defer sched.Stop()

	assert.Eventually(t, func() bool { return f.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
