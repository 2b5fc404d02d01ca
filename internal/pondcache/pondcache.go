// Package pondcache keeps the ponds overlay tile URL in a key-value store
// and refreshes it from the data service once it is a day old.
package pondcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/joeblew999/plat-waterwatch/internal/backend"
	"github.com/joeblew999/plat-waterwatch/internal/metrics"
	"github.com/joeblew999/plat-waterwatch/internal/store"
)

const (
	Key        = "ponds_url"
	DefaultTTL = 24 * time.Hour
)

// Fetcher asks the data service for the current ponds URL.
type Fetcher interface {
	PondsURL(ctx context.Context) backend.Result[backend.PondsURL]
}

// Entry is the cached value.
type Entry struct {
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Cache serves the ponds URL.
type Cache struct {
	kv      store.KV
	fetcher Fetcher
	ttl     time.Duration
	logger  *zap.Logger
	group   singleflight.Group

	// Now is the clock; tests replace it.
	Now func() time.Time
	// OnRefresh is called with every newly fetched URL.
	OnRefresh func(url string)
}

// New creates a cache. A zero ttl means DefaultTTL.
func New(kv store.KV, f Fetcher, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{kv: kv, fetcher: f, ttl: ttl, logger: logger, Now: time.Now}
}

// Load returns the cached entry when it is fresh and refreshes it otherwise.
// If the refresh fails but a stale entry exists, the stale entry is returned.
func (c *Cache) Load(ctx context.Context) (Entry, error) {
	cached, err := c.read(ctx)
	if err == nil && c.Now().Sub(cached.FetchedAt) < c.ttl {
		return cached, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		c.logger.Warn("ignoring unreadable ponds url entry", zap.Error(err))
	}

	fresh, rerr := c.Refresh(ctx)
	if rerr != nil {
		if err == nil {
			c.logger.Warn("serving stale ponds url",
				zap.Time("fetched_at", cached.FetchedAt),
				zap.Error(rerr))
			return cached, nil
		}
		return Entry{}, rerr
	}
	return fresh, nil
}

// Refresh fetches a new URL and overwrites the entry. Concurrent refreshes
// share one request.
func (c *Cache) Refresh(ctx context.Context) (Entry, error) {
	v, err, _ := c.group.Do(Key, func() (any, error) {
		res := c.fetcher.PondsURL(ctx)
		if !res.OK() {
			metrics.PondsURLRefreshTotal.WithLabelValues("error").Inc()
			return Entry{}, fmt.Errorf("refreshing ponds url: %w", res.Err)
		}
		e := Entry{URL: res.Value.URL, FetchedAt: c.Now().UTC()}
		b, err := json.Marshal(e)
		if err != nil {
			return Entry{}, err
		}
		if err := c.kv.Set(ctx, Key, string(b)); err != nil {
			metrics.PondsURLRefreshTotal.WithLabelValues("error").Inc()
			return Entry{}, fmt.Errorf("storing ponds url: %w", err)
		}
		metrics.PondsURLRefreshTotal.WithLabelValues("ok").Inc()
		c.logger.Info("ponds url refreshed", zap.String("url", e.URL))
		if c.OnRefresh != nil {
			c.OnRefresh(e.URL)
		}
		return e, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}

func (c *Cache) read(ctx context.Context) (Entry, error) {
	raw, err := c.kv.Get(ctx, Key)
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, fmt.Errorf("decoding ponds url entry: %w", err)
	}
	if e.URL == "" {
		return Entry{}, errors.New("ponds url entry has no url")
	}
	return e, nil
}
