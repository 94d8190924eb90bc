package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Gabriel27122003/panorama-investidor/internal/provider"
	"github.com/Gabriel27122003/panorama-investidor/internal/series"
)

// DefaultTTL matches the original dashboard's memoization window.
const DefaultTTL = 900 * time.Second

// key identifies one memoized fetch. Dates are at day granularity and
// part of the identity together with the wrapped provider's name.
type key struct {
	provider string
	symbol   string
	start    time.Time
	end      time.Time
}

// entry stores a cached series with its fetch time.
type entry struct {
	fetchedAt time.Time
	series    series.Series
}

// Provider memoizes History results of the wrapped provider for a TTL.
// Entries are created on first fetch, considered stale after the TTL
// and overwritten on refresh. Failures are never cached. Concurrent
// requests for the same key are collapsed into one upstream call.
type Provider struct {
	P        provider.Provider
	TTL      time.Duration
	MaxItems int

	// nowFunc lets tests simulate clock advancement.
	nowFunc func() time.Time

	mu     sync.RWMutex
	items  map[key]entry
	flight singleflight.Group
}

func (c *Provider) Name() string { return c.P.Name() }

func (c *Provider) now() time.Time {
	if c.nowFunc != nil {
		return c.nowFunc()
	}
	return time.Now()
}

// History returns the cached series when a fresh entry exists, and
// otherwise fetches through the wrapped provider and stores the result.
func (c *Provider) History(ctx context.Context, symbol string, start, end time.Time) (series.Series, error) {
	if c.P == nil || c.TTL <= 0 {
		return c.P.History(ctx, symbol, start, end)
	}

	symbol, err := provider.ValidateRequest(symbol, start, end)
	if err != nil {
		return nil, err
	}
	k := key{provider: c.P.Name(), symbol: symbol, start: series.Day(start), end: series.Day(end)}

	c.mu.RLock()
	e, ok := c.items[k]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.fetchedAt) < c.TTL {
		return e.series, nil
	}

	// Collapse concurrent misses for the same key into one fetch.
	v, err, _ := c.flight.Do(flightKey(k), func() (any, error) {
		// A racing call may have refreshed the entry while we waited.
		c.mu.RLock()
		e, ok := c.items[k]
		c.mu.RUnlock()
		now := c.now()
		if ok && now.Sub(e.fetchedAt) < c.TTL {
			return e.series, nil
		}

		s, err := c.P.History(ctx, symbol, start, end)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.items == nil {
			c.items = make(map[key]entry)
		}
		c.items[k] = entry{fetchedAt: now, series: s}
		c.evictLocked()
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(series.Series), nil
}

// evictLocked caps the table best-effort: expired entries first, then
// arbitrary ones. Caller holds c.mu.
func (c *Provider) evictLocked() {
	if c.MaxItems <= 0 || len(c.items) <= c.MaxItems {
		return
	}
	now := c.now()
	for k, e := range c.items {
		if now.Sub(e.fetchedAt) >= c.TTL {
			delete(c.items, k)
		}
		if len(c.items) <= c.MaxItems {
			return
		}
	}
	for k := range c.items {
		if len(c.items) <= c.MaxItems {
			return
		}
		delete(c.items, k)
	}
}

func flightKey(k key) string {
	const layout = "2006-01-02"
	return k.provider + "|" + k.symbol + "|" + k.start.Format(layout) + "|" + k.end.Format(layout)
}
