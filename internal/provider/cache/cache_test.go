package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gabriel27122003/panorama-investidor/internal/provider"
	"github.com/Gabriel27122003/panorama-investidor/internal/series"
)

type countingProvider struct {
	calls atomic.Int64
	err   error
}

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) History(_ context.Context, symbol string, start, end time.Time) (series.Series, error) {
	n := c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	// Payload varies per call so a stale entry is distinguishable.
	return series.Normalize([]series.Observation{
		{Date: start, Close: 100},
		{Date: start.AddDate(0, 0, 1), Close: 100 + float64(n)},
	}), nil
}

func window() (time.Time, time.Time) {
	start := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 30)
}

func TestHistory_SecondCallWithinTTLHitsCache(t *testing.T) {
	inner := &countingProvider{}
	clock := time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC)
	c := &Provider{P: inner, TTL: DefaultTTL, nowFunc: func() time.Time { return clock }}

	start, end := window()
	first, err := c.History(context.Background(), "PETR4.SA", start, end)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	clock = clock.Add(899 * time.Second)
	second, err := c.History(context.Background(), "PETR4.SA", start, end)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if got := inner.calls.Load(); got != 1 {
		t.Fatalf("want exactly 1 upstream call, got %d", got)
	}
	if len(first) != len(second) || first[1].Close != second[1].Close {
		t.Fatalf("cached series differs: %+v vs %+v", first, second)
	}
}

func TestHistory_ExpiredEntryTriggersExactlyOneRefetch(t *testing.T) {
	inner := &countingProvider{}
	clock := time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC)
	c := &Provider{P: inner, TTL: DefaultTTL, nowFunc: func() time.Time { return clock }}

	start, end := window()
	if _, err := c.History(context.Background(), "PETR4.SA", start, end); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	clock = clock.Add(901 * time.Second)
	refreshed, err := c.History(context.Background(), "PETR4.SA", start, end)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if got := inner.calls.Load(); got != 2 {
		t.Fatalf("want 2 upstream calls after expiry, got %d", got)
	}
	if refreshed[1].Close != 102 {
		t.Fatalf("expected refreshed payload, got %+v", refreshed)
	}
}

func TestHistory_DistinctKeysDoNotShareEntries(t *testing.T) {
	inner := &countingProvider{}
	c := &Provider{P: inner, TTL: DefaultTTL}

	start, end := window()
	if _, err := c.History(context.Background(), "PETR4.SA", start, end); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := c.History(context.Background(), "VALE3.SA", start, end); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := c.History(context.Background(), "PETR4.SA", start, end.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := inner.calls.Load(); got != 3 {
		t.Fatalf("want 3 upstream calls for 3 keys, got %d", got)
	}
}

func TestHistory_FailuresAreNotCached(t *testing.T) {
	inner := &countingProvider{err: provider.ErrUnavailable}
	c := &Provider{P: inner, TTL: DefaultTTL}

	start, end := window()
	for i := 0; i < 2; i++ {
		if _, err := c.History(context.Background(), "PETR4.SA", start, end); !errors.Is(err, provider.ErrUnavailable) {
			t.Fatalf("want ErrUnavailable, got %v", err)
		}
	}
	if got := inner.calls.Load(); got != 2 {
		t.Fatalf("failed fetches must reach upstream every time, got %d calls", got)
	}

	// After the upstream recovers the next call succeeds and is cached.
	inner.err = nil
	if _, err := c.History(context.Background(), "PETR4.SA", start, end); err != nil {
		t.Fatalf("recovered fetch: %v", err)
	}
	if _, err := c.History(context.Background(), "PETR4.SA", start, end); err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if got := inner.calls.Load(); got != 3 {
		t.Fatalf("want 3 upstream calls total, got %d", got)
	}
}

func TestHistory_ConcurrentMissesCollapseToOneFetch(t *testing.T) {
	release := make(chan struct{})
	inner := &blockingProvider{release: release}
	c := &Provider{P: inner, TTL: DefaultTTL}

	start, end := window()
	const goroutines = 8
	done := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			_, err := c.History(context.Background(), "PETR4.SA", start, end)
			done <- err
		}()
	}

	// Let the waiters pile up on the in-flight fetch, then release it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	for i := 0; i < goroutines; i++ {
		if err := <-done; err != nil {
			t.Fatalf("goroutine %d: %v", i, err)
		}
	}
	if got := inner.calls.Load(); got != 1 {
		t.Fatalf("concurrent misses must share one upstream call, got %d", got)
	}
}

type blockingProvider struct {
	calls   atomic.Int64
	release chan struct{}
}

func (b *blockingProvider) Name() string { return "blocking" }

func (b *blockingProvider) History(_ context.Context, _ string, start, _ time.Time) (series.Series, error) {
	b.calls.Add(1)
	<-b.release
	return series.Normalize([]series.Observation{
		{Date: start, Close: 100},
		{Date: start.AddDate(0, 0, 1), Close: 101},
	}), nil
}

func TestHistory_MaxItemsEvicts(t *testing.T) {
	inner := &countingProvider{}
	c := &Provider{P: inner, TTL: DefaultTTL, MaxItems: 2}

	start, end := window()
	for _, sym := range []string{"A", "B", "C", "D"} {
		if _, err := c.History(context.Background(), sym, start, end); err != nil {
			t.Fatalf("fetch %s: %v", sym, err)
		}
	}
	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	if n > 2 {
		t.Fatalf("cache exceeded MaxItems: %d", n)
	}
}
