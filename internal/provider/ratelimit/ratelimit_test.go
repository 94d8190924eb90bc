package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gabriel27122003/panorama-investidor/internal/series"
)

type stubProvider struct {
	calls int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) History(_ context.Context, _ string, start, _ time.Time) (series.Series, error) {
	s.calls++
	return series.Series{{Date: start, Close: 10}}, nil
}

func TestHistory_BurstPassesThrough(t *testing.T) {
	inner := &stubProvider{}
	p := PerMinute(inner, 5, 2)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		if _, err := p.History(context.Background(), "PETR4.SA", start, start.AddDate(0, 0, 7)); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if inner.calls != 2 {
		t.Fatalf("want 2 upstream calls, got %d", inner.calls)
	}
}

func TestHistory_WaitHonorsContext(t *testing.T) {
	inner := &stubProvider{}
	p := PerMinute(inner, 1, 1)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := p.History(context.Background(), "PETR4.SA", start, start.AddDate(0, 0, 7)); err != nil {
		t.Fatalf("first call: %v", err)
	}

	// The bucket is drained; the second call would block for ~a minute,
	// so an already-expired context must abort it without reaching the
	// upstream provider.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.History(ctx, "PETR4.SA", start, start.AddDate(0, 0, 7)); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("cancelled wait must not reach upstream, got %d calls", inner.calls)
	}
}

func TestPerMinute_DefaultsBurst(t *testing.T) {
	p := PerMinute(&stubProvider{}, 5, 0)
	if p.Limiter.Burst() != 1 {
		t.Fatalf("want burst 1, got %d", p.Limiter.Burst())
	}
}
