package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/Gabriel27122003/panorama-investidor/internal/provider"
	"github.com/Gabriel27122003/panorama-investidor/internal/series"
)

// Provider wraps a provider and gates outbound calls with a token
// bucket. Free market-data tiers are tight (Alpha Vantage allows 5
// requests per minute), so staying under the limit locally beats
// burning a call on a rate-limit error. Waiting honors ctx.
type Provider struct {
	P       provider.Provider
	Limiter *rate.Limiter
}

// PerMinute builds a limiter-wrapped provider from a requests/minute
// budget with the given burst.
func PerMinute(p provider.Provider, rpm int, burst int) *Provider {
	if burst <= 0 {
		burst = 1
	}
	return &Provider{P: p, Limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)}
}

func (r *Provider) Name() string { return r.P.Name() }

func (r *Provider) History(ctx context.Context, symbol string, start, end time.Time) (series.Series, error) {
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return r.P.History(ctx, symbol, start, end)
}
