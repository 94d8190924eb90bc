// Package chain tries a ranked list of providers in order until one
// returns data. This is the primary→secondary fallback: a failure of
// the credentialed source is recovered locally by the public one.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Gabriel27122003/panorama-investidor/internal/provider"
	"github.com/Gabriel27122003/panorama-investidor/internal/series"
)

type Provider struct {
	name      string
	providers []provider.Provider
	logger    zerolog.Logger
}

// New builds a fallback chain over the given providers, ranked by
// preference. Whether a secondary is present at all is the caller's
// wiring decision: fallback is an explicit configuration switch, not a
// hidden default, because silently switching sources changes the data's
// provenance.
func New(name string, providers ...provider.Provider) *Provider {
	if name == "" {
		// The composite name feeds cache keys, so entries cached under
		// one provider lineup are not reused under another.
		parts := make([]string, 0, len(providers))
		for _, p := range providers {
			parts = append(parts, p.Name())
		}
		name = strings.Join(parts, "+")
		if name == "" {
			name = "chain"
		}
	}
	return &Provider{
		name:      name,
		providers: providers,
		logger:    log.With().Str("component", "chain").Logger(),
	}
}

func (c *Provider) Name() string { return c.name }

// History asks each provider in rank order and returns the first
// successful series. Any failure mode of an earlier provider (network,
// rate limit, invalid symbol, malformed response) moves on to the next.
// When every provider fails, a definitive answer about the request
// itself (invalid symbol, empty range) from the last provider is
// propagated as-is; anything else is reported as unavailability.
func (c *Provider) History(ctx context.Context, symbol string, start, end time.Time) (series.Series, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", provider.ErrUnavailable)
	}

	var errs []error
	for _, p := range c.providers {
		s, err := p.History(ctx, symbol, start, end)
		if err == nil {
			return s, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn().Str("provider", p.Name()).Str("symbol", symbol).Err(err).Msg("provider failed, trying next")
	}

	last := errs[len(errs)-1]
	if errors.Is(last, provider.ErrInvalidSymbol) || errors.Is(last, provider.ErrRangeEmpty) {
		return nil, last
	}
	if errors.Is(last, provider.ErrUnavailable) {
		return nil, errors.Join(errs...)
	}
	return nil, fmt.Errorf("%w: %w", provider.ErrUnavailable, errors.Join(errs...))
}
