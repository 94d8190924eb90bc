// Package yahoo implements the uncredentialed fallback data source on
// top of the Yahoo Finance v8 chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Gabriel27122003/panorama-investidor/internal/httpx"
	"github.com/Gabriel27122003/panorama-investidor/internal/provider"
	"github.com/Gabriel27122003/panorama-investidor/internal/series"
)

type Config struct {
	Name     string
	Endpoint string
}

type Provider struct {
	cfg    Config
	client *httpx.Client
	logger zerolog.Logger
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "yahoo"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://query1.finance.yahoo.com/v8/finance/chart"
	}
	return &Provider{cfg: cfg, client: hc, logger: log.With().Str("component", "yahoo").Logger()}
}

func (p *Provider) Name() string { return p.cfg.Name }

// chartResponse is the subset of the v8 chart payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (p *Provider) History(ctx context.Context, symbol string, start, end time.Time) (series.Series, error) {
	symbol, err := provider.ValidateRequest(symbol, start, end)
	if err != nil {
		return nil, err
	}

	if !start.IsZero() && end.IsZero() {
		end = time.Now()
	}
	q := url.Values{}
	q.Set("interval", "1d")
	if start.IsZero() {
		q.Set("range", "max")
	} else {
		q.Set("period1", fmt.Sprintf("%d", series.Day(start).Unix()))
		// period2 is exclusive; push it past the end day.
		q.Set("period2", fmt.Sprintf("%d", series.Day(end).AddDate(0, 0, 1).Unix()))
	}
	u := fmt.Sprintf("%s/%s?%s", p.cfg.Endpoint, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	// The chart endpoint rejects default Go user agents.
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo: %w", provider.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo: read body: %w", provider.ErrUnavailable, err)
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("%w: yahoo: decode: %w", provider.ErrUnavailable, err)
	}
	if apiErr := chart.Chart.Error; apiErr != nil {
		if strings.Contains(strings.ToLower(apiErr.Code), "not found") {
			return nil, fmt.Errorf("%w: yahoo: %s", provider.ErrInvalidSymbol, apiErr.Description)
		}
		return nil, fmt.Errorf("%w: yahoo: %s: %s", provider.ErrUnavailable, apiErr.Code, apiErr.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: yahoo: status %d", provider.ErrUnavailable, resp.StatusCode)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: yahoo: no data returned", provider.ErrUnavailable)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	obs := make([]series.Observation, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue // null bars: holidays, halted sessions
		}
		obs = append(obs, series.Observation{Date: time.Unix(ts, 0), Close: *quote.Close[i]})
	}

	s := series.Normalize(obs).Clip(start, end)
	p.logger.Debug().Str("symbol", symbol).Int("rows", len(s)).Msg("fetched daily series")
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: yahoo: %s", provider.ErrRangeEmpty, symbol)
	}
	return s, nil
}
