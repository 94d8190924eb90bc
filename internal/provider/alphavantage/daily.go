package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Gabriel27122003/panorama-investidor/internal/provider"
	"github.com/Gabriel27122003/panorama-investidor/internal/series"
)

// fullOutputThresholdDays is the window size above which the compact
// response (latest ~100 rows) is no longer enough and the full history
// must be requested.
const fullOutputThresholdDays = 100

// apiResponse is the TIME_SERIES_DAILY_ADJUSTED envelope. Alpha Vantage
// signals errors in-band with a 200 status: "Error Message" for unknown
// symbols, "Note"/"Information" for rate limiting.
type apiResponse struct {
	ErrorMessage string                       `json:"Error Message"`
	Note         string                       `json:"Note"`
	Information  string                       `json:"Information"`
	Series       map[string]map[string]string `json:"Time Series (Daily)"`
}

// Daily retrieves the raw adjusted daily series for a symbol.
func (c *Client) Daily(ctx context.Context, symbol string, full bool, opts ...ClientOption) ([]series.Observation, error) {
	override := &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      c.query,
	}
	for _, opt := range opts {
		opt(override)
	}

	query := maps.Clone(override.query)
	query.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	query.Set("symbol", symbol)
	if full {
		query.Set("outputsize", "full")
	} else {
		query.Set("outputsize", "compact")
	}

	url := fmt.Sprintf("%s/query?%s", override.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: alphavantage: %w", provider.ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return nil, fmt.Errorf("%w: alphavantage: status %d: %s", provider.ErrUnavailable, res.StatusCode, string(body))
	}

	var api apiResponse
	if err := json.NewDecoder(res.Body).Decode(&api); err != nil {
		return nil, fmt.Errorf("%w: alphavantage: decode: %w", provider.ErrUnavailable, err)
	}
	if api.ErrorMessage != "" {
		return nil, fmt.Errorf("%w: alphavantage: %s", provider.ErrInvalidSymbol, api.ErrorMessage)
	}
	if api.Note != "" || api.Information != "" {
		// Free-tier rate limit responses carry a Note/Information field
		// and no data.
		return nil, fmt.Errorf("%w: alphavantage: rate limited", provider.ErrUnavailable)
	}
	if len(api.Series) == 0 {
		return nil, fmt.Errorf("%w: alphavantage: empty time series", provider.ErrUnavailable)
	}

	obs := make([]series.Observation, 0, len(api.Series))
	for dateStr, values := range api.Series {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		px, err := strconv.ParseFloat(values["5. adjusted close"], 64)
		if err != nil {
			continue
		}
		obs = append(obs, series.Observation{Date: date, Close: px})
	}
	return obs, nil
}

// Provider adapts the Client to the provider.Provider interface.
type Provider struct {
	client *Client
	logger zerolog.Logger
}

func NewProvider(client *Client) *Provider {
	return &Provider{
		client: client,
		logger: log.With().Str("component", "alphavantage").Logger(),
	}
}

func (p *Provider) Name() string { return "alphavantage" }

// History fetches, normalizes and clips the daily series. The compact
// output is used when the requested window fits in the latest ~100 rows.
func (p *Provider) History(ctx context.Context, symbol string, start, end time.Time) (series.Series, error) {
	symbol, err := provider.ValidateRequest(symbol, start, end)
	if err != nil {
		return nil, err
	}

	if end.IsZero() {
		end = time.Now()
	}
	full := start.IsZero() || end.Sub(start) > fullOutputThresholdDays*24*time.Hour
	obs, err := p.client.Daily(ctx, symbol, full)
	if err != nil {
		return nil, err
	}

	s := series.Normalize(obs).Clip(start, end)
	p.logger.Debug().Str("symbol", symbol).Int("rows", len(s)).Msg("fetched daily series")
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: alphavantage: %s", provider.ErrRangeEmpty, symbol)
	}
	return s, nil
}
