package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Gabriel27122003/panorama-investidor/internal/config"
	"github.com/Gabriel27122003/panorama-investidor/internal/httpx"
	"github.com/Gabriel27122003/panorama-investidor/internal/metrics"
	"github.com/Gabriel27122003/panorama-investidor/internal/provider"
	"github.com/Gabriel27122003/panorama-investidor/internal/provider/alphavantage"
	"github.com/Gabriel27122003/panorama-investidor/internal/provider/chain"
	"github.com/Gabriel27122003/panorama-investidor/internal/provider/ratelimit"
	"github.com/Gabriel27122003/panorama-investidor/internal/provider/yahoo"
	"github.com/Gabriel27122003/panorama-investidor/internal/series"
)

type output struct {
	Symbol       string               `json:"symbol"`
	Provider     string               `json:"provider"`
	Observations []series.Observation `json:"observations"`
	Metrics      metrics.Bundle       `json:"metrics"`
}

func main() {
	var symbol string
	var period string
	var startStr, endStr string
	var configPath string
	var timeout int

	flag.StringVar(&symbol, "symbol", getenv("SYMBOL", "PETR4.SA"), "ticker symbol")
	flag.StringVar(&period, "period", "1y", "lookback period: 1m, 6m, 1y, max (ignored when -start is set)")
	flag.StringVar(&startStr, "start", "", "start date YYYY-MM-DD")
	flag.StringVar(&endStr, "end", "", "end date YYYY-MM-DD (defaults to today)")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.IntVar(&timeout, "timeout", 0, "request timeout seconds (overrides config)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if timeout > 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}

	now := time.Now()
	start, end, err := resolveWindow(period, startStr, endStr, now)
	if err != nil {
		log.Fatal().Err(err).Msg("window")
	}

	p, err := buildProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("providers")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	s, err := p.History(ctx, symbol, start, end)
	if err != nil {
		log.Fatal().Err(err).Str("symbol", symbol).Msg("fetch")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(output{
		Symbol:       symbol,
		Provider:     p.Name(),
		Observations: s,
		Metrics:      metrics.Compute(s),
	})
}

func resolveWindow(period, startStr, endStr string, now time.Time) (time.Time, time.Time, error) {
	if startStr == "" && endStr == "" {
		return series.PeriodRange(period, now)
	}
	var start, end time.Time
	var err error
	if startStr != "" {
		if start, err = time.Parse("2006-01-02", startStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	end = series.Day(now)
	if endStr != "" {
		if end, err = time.Parse("2006-01-02", endStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}

// buildProvider mirrors the server wiring minus the response cache: a
// one-shot invocation has nothing to reuse between calls.
func buildProvider(cfg config.Config) (provider.Provider, error) {
	httpClient := httpx.NewRetry(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	var ranked []provider.Provider
	if cfg.AlphaVantage.Enabled && cfg.AlphaVantage.APIKey != "" {
		avClient, err := alphavantage.NewClient(
			cfg.AlphaVantage.APIKey,
			alphavantage.WithBaseURL(cfg.AlphaVantage.Endpoint),
			alphavantage.WithHTTPClient(httpClient.HTTP),
		)
		if err != nil {
			return nil, err
		}
		var av provider.Provider = alphavantage.NewProvider(avClient)
		if cfg.AlphaVantage.MaxRequestsPerMinute > 0 {
			av = ratelimit.PerMinute(av, cfg.AlphaVantage.MaxRequestsPerMinute, cfg.AlphaVantage.Burst)
		}
		ranked = append(ranked, av)
	}
	if cfg.Yahoo.Enabled && (len(ranked) == 0 || cfg.FallbackEnabled) {
		ranked = append(ranked, yahoo.New(yahoo.Config{Endpoint: cfg.Yahoo.Endpoint}, httpClient))
	}
	return chain.New("", ranked...), nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
