package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type AlphaVantage struct {
	Enabled              bool   `json:"enabled"`
	APIKey               string `json:"api_key"`
	Endpoint             string `json:"endpoint"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
	Burst                int    `json:"burst"`
}

type Yahoo struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

type Cache struct {
	TTLSeconds int `json:"ttl_sec"`
	MaxItems   int `json:"max_items"`
}

type Config struct {
	Server       Server       `json:"server"`
	AlphaVantage AlphaVantage `json:"alphavantage"`
	Yahoo        Yahoo        `json:"yahoo"`
	Cache        Cache        `json:"cache"`
	// FallbackEnabled controls whether a primary failure may be recovered
	// by the next ranked provider. Off means primary errors propagate.
	FallbackEnabled bool   `json:"fallback_enabled"`
	LogLevel        string `json:"log_level"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		AlphaVantage: AlphaVantage{
			Enabled:              true,
			Endpoint:             "https://www.alphavantage.co",
			MaxRequestsPerMinute: 5,
			Burst:                1,
		},
		Yahoo: Yahoo{
			Enabled:  true,
			Endpoint: "https://query1.finance.yahoo.com/v8/finance/chart",
		},
		Cache:           Cache{TTLSeconds: 900, MaxItems: 1000},
		FallbackEnabled: true,
		LogLevel:        "info",
	}
}

// Load reads JSON config from path. If path is empty or the file does
// not exist, it returns defaults. A .env file in the working directory
// is applied first, then environment variables override select fields
// so the API key never has to live in the config file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("ALPHA_VANTAGE_KEY"); v != "" {
		cfg.AlphaVantage.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("ALPHA_VANTAGE_ENDPOINT"); v != "" {
		cfg.AlphaVantage.Endpoint = v
	}
	if v := os.Getenv("ALPHA_VANTAGE_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.AlphaVantage.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("ALPHA_VANTAGE_BURST"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.AlphaVantage.Burst = x
		}
	}
	if v := os.Getenv("YAHOO_ENABLED"); v != "" {
		cfg.Yahoo.Enabled = parseBool(v, cfg.Yahoo.Enabled)
	}
	if v := os.Getenv("YAHOO_ENDPOINT"); v != "" {
		cfg.Yahoo.Endpoint = v
	}
	if v := os.Getenv("CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Cache.TTLSeconds = x
		}
	}
	if v := os.Getenv("CACHE_MAX_ITEMS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Cache.MaxItems = x
		}
	}
	if v := os.Getenv("FALLBACK_ENABLED"); v != "" {
		cfg.FallbackEnabled = parseBool(v, cfg.FallbackEnabled)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func parseBool(v string, def bool) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	return def
}
