package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Gabriel27122003/panorama-investidor/internal/config"
	"github.com/Gabriel27122003/panorama-investidor/internal/httpx"
	"github.com/Gabriel27122003/panorama-investidor/internal/provider"
	"github.com/Gabriel27122003/panorama-investidor/internal/provider/alphavantage"
	"github.com/Gabriel27122003/panorama-investidor/internal/provider/cache"
	"github.com/Gabriel27122003/panorama-investidor/internal/provider/chain"
	"github.com/Gabriel27122003/panorama-investidor/internal/provider/ratelimit"
	"github.com/Gabriel27122003/panorama-investidor/internal/provider/yahoo"
)

// serverMetrics holds the Prometheus instruments for the API surface.
type serverMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec
}

func newServerMetrics() *serverMetrics {
	return &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panorama_requests_total",
				Help: "Total number of API requests processed",
			},
			[]string{"path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "panorama_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panorama_provider_errors_total",
				Help: "Fetch errors by classification",
			},
			[]string{"kind"},
		),
	}
}

func registerMetrics() *serverMetrics {
	m := newServerMetrics()
	prometheus.MustRegister(m.requestCounter, m.requestDuration, m.providerErrors)
	return m
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	setupLogging(cfg.LogLevel)

	p, err := buildProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("providers")
	}

	m := registerMetrics()
	api := &apiHandler{provider: p, metrics: m, now: time.Now}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/history", api.handleHistory)
	mux.HandleFunc("/api/v1/metrics", api.handleMetrics)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(recoverPanic(accessLog(m, mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("provider", p.Name()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(lvl)
}

// buildProvider assembles the fetch stack: rate-limited Alpha Vantage
// first when a credential is configured, Yahoo as the public fallback,
// a TTL cache around the whole chain. A missing credential is not
// fatal; the chain simply starts at the fallback.
func buildProvider(cfg config.Config) (provider.Provider, error) {
	httpClient := httpx.NewRetry(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	var ranked []provider.Provider
	if cfg.AlphaVantage.Enabled {
		if cfg.AlphaVantage.APIKey == "" {
			log.Warn().Msg("ALPHA_VANTAGE_KEY not set; primary provider disabled")
		} else {
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
	}
	if cfg.Yahoo.Enabled {
		if len(ranked) > 0 && !cfg.FallbackEnabled {
			log.Info().Msg("fallback disabled; yahoo provider not ranked behind primary")
		} else {
			ranked = append(ranked, yahoo.New(yahoo.Config{Endpoint: cfg.Yahoo.Endpoint}, httpClient))
		}
	}

	var p provider.Provider = chain.New("", ranked...)
	if cfg.Cache.TTLSeconds > 0 {
		p = &cache.Provider{
			P:        p,
			TTL:      time.Duration(cfg.Cache.TTLSeconds) * time.Second,
			MaxItems: cfg.Cache.MaxItems,
		}
	}
	return p, nil
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser dashboards; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLog(m *serverMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		startedAt := time.Now()
		next.ServeHTTP(sw, r)
		elapsed := time.Since(startedAt)

		m.requestCounter.WithLabelValues(r.URL.Path, http.StatusText(sw.status)).Inc()
		m.requestDuration.WithLabelValues(r.URL.Path).Observe(elapsed.Seconds())
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}
