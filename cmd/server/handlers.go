package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Gabriel27122003/panorama-investidor/internal/metrics"
	"github.com/Gabriel27122003/panorama-investidor/internal/provider"
	"github.com/Gabriel27122003/panorama-investidor/internal/series"
)

const (
	defaultPeriod  = "1y"
	requestTimeout = 25 * time.Second
)

type apiHandler struct {
	provider provider.Provider
	metrics  *serverMetrics
	now      func() time.Time
}

type historyResponse struct {
	Symbol       string               `json:"symbol"`
	Start        string               `json:"start,omitempty"`
	End          string               `json:"end"`
	Observations []series.Observation `json:"observations"`
}

type metricsResponse struct {
	Symbol       string         `json:"symbol"`
	Start        string         `json:"start,omitempty"`
	End          string         `json:"end"`
	Observations int            `json:"observations"`
	Metrics      metrics.Bundle `json:"metrics"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// parseWindow resolves either explicit start/end dates or a period
// preset into a fetch window. With neither present, the original
// dashboard's default period applies.
func parseWindow(q url.Values, now time.Time) (start, end time.Time, err error) {
	startStr, endStr := q.Get("start"), q.Get("end")
	if startStr == "" && endStr == "" {
		period := q.Get("period")
		if period == "" {
			period = defaultPeriod
		}
		return series.PeriodRange(period, now)
	}

	if startStr != "" {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q (use YYYY-MM-DD)", startStr)
		}
	}
	end = series.Day(now)
	if endStr != "" {
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q (use YYYY-MM-DD)", endStr)
		}
	}
	if !start.IsZero() && start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start must not be after end")
	}
	return start, end, nil
}

func (h *apiHandler) fetch(w http.ResponseWriter, r *http.Request) (series.Series, string, time.Time, time.Time, bool) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return nil, "", time.Time{}, time.Time{}, false
	}
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing symbol query param"})
		return nil, "", time.Time{}, time.Time{}, false
	}
	start, end, err := parseWindow(q, h.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return nil, "", time.Time{}, time.Time{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	s, err := h.provider.History(ctx, symbol, start, end)
	if err != nil {
		h.writeFetchError(w, err)
		return nil, "", time.Time{}, time.Time{}, false
	}
	return s, symbol, start, end, true
}

func (h *apiHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	s, symbol, start, end, ok := h.fetch(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Symbol:       symbol,
		Start:        fmtDate(start),
		End:          fmtDate(end),
		Observations: s,
	})
}

func (h *apiHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s, symbol, start, end, ok := h.fetch(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, metricsResponse{
		Symbol:       symbol,
		Start:        fmtDate(start),
		End:          fmtDate(end),
		Observations: len(s),
		Metrics:      metrics.Compute(s),
	})
}

// writeFetchError maps the provider error taxonomy onto HTTP statuses:
// definitive answers about the request are 404s, availability problems
// are 502s, bad input is a 400.
func (h *apiHandler) writeFetchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, provider.ErrInvalidSymbol):
		h.metrics.providerErrors.WithLabelValues("invalid_symbol").Inc()
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown or unsupported ticker"})
	case errors.Is(err, provider.ErrRangeEmpty):
		h.metrics.providerErrors.WithLabelValues("range_empty").Inc()
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no data available for the selected period"})
	case errors.Is(err, provider.ErrUnavailable):
		h.metrics.providerErrors.WithLabelValues("unavailable").Inc()
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "market data is unavailable right now, try again shortly"})
	default:
		h.metrics.providerErrors.WithLabelValues("input").Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
