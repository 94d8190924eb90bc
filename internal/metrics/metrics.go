// Package metrics computes performance and risk statistics from a daily
// price series. Everything here is a pure function of its input; there
// is no I/O and results are cheap enough to recompute on every request.
package metrics

import (
	"encoding/json"
	"math"

	"github.com/Gabriel27122003/panorama-investidor/internal/series"
)

// tradingDaysPerYear annualizes daily-return statistics.
const tradingDaysPerYear = 252

// Bundle holds the computed statistics. Undefined statistics are NaN,
// never zero, so a flat or too-short series cannot masquerade as a
// computed result. NaN fields marshal to JSON null.
type Bundle struct {
	TotalReturn          float64 `json:"total_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	LastClose            float64 `json:"last_close"`
}

// Undefined is a bundle with every field set to the NaN sentinel.
func Undefined() Bundle {
	nan := math.NaN()
	return Bundle{
		TotalReturn:          nan,
		AnnualizedVolatility: nan,
		SharpeRatio:          nan,
		MaxDrawdown:          nan,
		LastClose:            nan,
	}
}

// Compute derives the full bundle from a price series. A series with
// fewer than 2 observations yields sentinel statistics rather than an
// error: the numbers are mathematically undefined, nothing failed.
// Each field is computed independently.
func Compute(s series.Series) Bundle {
	b := Undefined()
	if len(s) >= 1 {
		b.LastClose = s.Last().Close
	}
	if len(s) < 2 {
		return b
	}

	closes := s.Closes()
	b.TotalReturn = closes[len(closes)-1]/closes[0] - 1
	b.MaxDrawdown = maxDrawdown(closes)

	r := dailyReturns(closes)
	if len(r) >= 2 {
		sd := sampleStdDev(r)
		b.AnnualizedVolatility = sd * math.Sqrt(tradingDaysPerYear)
		if sd > 0 {
			b.SharpeRatio = mean(r) / sd * math.Sqrt(tradingDaysPerYear)
		}
	}
	return b
}

// dailyReturns is the simple-return sequence r_i = c_i/c_{i-1} - 1.
func dailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

// maxDrawdown is the most negative decline from a running peak,
// reported as a fraction <= 0.
func maxDrawdown(closes []float64) float64 {
	worst := 0.0
	peak := closes[0]
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		if dd := c/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdDev uses the n-1 denominator. Callers must pass len >= 2.
func sampleStdDev(xs []float64) float64 {
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// MarshalJSON encodes NaN fields as null so the bundle survives JSON
// transport; encoding/json rejects NaN outright.
func (b Bundle) MarshalJSON() ([]byte, error) {
	type field struct {
		name string
		v    float64
	}
	fields := []field{
		{"total_return", b.TotalReturn},
		{"annualized_volatility", b.AnnualizedVolatility},
		{"sharpe_ratio", b.SharpeRatio},
		{"max_drawdown", b.MaxDrawdown},
		{"last_close", b.LastClose},
	}
	out := make(map[string]*float64, len(fields))
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			out[f.name] = nil
			continue
		}
		v := f.v
		out[f.name] = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON: null becomes NaN.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var raw map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	get := func(name string) float64 {
		if v, ok := raw[name]; ok && v != nil {
			return *v
		}
		return math.NaN()
	}
	b.TotalReturn = get("total_return")
	b.AnnualizedVolatility = get("annualized_volatility")
	b.SharpeRatio = get("sharpe_ratio")
	b.MaxDrawdown = get("max_drawdown")
	b.LastClose = get("last_close")
	return nil
}
