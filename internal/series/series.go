package series

import (
	"math"
	"sort"
	"time"
)

// Observation is a single daily closing price. Immutable once produced
// by a provider.
type Observation struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Series is a daily price history, strictly increasing by date with no
// duplicate dates. Build one with Normalize rather than by hand.
type Series []Observation

// Day truncates a timestamp to day granularity in UTC. All series dates
// and cache keys use this resolution.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize turns raw provider rows into a valid Series: rows with a
// non-finite or non-positive close are dropped, dates are truncated to
// day granularity, the result is sorted ascending and de-duplicated.
// For duplicate dates the last row in input order wins.
func Normalize(obs []Observation) Series {
	byDate := make(map[time.Time]Observation, len(obs))
	for _, o := range obs {
		if math.IsNaN(o.Close) || math.IsInf(o.Close, 0) || o.Close <= 0 {
			continue
		}
		d := Day(o.Date)
		byDate[d] = Observation{Date: d, Close: o.Close}
	}

	out := make(Series, 0, len(byDate))
	for _, o := range byDate {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Clip returns the observations with start <= date <= end. Bounds are
// compared at day granularity; a zero bound is open.
func (s Series) Clip(start, end time.Time) Series {
	out := make(Series, 0, len(s))
	var lo, hi time.Time
	if !start.IsZero() {
		lo = Day(start)
	}
	if !end.IsZero() {
		hi = Day(end)
	}
	for _, o := range s {
		if !lo.IsZero() && o.Date.Before(lo) {
			continue
		}
		if !hi.IsZero() && o.Date.After(hi) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Closes returns the closing prices in date order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, o := range s {
		out[i] = o.Close
	}
	return out
}

// First returns the oldest observation. Panics on an empty series.
func (s Series) First() Observation { return s[0] }

// Last returns the newest observation. Panics on an empty series.
func (s Series) Last() Observation { return s[len(s)-1] }
