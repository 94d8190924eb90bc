package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gabriel27122003/panorama-investidor/internal/series"
)

// Provider returns a normalized daily price history for a symbol within
// an inclusive date range. Implementations own their wire format; the
// returned series is already sorted, de-duplicated and clipped.
type Provider interface {
	Name() string
	History(ctx context.Context, symbol string, start, end time.Time) (series.Series, error)
}

// Sentinel errors for the fetch path. Providers wrap these so callers
// can classify failures with errors.Is. Undefined metrics are NOT part
// of this taxonomy; they are sentinel values, never errors.
var (
	// ErrInvalidSymbol means the provider reports the ticker does not exist.
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrRangeEmpty means the call succeeded but no usable rows remained
	// after normalization and range clipping.
	ErrRangeEmpty = errors.New("no data in range")
	// ErrUnavailable means the provider could not be reached or returned
	// a malformed or rate-limited response.
	ErrUnavailable = errors.New("data unavailable")
)

// ValidateRequest checks the inputs shared by all providers and returns
// the cleaned-up symbol.
func ValidateRequest(symbol string, start, end time.Time) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", fmt.Errorf("symbol must not be empty")
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return "", fmt.Errorf("start %s is after end %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return s, nil
}
