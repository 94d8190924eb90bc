package series

import (
	"fmt"
	"strings"
	"time"
)

// periodDays maps a period preset to a lookback window in calendar days.
// A zero value means unbounded.
var periodDays = map[string]int{
	"1m":  31,
	"6m":  186,
	"1y":  366,
	"max": 0,
}

// PeriodRange resolves a period preset ("1m", "6m", "1y", "max") into a
// [start, end] window ending at now. For "max" the start is zero (open).
func PeriodRange(period string, now time.Time) (start, end time.Time, err error) {
	p := strings.ToLower(strings.TrimSpace(period))
	days, ok := periodDays[p]
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period %q (use one of: 1m, 6m, 1y, max)", period)
	}
	end = Day(now)
	if days > 0 {
		start = end.AddDate(0, 0, -days)
	}
	return start, end, nil
}
