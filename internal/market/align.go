package market

import "time"

// Align rounds t down to a multiple of d counted from the Unix epoch. It
// returns t unchanged for non-positive d.
func Align(t time.Time, d time.Duration) time.Time {
	if d <= 0 {
		return t
	}
	r := time.Duration(t.UnixNano() % int64(d))
	if r < 0 {
		r += d
	}
	return t.Add(-r).Round(0)
}
