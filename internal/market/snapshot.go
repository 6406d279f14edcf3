package market

import "time"

// Snapshot is a point-in-time copy of a State. Its slices are owned by the
// snapshot and never alias the live state.
type Snapshot struct {
	MarketID       string
	Observations   []Observation
	Prices         []PricePoint
	Volume         BaselineStats
	Rate           BaselineStats
	LastPrice      float64
	Clock          time.Time
	LastAnalysisAt time.Time
	Applied        int64
}

// Empty reports whether the snapshot holds no trades.
func (s Snapshot) Empty() bool { return len(s.Observations) == 0 }

// WindowStart returns the start of the analysis window of length d ending at
// the snapshot clock.
func (s Snapshot) WindowStart(d time.Duration) time.Time {
	return s.Clock.Add(-d)
}

// Window returns the observations within d of the snapshot clock, oldest
// first.
func (s Snapshot) Window(d time.Duration) []Observation {
	cutoff := s.WindowStart(d)
	i := len(s.Observations)
	for i > 0 && s.Observations[i-1].Trade.Timestamp.After(cutoff) {
		i--
	}
	return s.Observations[i:]
}

// PricesSince returns the price samples strictly after cutoff.
func (s Snapshot) PricesSince(cutoff time.Time) []PricePoint {
	i := len(s.Prices)
	for i > 0 && s.Prices[i-1].Time.After(cutoff) {
		i--
	}
	return s.Prices[i:]
}

// PricesBefore returns the price samples at or before cutoff.
func (s Snapshot) PricesBefore(cutoff time.Time) []PricePoint {
	i := len(s.Prices)
	for i > 0 && s.Prices[i-1].Time.After(cutoff) {
		i--
	}
	return s.Prices[:i]
}
