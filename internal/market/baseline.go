package market

import (
	"math"
	"time"
)

// resyncEvery bounds floating point drift from repeated inverse updates.
const resyncEvery = 4096

// BaselineStats is a read-only view of a Baseline.
type BaselineStats struct {
	Mean         float64       `json:"mean"`
	StdDev       float64       `json:"std_dev"`
	Windows      int           `json:"windows"`
	Current      float64       `json:"current"`
	CurrentStart time.Time     `json:"current_start"`
	Width        time.Duration `json:"width"`
}

// Ready reports whether enough closed windows exist for a comparison.
func (s BaselineStats) Ready(minWindows int) bool {
	return s.Windows >= minWindows && s.Windows > 0
}

type window struct {
	start time.Time
	value float64
}

// Baseline keeps a time-windowed running mean and variance of per-window
// totals. Values accumulate in an open window; the running statistics only
// cover closed windows, so the open window never influences its own baseline.
// Closed windows that fall outside the horizon are removed with an inverse
// Welford update.
type Baseline struct {
	width      time.Duration
	maxWindows int

	closed []window
	n      int
	mean   float64
	m2     float64
	ops    int

	openStart time.Time
	open      float64
	started   bool
}

// NewBaseline creates a baseline of width-sized windows covering horizon.
func NewBaseline(width, horizon time.Duration) *Baseline {
	if width <= 0 {
		width = time.Hour
	}
	maxWindows := int(horizon / width)
	if maxWindows < 1 {
		maxWindows = 1
	}
	return &Baseline{width: width, maxWindows: maxWindows}
}

// Add accumulates v at time at. Times must be non-decreasing; a value older
// than the open window is folded into the open window.
func (b *Baseline) Add(at time.Time, v float64) {
	start := Align(at, b.width)
	if !b.started {
		b.openStart = start
		b.started = true
	}
	if start.After(b.openStart) {
		b.roll(start)
	}
	b.open += v
}

// roll closes the open window and any empty windows up to start.
func (b *Baseline) roll(start time.Time) {
	b.push(window{start: b.openStart, value: b.open})

	gap := int(start.Sub(b.openStart)/b.width) - 1
	if gap > b.maxWindows {
		gap = b.maxWindows
	}
	for i := gap; i >= 1; i-- {
		b.push(window{start: start.Add(-time.Duration(i) * b.width)})
	}

	b.openStart = start
	b.open = 0
}

func (b *Baseline) push(w window) {
	b.closed = append(b.closed, w)
	b.include(w.value)
	for len(b.closed) > b.maxWindows {
		old := b.closed[0]
		b.closed = b.closed[1:]
		b.exclude(old.value)
	}
	b.ops++
	if b.ops >= resyncEvery {
		b.resync()
	}
}

func (b *Baseline) include(v float64) {
	b.n++
	d := v - b.mean
	b.mean += d / float64(b.n)
	b.m2 += d * (v - b.mean)
}

func (b *Baseline) exclude(v float64) {
	if b.n <= 1 {
		b.n, b.mean, b.m2 = 0, 0, 0
		return
	}
	old := b.mean
	b.mean = (float64(b.n)*b.mean - v) / float64(b.n-1)
	b.m2 -= (v - old) * (v - b.mean)
	if b.m2 < 0 {
		b.m2 = 0
	}
	b.n--
}

// resync recomputes the statistics exactly from the retained windows.
func (b *Baseline) resync() {
	b.ops = 0
	b.n, b.mean, b.m2 = 0, 0, 0
	kept := make([]window, len(b.closed))
	copy(kept, b.closed)
	b.closed = kept
	for _, w := range kept {
		b.include(w.value)
	}
}

// Stats returns the statistics of the closed windows plus the open window's
// running total.
func (b *Baseline) Stats() BaselineStats {
	s := BaselineStats{
		Mean:         b.mean,
		Windows:      b.n,
		Current:      b.open,
		CurrentStart: b.openStart,
		Width:        b.width,
	}
	if b.n > 0 {
		s.StdDev = math.Sqrt(b.m2 / float64(b.n))
	}
	return s
}
