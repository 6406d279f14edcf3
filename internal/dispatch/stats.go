package dispatch

import (
	"sync/atomic"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

type counters struct {
	sent          atomic.Int64
	failed        atomic.Int64
	rateLimited   atomic.Int64
	belowSeverity atomic.Int64
	duplicate     atomic.Int64
}

func (c *counters) add(status domain.DispatchStatus) {
	switch status {
	case domain.DispatchSent:
		c.sent.Add(1)
	case domain.DispatchFailed:
		c.failed.Add(1)
	case domain.DispatchRateLimited:
		c.rateLimited.Add(1)
	case domain.DispatchBelowSeverity:
		c.belowSeverity.Add(1)
	case domain.DispatchDuplicate:
		c.duplicate.Add(1)
	}
}

func (c *counters) snapshot() ChannelStats {
	return ChannelStats{
		Sent:          c.sent.Load(),
		Failed:        c.failed.Load(),
		RateLimited:   c.rateLimited.Load(),
		BelowSeverity: c.belowSeverity.Load(),
		Duplicate:     c.duplicate.Load(),
	}
}

// ChannelStats are the outcome counts of one channel.
type ChannelStats struct {
	Sent          int64 `json:"sent"`
	Failed        int64 `json:"failed"`
	RateLimited   int64 `json:"rate_limited"`
	BelowSeverity int64 `json:"below_severity"`
	Duplicate     int64 `json:"duplicate"`
}

// Stats is a point-in-time copy of the gate counters. Offered, Duplicate and
// QueueDropped count alerts; the remaining totals sum the per-channel counts.
type Stats struct {
	Offered       int64                   `json:"offered"`
	Sent          int64                   `json:"sent"`
	Failed        int64                   `json:"failed"`
	RateLimited   int64                   `json:"rate_limited"`
	BelowSeverity int64                   `json:"below_severity"`
	Duplicate     int64                   `json:"duplicate"`
	QueueDropped  int64                   `json:"queue_dropped"`
	Published     int64                   `json:"published"`
	Channels      map[string]ChannelStats `json:"channels"`
}
