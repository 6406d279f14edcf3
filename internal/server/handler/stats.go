package handler

import (
	"net/http"

	"github.com/alanyoungcy/insiderwatch/internal/dispatch"
	"github.com/alanyoungcy/insiderwatch/internal/feed"
	"github.com/alanyoungcy/insiderwatch/internal/pipeline"
)

// PipelineStats is implemented by *pipeline.Pipeline.
type PipelineStats interface {
	Stats() pipeline.StatsSnapshot
}

// GateStats is implemented by *dispatch.Gate.
type GateStats interface {
	Stats() dispatch.Stats
}

// StatsHandler reports pipeline, dispatch and feed counters.
type StatsHandler struct {
	pipeline PipelineStats
	gate     GateStats
	feed     *feed.Stats
	feedName string
}

// NewStatsHandler creates a StatsHandler. feedStats may be nil when no feed
// runs.
func NewStatsHandler(p PipelineStats, g GateStats, feedName string, feedStats *feed.Stats) *StatsHandler {
	return &StatsHandler{pipeline: p, gate: g, feed: feedStats, feedName: feedName}
}

// GetStats returns every counter group.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"pipeline": h.pipeline.Stats(),
		"dispatch": h.gate.Stats(),
	}
	if h.feed != nil {
		resp["feed"] = map[string]any{
			"source": h.feedName,
			"counts": h.feed.Snapshot(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
