package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// AlertHandler lists persisted alerts.
type AlertHandler struct {
	store  domain.AlertStore
	logger *slog.Logger
}

// NewAlertHandler creates an AlertHandler. A nil store answers 503.
func NewAlertHandler(store domain.AlertStore, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{store: store, logger: logger.With(slog.String("handler", "alerts"))}
}

// ListAlerts returns alerts newest first, optionally filtered by market_id
// and min_severity.
// GET /api/alerts
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "alert persistence is disabled")
		return
	}
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := domain.AlertFilter{
		MarketID: strings.TrimSpace(r.URL.Query().Get("market_id")),
		ListOpts: opts,
	}
	if v := r.URL.Query().Get("min_severity"); v != "" {
		sev, err := domain.ParseSeverity(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.MinSeverity = &sev
	}

	alerts, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list alerts failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}
