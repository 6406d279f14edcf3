package handler

import (
	"net/http"

	"github.com/alanyoungcy/insiderwatch/internal/config"
)

// ConfigHandler exposes the active configuration with secrets masked.
type ConfigHandler struct {
	current func() *config.Config
}

// NewConfigHandler creates a ConfigHandler. current returns the live config,
// which changes on reload.
func NewConfigHandler(current func() *config.Config) *ConfigHandler {
	return &ConfigHandler{current: current}
}

// GetConfig returns the redacted configuration.
// GET /api/config
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.RedactedConfig(h.current()))
}
