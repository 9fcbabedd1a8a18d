package handlers

import (
	"errors"
	"net/http"

	"github.com/ramonehamilton/cardtable/internal/api/response"
	"github.com/ramonehamilton/cardtable/internal/metrics"
	"github.com/ramonehamilton/cardtable/internal/state"
	"github.com/ramonehamilton/cardtable/internal/version"
)

// SystemHandler handles system-related API requests.
type SystemHandler struct {
	store   *state.Store
	metrics *metrics.ServerMetrics
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(store *state.Store, m *metrics.ServerMetrics) *SystemHandler {
	return &SystemHandler{store: store, metrics: m}
}

// GetVersion returns the application version.
func (h *SystemHandler) GetVersion(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{
		"version": version.Version,
		"commit":  version.Commit,
	})
}

// GetState returns the whole state snapshot. It is only served in developer mode.
func (h *SystemHandler) GetState(w http.ResponseWriter, _ *http.Request) {
	st := h.store.Snapshot()
	if !st.Settings.DeveloperMode {
		response.Forbidden(w, errors.New("developer mode is disabled"))
		return
	}
	response.Success(w, st)
}

// GetMetrics returns request and event statistics.
func (h *SystemHandler) GetMetrics(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, h.metrics.GetStats())
}
