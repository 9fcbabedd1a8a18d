package handlers

import (
	"net/http"

	"github.com/ramonehamilton/cardtable/internal/api/response"
	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/state"
	"github.com/ramonehamilton/cardtable/internal/tabletop"
)

// SettingsHandler handles settings-related API requests.
type SettingsHandler struct {
	store *state.Store
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(store *state.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// GetSettings returns the current settings.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.store.Snapshot().Settings)
}

// UpdateSettingsRequest changes individual settings. Absent fields are
// left unchanged.
type UpdateSettingsRequest struct {
	DefaultSide     *tabletop.Side  `json:"defaultSide,omitempty"`
	DrawCount       *int            `json:"drawCount,omitempty"`
	DefaultCardSize *cards.CardSize `json:"defaultCardSize,omitempty"`
	DeveloperMode   *bool           `json:"developerMode,omitempty"`
}

// UpdateSettings applies a partial settings update.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, err)
		return
	}

	settings, err := h.store.UpdateSettings(r.Context(), func(s *state.Settings) {
		if req.DefaultSide != nil {
			s.DefaultSide = *req.DefaultSide
		}
		if req.DrawCount != nil {
			s.DrawCount = *req.DrawCount
		}
		if req.DefaultCardSize != nil {
			s.DefaultCardSize = *req.DefaultCardSize
		}
		if req.DeveloperMode != nil {
			s.DeveloperMode = *req.DeveloperMode
		}
	})
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, settings)
}
